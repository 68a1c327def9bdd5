package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/autobuzz/autobuzz/internal/config"
	"github.com/autobuzz/autobuzz/internal/models"
	"github.com/autobuzz/autobuzz/internal/service"
	"github.com/autobuzz/autobuzz/internal/service/ayrshare"
)

type Server struct {
	Config *config.Config
	DB     *gorm.DB
	Router *gin.Engine
	Logger *zap.Logger
	Server *http.Server

	// Services
	Store      *service.PostStore
	Profiles   *service.ProfileService
	Dispatcher *service.Dispatcher
	Scheduler  *service.Scheduler
	Auth       *service.AuthService
	Publisher  *ayrshare.Client
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	// Set gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := service.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize services
	publisher := ayrshare.NewClient(&cfg.Ayrshare, logger)
	store := service.NewPostStore(db)
	profiles := service.NewProfileService(cfg, db, logger, publisher)
	dispatcher := service.NewDispatcher(cfg, store, profiles, publisher, logger)
	scheduler := service.NewScheduler(&cfg.Dispatch, logger, dispatcher)
	auth := service.NewAuthService(&cfg.Auth, logger)

	// Create router
	router := gin.New()

	// Create server
	srv := &Server{
		Config:     cfg,
		DB:         db,
		Router:     router,
		Logger:     logger,
		Store:      store,
		Profiles:   profiles,
		Dispatcher: dispatcher,
		Scheduler:  scheduler,
		Auth:       auth,
		Publisher:  publisher,
	}

	// Setup middleware and routes
	srv.setupMiddleware()
	srv.setupRoutes()

	return srv, nil
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.Router.Use(gin.Recovery())

	// Logger middleware
	s.Router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	// CORS middleware
	s.Router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})
}

func (s *Server) setupRoutes() {
	// Health check
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	// API routes
	api := s.Router.Group("/api/v1")
	{
		// External scheduler trigger, protected by the pre-shared secret
		api.GET("/cron/dispatch", s.handleCronDispatch)

		api.POST("/auth/login", s.handleLogin)

		// Interactive surface, session required
		authed := api.Group("")
		authed.Use(s.Auth.SessionMiddleware())
		{
			authed.POST("/dispatch/run", s.handleManualDispatch)
			authed.GET("/integrations/link", s.handleIntegrationLink)
			authed.GET("/posts", s.handleListPosts)
			authed.POST("/posts/:id/publish", s.handlePublishNow)
		}
	}
}

// handleCronDispatch is the time-based trigger. The external scheduler must
// present the pre-shared secret; an unset secret refuses everything.
func (s *Server) handleCronDispatch(c *gin.Context) {
	secret := s.Config.Dispatch.CronSecret
	if secret == "" || c.GetHeader("Authorization") != "Bearer "+secret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	summary, err := s.Dispatcher.Run(c.Request.Context())
	if err != nil {
		s.Logger.Error("Dispatch run refused", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id"`
		Code   string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	token, err := s.Auth.Login(req.UserID, req.Code)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// handleManualDispatch is the on-demand trigger. When an admin allow-list is
// configured, only listed users may run it.
func (s *Server) handleManualDispatch(c *gin.Context) {
	userID := service.SessionUser(c)
	if !s.isDispatchAllowed(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin only"})
		return
	}

	summary, err := s.Dispatcher.Run(c.Request.Context())
	if err != nil {
		s.Logger.Error("Dispatch run refused", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (s *Server) isDispatchAllowed(userID string) bool {
	allowed := s.Config.Dispatch.AdminUserIDs
	if len(allowed) == 0 {
		return true
	}
	for _, id := range allowed {
		if id == userID {
			return true
		}
	}
	return false
}

func (s *Server) handleIntegrationLink(c *gin.Context) {
	userID := service.SessionUser(c)

	url, err := s.Profiles.SocialLinkURL(c.Request.Context(), userID)
	if err != nil {
		s.Logger.Error("Failed to build social link URL", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (s *Server) handleListPosts(c *gin.Context) {
	userID := service.SessionUser(c)

	posts, err := s.Store.ListByUser(userID)
	if err != nil {
		s.Logger.Error("Failed to list posts", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list posts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

// handlePublishNow publishes one of the caller's posts immediately,
// bypassing the schedule. Drafts must be scheduled first so a post never
// jumps straight from draft to published.
func (s *Server) handlePublishNow(c *gin.Context) {
	userID := service.SessionUser(c)
	postID := c.Param("id")

	post, err := s.Store.GetPost(postID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}
	if post.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your post"})
		return
	}
	if post.Status == models.PostStatusPublished {
		c.JSON(http.StatusConflict, gin.H{"error": "Post already published"})
		return
	}
	if post.Status == models.PostStatusDraft {
		c.JSON(http.StatusConflict, gin.H{"error": "Schedule the post before publishing"})
		return
	}
	if post.Content == "" || post.Platform == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing content or platform"})
		return
	}

	profileKey, found, err := s.Profiles.ResolveProfileKey(userID)
	if err != nil {
		s.Logger.Error("Credential lookup failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up publishing profile"})
		return
	}
	if !found {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User has not connected social accounts"})
		return
	}

	result, err := s.Publisher.Publish(c.Request.Context(), ayrshare.PublishRequest{
		Content:    post.Content,
		Platform:   post.Platform,
		ProfileKey: profileKey,
		ImageURL:   post.ImageURL,
	})
	if err != nil {
		s.Logger.Warn("Publish request failed", zap.String("post_id", post.ID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to reach publishing API"})
		return
	}

	now := time.Now().UTC()
	if !result.Success {
		if err := s.Store.MarkFailed(post.ID, result.Error, now); err != nil {
			s.Logger.Error("Failed to record post failure", zap.String("post_id", post.ID), zap.Error(err))
		}
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": result.Error})
		return
	}

	externalRef := result.PostID
	if externalRef == "" && len(result.PostIDs) > 0 {
		externalRef = result.PostIDs[0].ID
	}
	if err := s.Store.MarkPublished(post.ID, externalRef, now); err != nil {
		s.Logger.Error("Post published but status write failed", zap.String("post_id", post.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Published but failed to record result"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "id": externalRef})
}

func (s *Server) Start(ctx context.Context) error {
	// Start scheduler
	if err := s.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)

	s.Server = &http.Server{
		Addr:    addr,
		Handler: s.Router,
	}

	s.Logger.Info("Starting HTTP server", zap.String("addr", addr))

	if s.Config.Server.CertFile != "" && s.Config.Server.KeyFile != "" {
		return s.Server.ListenAndServeTLS(s.Config.Server.CertFile, s.Config.Server.KeyFile)
	}

	return s.Server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	// Stop scheduler first
	s.Scheduler.Stop()

	if s.Server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.Server.Shutdown(shutdownCtx)
}
