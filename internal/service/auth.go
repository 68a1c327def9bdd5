package service

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"

	"github.com/autobuzz/autobuzz/internal/config"
)

const sessionUserKey = "session_user_id"

// AuthService validates operator logins with TOTP and hands out expiring
// bearer sessions for the interactive API surface.
type AuthService struct {
	config *config.AuthConfig
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]session
}

type session struct {
	userID    string
	expiresAt time.Time
}

func NewAuthService(cfg *config.AuthConfig, logger *zap.Logger) *AuthService {
	return &AuthService{
		config:   cfg,
		logger:   logger,
		sessions: make(map[string]session),
	}
}

// GenerateSecret creates a fresh TOTP secret for initial setup.
func (a *AuthService) GenerateSecret() (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "AutoBuzz Dispatch",
		AccountName: "admin",
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	return key.Secret(), nil
}

// Login validates a TOTP code and mints a session bound to userID.
func (a *AuthService) Login(userID, code string) (string, error) {
	if a.config.TOTPSecret == "" {
		return "", fmt.Errorf("authentication is not configured")
	}
	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}

	if !totp.Validate(code, a.config.TOTPSecret) {
		a.logger.Warn("TOTP validation failed", zap.String("user_id", userID))
		return "", fmt.Errorf("invalid code")
	}

	token := uuid.NewString()
	a.mu.Lock()
	a.sessions[token] = session{
		userID:    userID,
		expiresAt: time.Now().Add(a.sessionTTL()),
	}
	a.mu.Unlock()

	a.logger.Info("Session created", zap.String("user_id", userID))
	return token, nil
}

// UserForToken resolves a bearer token to its user, expiring lazily.
func (a *AuthService) UserForToken(token string) (string, bool) {
	a.mu.RLock()
	sess, ok := a.sessions[token]
	a.mu.RUnlock()
	if !ok {
		return "", false
	}
	if time.Now().After(sess.expiresAt) {
		a.mu.Lock()
		delete(a.sessions, token)
		a.mu.Unlock()
		return "", false
	}
	return sess.userID, true
}

// SessionMiddleware rejects requests without a valid bearer session and
// stashes the user id in the gin context.
func (a *AuthService) SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		userID, ok := a.UserForToken(token)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session expired or invalid"})
			return
		}

		c.Set(sessionUserKey, userID)
		c.Next()
	}
}

// SessionUser returns the authenticated user id stored by SessionMiddleware.
func SessionUser(c *gin.Context) string {
	if v, ok := c.Get(sessionUserKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

func (a *AuthService) sessionTTL() time.Duration {
	ttl, err := time.ParseDuration(a.config.SessionTTL)
	if err != nil || ttl <= 0 {
		return 12 * time.Hour
	}
	return ttl
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
