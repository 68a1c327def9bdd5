package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/autobuzz/autobuzz/internal/config"
	"github.com/autobuzz/autobuzz/internal/models"
	"github.com/autobuzz/autobuzz/internal/service/ayrshare"
)

// ProfileService manages the per-user Ayrshare profile binding: resolving
// the profile key for dispatch and lazily creating profiles for the
// social-linking flow.
type ProfileService struct {
	config *config.Config
	db     *gorm.DB
	logger *zap.Logger
	client *ayrshare.Client
}

func NewProfileService(cfg *config.Config, db *gorm.DB, logger *zap.Logger, client *ayrshare.Client) *ProfileService {
	return &ProfileService{
		config: cfg,
		db:     db,
		logger: logger,
		client: client,
	}
}

// ResolveProfileKey looks up the stored profile key for a user. A missing
// row is ordinary data, not an error: the user simply never linked an
// account.
func (s *ProfileService) ResolveProfileKey(userID string) (string, bool, error) {
	if userID == "" {
		return "", false, nil
	}

	var profile models.PublishingProfile
	err := s.db.Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up publishing profile: %w", err)
	}

	return profile.ProfileKey, true, nil
}

// SinglePlayerMode reports whether the Ayrshare Business Plan settings are
// absent, in which case posts go out on the API key's own account instead of
// per-user profiles.
func (s *ProfileService) SinglePlayerMode() bool {
	return strings.TrimSpace(s.config.Ayrshare.Domain) == ""
}

// EnsureProfile returns the user's publishing profile, creating one through
// the Ayrshare API on first use.
func (s *ProfileService) EnsureProfile(ctx context.Context, userID string) (*models.PublishingProfile, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	var existing models.PublishingProfile
	err := s.db.Where("user_id = ?", userID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up publishing profile: %w", err)
	}

	title := fmt.Sprintf("AutoBuzz User %s", shortUserRef(userID))
	profileKey, err := s.client.CreateProfile(ctx, title)
	if err != nil {
		return nil, err
	}

	profile := models.PublishingProfile{
		UserID:     userID,
		ProfileKey: profileKey,
	}
	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"profile_key", "updated_at"}),
	}).Create(&profile).Error
	if err != nil {
		return nil, fmt.Errorf("failed to store publishing profile: %w", err)
	}

	s.logger.Info("Created publishing profile", zap.String("user_id", userID))
	return &profile, nil
}

// SocialLinkURL returns the JWT-signed Ayrshare linking page URL for a user,
// creating their profile first when needed.
func (s *ProfileService) SocialLinkURL(ctx context.Context, userID string) (string, error) {
	if strings.TrimSpace(s.config.Ayrshare.APIKey) == "" {
		return "", fmt.Errorf("publishing API key is not configured")
	}
	if s.SinglePlayerMode() || strings.TrimSpace(s.config.Ayrshare.PrivateKey) == "" {
		return "", fmt.Errorf("account linking requires the Ayrshare Business Plan domain and private key")
	}

	profile, err := s.EnsureProfile(ctx, userID)
	if err != nil {
		return "", err
	}

	redirect := strings.TrimRight(s.config.Ayrshare.AppURL, "/") + "/settings/integrations"
	return s.client.GenerateProfileLink(ctx, profile.ProfileKey, redirect)
}

// shortUserRef keeps profile titles readable for long identity-provider ids.
func shortUserRef(userID string) string {
	if len(userID) <= 8 {
		return userID
	}
	return userID[len(userID)-8:]
}
