package service

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/autobuzz/autobuzz/internal/models"
)

// PostStore owns every status-transition write on the posts table. All
// writes are scoped to a single row by primary key; the dispatcher never
// touches content or scheduling fields.
type PostStore struct {
	db *gorm.DB
}

func NewPostStore(db *gorm.DB) *PostStore {
	return &PostStore{db: db}
}

// FetchDue returns posts that are scheduled and whose scheduled_for is at or
// before now. limit caps the batch so one run cannot stall on an unbounded
// backlog; ordering between due posts is not significant.
func (s *PostStore) FetchDue(now time.Time, limit int) ([]models.Post, error) {
	var posts []models.Post
	q := s.db.Where("status = ? AND scheduled_for <= ?", models.PostStatusScheduled, now)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch due posts: %w", err)
	}
	return posts, nil
}

// ClaimForPublish flips a post from scheduled to publishing, recording the
// claim time. The guarded WHERE makes the claim exclusive: when two runs
// race over the same due-set, only one sees rows affected.
func (s *PostStore) ClaimForPublish(postID string, now time.Time) (bool, error) {
	tx := s.db.Model(&models.Post{}).
		Where("id = ? AND status = ?", postID, models.PostStatusScheduled).
		Updates(map[string]any{
			"status":     models.PostStatusPublishing,
			"claimed_at": now,
		})
	if tx.Error != nil {
		return false, fmt.Errorf("failed to claim post %s: %w", postID, tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

// MarkPublished records a successful publish. Idempotent: repeating the call
// with the same arguments rewrites the same values.
func (s *PostStore) MarkPublished(postID, externalRef string, postedAt time.Time) error {
	err := s.db.Model(&models.Post{}).
		Where("id = ?", postID).
		Updates(map[string]any{
			"status":           models.PostStatusPublished,
			"posted_at":        postedAt,
			"ayrshare_post_id": externalRef,
			"error_message":    "",
			"claimed_at":       nil,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark post %s published: %w", postID, err)
	}
	return nil
}

// MarkFailed records a failed publish attempt with its reason. Idempotent.
func (s *PostStore) MarkFailed(postID, reason string, at time.Time) error {
	err := s.db.Model(&models.Post{}).
		Where("id = ?", postID).
		Updates(map[string]any{
			"status":        models.PostStatusFailed,
			"error_message": reason,
			"claimed_at":    nil,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark post %s failed: %w", postID, err)
	}
	return nil
}

// ReleaseStale resolves posts stuck in publishing past the claim timeout,
// typically after a crash between the external call and the status write.
// They are failed rather than rescheduled: retrying blind risks a double
// send, and failed posts can be rescheduled from the editing surface.
func (s *PostStore) ReleaseStale(cutoff time.Time) (int64, error) {
	tx := s.db.Model(&models.Post{}).
		Where("status = ? AND claimed_at < ?", models.PostStatusPublishing, cutoff).
		Updates(map[string]any{
			"status":        models.PostStatusFailed,
			"error_message": "Publish attempt interrupted; outcome unknown",
			"claimed_at":    nil,
		})
	if tx.Error != nil {
		return 0, fmt.Errorf("failed to release stale claims: %w", tx.Error)
	}
	return tx.RowsAffected, nil
}

// GetPost loads a single post by id.
func (s *PostStore) GetPost(postID string) (*models.Post, error) {
	var post models.Post
	if err := s.db.Where("id = ?", postID).First(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// ListByUser returns a user's posts, most recent first.
func (s *PostStore) ListByUser(userID string) ([]models.Post, error) {
	var posts []models.Post
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return posts, nil
}
