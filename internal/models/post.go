package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post status lifecycle. A post only enters the dispatch sweep while
// scheduled; publishing is the transient claim state held during the
// external call.
const (
	PostStatusDraft      = "draft"
	PostStatusScheduled  = "scheduled"
	PostStatusPublishing = "publishing"
	PostStatusPublished  = "published"
	PostStatusFailed     = "failed"
)

type Post struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	UserID         string     `gorm:"not null;index;size:64" json:"user_id"`
	Content        string     `gorm:"type:text" json:"content"`
	Platform       string     `gorm:"size:50" json:"platform"`
	ImageURL       string     `gorm:"type:text" json:"image_url"`
	Status         string     `gorm:"size:20;default:'draft';index" json:"status"`
	ScheduledFor   *time.Time `gorm:"index" json:"scheduled_for"`
	PostedAt       *time.Time `json:"posted_at"`
	ClaimedAt      *time.Time `json:"claimed_at"`
	ErrorMessage   string     `gorm:"type:text" json:"error_message"`
	AyrsharePostID string     `gorm:"size:100" json:"ayrshare_post_id"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Post) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
