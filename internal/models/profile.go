package models

import "time"

// PublishingProfile binds a user to their Ayrshare user profile. Created
// lazily the first time the user opens the social-linking flow; at most one
// row per user.
type PublishingProfile struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     string    `gorm:"uniqueIndex;not null;size:64" json:"user_id"`
	ProfileKey string    `gorm:"not null;size:100" json:"profile_key"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
