package entity

import (
	"time"

	"gorm.io/datatypes"
)

// DailyDigest is the stored per-user, per-day digest. Content holds the
// serialized DigestContent handed to the mailer.
type DailyDigest struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"not null;uniqueIndex:idx_daily_digests_user_date" json:"user_id"`
	Date      time.Time      `gorm:"type:date;not null;uniqueIndex:idx_daily_digests_user_date" json:"date"`
	Content   datatypes.JSON `json:"content"`
	SentAt    *time.Time     `json:"sent_at,omitempty"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the DailyDigest model.
func (DailyDigest) TableName() string {
	return "daily_digests"
}
