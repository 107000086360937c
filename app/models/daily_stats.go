package models

import "time"

// DailyStats aggregates the verification counters flushed from Redis once per
// flush interval. One row per calendar day.
type DailyStats struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Day           string    `gorm:"uniqueIndex;type:varchar(10)" json:"day"` // YYYY-MM-DD
	WelcomesSent  int64     `gorm:"default:0" json:"welcomes_sent"`
	Verifications int64     `gorm:"default:0" json:"verifications"`
	RolesGranted  int64     `gorm:"default:0" json:"roles_granted"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
