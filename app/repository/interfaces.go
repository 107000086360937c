package repository

import (
	"github.com/chouha-community/gatekeeper/app/models"
	"gorm.io/gorm"
)

// VerificationRepository defines the database operations for verification records
type VerificationRepository interface {
	Upsert(user *models.VerifiedUser) error
	GetByDiscordID(discordID string) (*models.VerifiedUser, error)
	List() ([]models.VerifiedUser, error)
	Count() (int64, error)
}

// StatsRepository defines the operations for the daily verification counters
type StatsRepository interface {
	AddToDay(day string, welcomes, verifications, roles int64) error
	GetDay(day string) (*models.DailyStats, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Verification VerificationRepository
	Stats        StatsRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Verification: NewVerificationRepository(db),
		Stats:        NewStatsRepository(db),
	}
}
