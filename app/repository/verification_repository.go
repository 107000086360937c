package repository

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chouha-community/gatekeeper/app/models"
)

type verificationRepository struct {
	db *gorm.DB
}

// NewVerificationRepository creates a new VerificationRepository instance
func NewVerificationRepository(db *gorm.DB) VerificationRepository {
	return &verificationRepository{db: db}
}

// Upsert inserts or overwrites the record for the user's Discord ID. The
// unique index on discord_id makes this idempotent; a re-verification updates
// the existing row in place.
func (r *verificationRepository) Upsert(user *models.VerifiedUser) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "discord_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"username", "email", "avatar_url", "premium_type", "status", "verified_at", "updated_at",
		}),
	}).Create(user).Error
}

func (r *verificationRepository) GetByDiscordID(discordID string) (*models.VerifiedUser, error) {
	var user models.VerifiedUser
	err := r.db.Where("discord_id = ?", discordID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *verificationRepository) List() ([]models.VerifiedUser, error) {
	var users []models.VerifiedUser
	err := r.db.Order("verified_at ASC").Find(&users).Error
	return users, err
}

func (r *verificationRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.VerifiedUser{}).Count(&count).Error
	return count, err
}

// IsNotFound reports whether the error is a missing-record error
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
