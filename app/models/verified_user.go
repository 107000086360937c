package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	STATUS_VERIFIED = "Verified"
)

// VerifiedUser is the record written after a successful OAuth verification.
// It is keyed uniquely by the Discord snowflake; a re-verification overwrites
// the existing row instead of creating a second one.
type VerifiedUser struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	DiscordID   string         `gorm:"uniqueIndex;type:varchar(20)" json:"discord_id" validate:"required,numeric,min=17,max=19"`
	Username    string         `gorm:"type:varchar(100)" json:"username" validate:"required,max=100"`
	Email       string         `gorm:"type:varchar(200)" json:"email" validate:"required,email,max=200"`
	AvatarURL   string         `gorm:"type:varchar(255);default:null" json:"avatar_url" validate:"max=255"`
	PremiumType int            `gorm:"default:0" json:"premium_type"`
	Status      string         `gorm:"type:varchar(50);default:'Verified'" json:"status"`
	VerifiedAt  time.Time      `json:"verified_at"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *VerifiedUser) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// StorageKey returns the object key used by the blob and file backends.
func (u *VerifiedUser) StorageKey() string {
	return "user-" + u.DiscordID
}

// NewVerifiedUser builds a record from an OAuth profile fetch. VerifiedAt is
// passed in so callers can pin the timestamp that went into the welcome flow.
func NewVerifiedUser(discordID, username, email, avatarURL string, premiumType int, verifiedAt time.Time) *VerifiedUser {
	return &VerifiedUser{
		DiscordID:   discordID,
		Username:    username,
		Email:       email,
		AvatarURL:   avatarURL,
		PremiumType: premiumType,
		Status:      STATUS_VERIFIED,
		VerifiedAt:  verifiedAt,
	}
}
