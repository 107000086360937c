package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validUser() *VerifiedUser {
	return NewVerifiedUser("123456789012345678", "tester", "user@example.com", "", 0, time.Now().UTC())
}

func TestNewVerifiedUser(t *testing.T) {
	u := validUser()
	assert.Equal(t, STATUS_VERIFIED, u.Status)
	assert.NoError(t, u.Validate())
}

func TestValidateDiscordID(t *testing.T) {
	u := validUser()
	u.DiscordID = "1234567890123456" // 16 digits, too short
	assert.Error(t, u.Validate())

	u.DiscordID = "12345678901234567890" // 20 digits, too long
	assert.Error(t, u.Validate())

	u.DiscordID = "not-a-snowflake"
	assert.Error(t, u.Validate())
}

func TestValidateEmail(t *testing.T) {
	u := validUser()
	u.Email = "not-an-email"
	assert.Error(t, u.Validate())

	u.Email = ""
	assert.Error(t, u.Validate())
}

func TestStorageKey(t *testing.T) {
	assert.Equal(t, "user-123456789012345678", validUser().StorageKey())
}
