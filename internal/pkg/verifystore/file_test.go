package verifystore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chouha-community/gatekeeper/app/models"
)

func testUser(discordID, email string) *models.VerifiedUser {
	return &models.VerifiedUser{
		DiscordID:   discordID,
		Username:    "tester",
		Email:       email,
		Status:      models.STATUS_VERIFIED,
		PremiumType: 2,
		VerifiedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestFileStorePutAndGet(t *testing.T) {
	store, err := newFileStore(filepath.Join(t.TempDir(), "users.json"))
	assert.NoError(t, err)

	ctx := context.Background()
	user := testUser("111111111111111111", "first@example.com")
	assert.NoError(t, store.Put(ctx, user))

	got, err := store.Get(ctx, "111111111111111111")
	assert.NoError(t, err)
	assert.Equal(t, "first@example.com", got.Email)
	assert.Equal(t, 2, got.PremiumType)
}

func TestFileStoreUpsertKeepsSingleRecord(t *testing.T) {
	store, err := newFileStore(filepath.Join(t.TempDir(), "users.json"))
	assert.NoError(t, err)

	ctx := context.Background()
	assert.NoError(t, store.Put(ctx, testUser("111111111111111111", "first@example.com")))
	assert.NoError(t, store.Put(ctx, testUser("111111111111111111", "second@example.com")))

	users, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, "second@example.com", users[0].Email)
}

func TestFileStoreGetMissing(t *testing.T) {
	store, err := newFileStore(filepath.Join(t.TempDir(), "users.json"))
	assert.NoError(t, err)

	_, err = store.Get(context.Background(), "999999999999999999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreListEmptyFile(t *testing.T) {
	store, err := newFileStore(filepath.Join(t.TempDir(), "users.json"))
	assert.NoError(t, err)

	users, err := store.List(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, users)
}
