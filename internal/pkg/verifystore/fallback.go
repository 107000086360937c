package verifystore

import (
	"context"

	"github.com/gofiber/fiber/v2/log"

	"github.com/chouha-community/gatekeeper/app/models"
)

// Fallback wraps a backend so a storage outage never breaks the verification
// flow. A failed Put is logged with the full record and reported as success;
// reads pass errors through since their callers already treat them as
// best-effort.
type Fallback struct {
	inner Store
}

// NewFallback wraps the given backend.
func NewFallback(inner Store) *Fallback {
	return &Fallback{inner: inner}
}

func (f *Fallback) Name() string {
	return f.inner.Name()
}

func (f *Fallback) Put(ctx context.Context, user *models.VerifiedUser) error {
	if err := f.inner.Put(ctx, user); err != nil {
		log.Errorf("[VerifyStore] %s backend failed, record kept in log only: discord_id=%s username=%s email=%s err=%v",
			f.inner.Name(), user.DiscordID, user.Username, user.Email, err)
	}
	return nil
}

func (f *Fallback) Get(ctx context.Context, discordID string) (*models.VerifiedUser, error) {
	return f.inner.Get(ctx, discordID)
}

func (f *Fallback) List(ctx context.Context) ([]models.VerifiedUser, error) {
	return f.inner.List(ctx)
}
