package verifystore

import (
	"context"

	"github.com/gofiber/fiber/v2/log"

	"github.com/chouha-community/gatekeeper/app/models"
)

// noopStore persists nothing. Every verification is logged so operators still
// get an audit trail when no backend is configured.
type noopStore struct{}

func newNoopStore() *noopStore { return &noopStore{} }

func (s *noopStore) Name() string { return "none" }

func (s *noopStore) Put(ctx context.Context, user *models.VerifiedUser) error {
	log.Infof("[VerifyStore] Storage disabled, verification logged only: discord_id=%s username=%s email=%s",
		user.DiscordID, user.Username, user.Email)
	return nil
}

func (s *noopStore) Get(ctx context.Context, discordID string) (*models.VerifiedUser, error) {
	return nil, ErrNotFound
}

func (s *noopStore) List(ctx context.Context) ([]models.VerifiedUser, error) {
	return []models.VerifiedUser{}, nil
}
