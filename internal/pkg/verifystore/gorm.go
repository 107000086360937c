package verifystore

import (
	"context"
	"errors"

	"github.com/chouha-community/gatekeeper/app/models"
	"github.com/chouha-community/gatekeeper/app/repository"
	"github.com/chouha-community/gatekeeper/internal/pkg/database"
)

// gormStore persists records through the MySQL repository layer. This is the
// default backend for deployments that already run the web service database.
type gormStore struct {
	repo repository.VerificationRepository
}

func newGormStore() (*gormStore, error) {
	db := database.GetDB()
	if db == nil {
		return nil, errors.New("mysql backend selected but database is not connected")
	}
	return &gormStore{
		repo: repository.NewRepositories(db).Verification,
	}, nil
}

func (s *gormStore) Name() string { return "mysql" }

func (s *gormStore) Put(ctx context.Context, user *models.VerifiedUser) error {
	return s.repo.Upsert(user)
}

func (s *gormStore) Get(ctx context.Context, discordID string) (*models.VerifiedUser, error) {
	user, err := s.repo.GetByDiscordID(discordID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *gormStore) List(ctx context.Context) ([]models.VerifiedUser, error) {
	return s.repo.List()
}
