package verifystore

import (
	"context"
	"errors"
	"fmt"

	"github.com/chouha-community/gatekeeper/app/models"
	"github.com/chouha-community/gatekeeper/internal/pkg/config"
)

// ErrNotFound is returned by Get when no record exists for the member.
var ErrNotFound = errors.New("verification record not found")

// Store persists verification records keyed by Discord member ID. Put is an
// upsert: writing the same member twice keeps a single record with the latest
// profile data.
type Store interface {
	Name() string
	Put(ctx context.Context, user *models.VerifiedUser) error
	Get(ctx context.Context, discordID string) (*models.VerifiedUser, error)
	List(ctx context.Context) ([]models.VerifiedUser, error)
}

// FromConfig selects the backend named by STORAGE_BACKEND and wraps it in the
// fallback layer so Put never hard-fails the caller. An unknown backend is a
// configuration error.
func FromConfig(cfg *config.Config) (Store, error) {
	var (
		backend Store
		err     error
	)

	switch cfg.StorageBackend {
	case config.StorageMySQL:
		backend, err = newGormStore()
	case config.StorageMongo:
		backend, err = newMongoStore(cfg)
	case config.StorageS3:
		backend, err = newBlobStore(cfg)
	case config.StorageAirtable:
		backend, err = newAirtableStore(cfg)
	case config.StorageFile:
		backend, err = newFileStore(cfg.UsersFilePath)
	case config.StorageNone:
		backend = newNoopStore()
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.StorageBackend)
	}
	if err != nil {
		return nil, err
	}

	return NewFallback(backend), nil
}
