package verifystore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chouha-community/gatekeeper/app/models"
)

type failingStore struct {
	putCalls int
}

func (s *failingStore) Name() string { return "failing" }

func (s *failingStore) Put(ctx context.Context, user *models.VerifiedUser) error {
	s.putCalls++
	return errors.New("backend down")
}

func (s *failingStore) Get(ctx context.Context, discordID string) (*models.VerifiedUser, error) {
	return nil, errors.New("backend down")
}

func (s *failingStore) List(ctx context.Context) ([]models.VerifiedUser, error) {
	return nil, errors.New("backend down")
}

func TestFallbackPutNeverFails(t *testing.T) {
	inner := &failingStore{}
	store := NewFallback(inner)

	err := store.Put(context.Background(), testUser("111111111111111111", "user@example.com"))
	assert.NoError(t, err)
	assert.Equal(t, 1, inner.putCalls)
}

func TestFallbackReadsPassErrorsThrough(t *testing.T) {
	store := NewFallback(&failingStore{})

	_, err := store.Get(context.Background(), "111111111111111111")
	assert.Error(t, err)

	_, err = store.List(context.Background())
	assert.Error(t, err)
}
