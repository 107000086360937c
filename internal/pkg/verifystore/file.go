package verifystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/chouha-community/gatekeeper/app/models"
)

// fileStore keeps all records as a JSON array in a single file. Suited for
// small deployments without a database; every write rewrites the whole file
// under a process-wide lock.
type fileStore struct {
	path string
	mu   sync.Mutex
}

func newFileStore(path string) (*fileStore, error) {
	if path == "" {
		path = "users.json"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}
	return &fileStore{path: path}, nil
}

func (s *fileStore) Name() string { return "file" }

func (s *fileStore) Put(ctx context.Context, user *models.VerifiedUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return err
	}

	replaced := false
	for i := range users {
		if users[i].DiscordID == user.DiscordID {
			users[i] = *user
			replaced = true
			break
		}
	}
	if !replaced {
		users = append(users, *user)
	}
	return s.save(users)
}

func (s *fileStore) Get(ctx context.Context, discordID string) (*models.VerifiedUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].DiscordID == discordID {
			return &users[i], nil
		}
	}
	return nil, ErrNotFound
}

func (s *fileStore) List(ctx context.Context) ([]models.VerifiedUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *fileStore) load() ([]models.VerifiedUser, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []models.VerifiedUser{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return []models.VerifiedUser{}, nil
	}

	var users []models.VerifiedUser
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return users, nil
}

func (s *fileStore) save(users []models.VerifiedUser) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return err
	}

	// Write-then-rename so a crash mid-write cannot corrupt the file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	return os.Rename(tmp, s.path)
}
