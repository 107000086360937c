package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"github.com/chouha-community/gatekeeper/app/models"
	"github.com/chouha-community/gatekeeper/internal/pkg/config"
	"github.com/chouha-community/gatekeeper/internal/pkg/discord"
	"github.com/chouha-community/gatekeeper/internal/pkg/jobqueue"
	"github.com/chouha-community/gatekeeper/internal/pkg/verifystore"
	"github.com/chouha-community/gatekeeper/internal/pkg/watcher"
)

type memStore struct {
	mu    sync.Mutex
	users map[string]*models.VerifiedUser
}

func newMemStore() *memStore {
	return &memStore{users: map[string]*models.VerifiedUser{}}
}

func (s *memStore) Name() string { return "memory" }

func (s *memStore) Put(ctx context.Context, user *models.VerifiedUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.DiscordID] = user
	return nil
}

func (s *memStore) Get(ctx context.Context, discordID string) (*models.VerifiedUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[discordID]; ok {
		return u, nil
	}
	return nil, verifystore.ErrNotFound
}

func (s *memStore) List(ctx context.Context) ([]models.VerifiedUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.VerifiedUser
	for _, u := range s.users {
		out = append(out, *u)
	}
	return out, nil
}

type recordingAssigner struct {
	mu    sync.Mutex
	calls []string
	out   watcher.RoleOutcome
}

func (a *recordingAssigner) AssignVerifiedRole(ctx context.Context, discordID string) watcher.RoleOutcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, discordID)
	return a.out
}

func (a *recordingAssigner) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

type recordingEnqueuer struct {
	mu   sync.Mutex
	jobs []jobqueue.JobType
}

func (e *recordingEnqueuer) EnqueueJob(jobType jobqueue.JobType, payload map[string]interface{}) (*jobqueue.Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.jobs = append(e.jobs, jobType)
	return &jobqueue.Job{ID: "job", Type: jobType, Payload: payload}, nil
}

func (e *recordingEnqueuer) Jobs() []jobqueue.JobType {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]jobqueue.JobType(nil), e.jobs...)
}

// fakeDiscord serves the token and profile endpoints.
func fakeDiscord(t *testing.T, tokenStatus, profileStatus int) (*httptest.Server, *int) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		switch r.URL.Path {
		case "/oauth2/token":
			w.WriteHeader(tokenStatus)
			if tokenStatus == http.StatusOK {
				w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
			} else {
				w.Write([]byte(`{"error":"invalid_grant"}`))
			}
		case "/users/@me":
			w.WriteHeader(profileStatus)
			if profileStatus == http.StatusOK {
				w.Write([]byte(`{"id":"111111111111111111","username":"tester","avatar":"abcd","email":"user@example.com","premium_type":2}`))
			} else {
				w.Write([]byte(`{"message":"401: Unauthorized"}`))
			}
		default:
			t.Errorf("unexpected call: %s", r.URL.Path)
		}
	}))
	return server, &calls
}

func newAuthApp(serverURL string, store verifystore.Store, assigner RoleAssigner, queue JobEnqueuer) *fiber.App {
	cfg := &config.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://verify.example.com/api/auth/discord/redirect",
	}
	oauth := discord.NewOAuthClient(cfg)
	oauth.TokenURL = serverURL + "/oauth2/token"
	oauth.APIBaseURL = serverURL

	ac := NewAuthController(cfg, oauth, store, nil, assigner, queue)

	app := fiber.New()
	app.Get("/login", ac.HandleLogin)
	app.Get("/api/auth/discord/redirect", ac.HandleRedirect)
	return app
}

func TestHandleLoginRedirectsToConsentScreen(t *testing.T) {
	app := newAuthApp("http://unused", newMemStore(), nil, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/login", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)

	location := resp.Header.Get("Location")
	assert.Contains(t, location, "https://discord.com/oauth2/authorize")
	assert.Contains(t, location, "client_id=client-id")
	assert.Contains(t, location, "response_type=code")
	assert.Contains(t, location, "scope=identify+email")
}

func TestHandleRedirectMissingCode(t *testing.T) {
	server, calls := fakeDiscord(t, http.StatusOK, http.StatusOK)
	defer server.Close()

	app := newAuthApp(server.URL, newMemStore(), nil, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/auth/discord/redirect", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, *calls, "missing code must not produce outbound calls")

	var body map[string]string
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "missing_code", body["error"])
}

func TestHandleRedirectTokenExchangeFails(t *testing.T) {
	server, _ := fakeDiscord(t, http.StatusBadRequest, http.StatusOK)
	defer server.Close()

	app := newAuthApp(server.URL, newMemStore(), nil, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/auth/discord/redirect?code=abc", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	var body map[string]string
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "token_exchange_failed", body["error"])
	assert.NotEmpty(t, body["details"])
}

func TestHandleRedirectProfileFetchFails(t *testing.T) {
	server, _ := fakeDiscord(t, http.StatusOK, http.StatusUnauthorized)
	defer server.Close()

	app := newAuthApp(server.URL, newMemStore(), nil, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/auth/discord/redirect?code=abc", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	var body map[string]string
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "profile_fetch_failed", body["error"])
}

func TestHandleRedirectSuccess(t *testing.T) {
	server, _ := fakeDiscord(t, http.StatusOK, http.StatusOK)
	defer server.Close()

	store := newMemStore()
	assigner := &recordingAssigner{out: watcher.RoleOutcome{Granted: true}}
	app := newAuthApp(server.URL, store, assigner, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/auth/discord/redirect?code=abc", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, DiscordAppURL, resp.Header.Get("Location"))

	record, err := store.Get(context.Background(), "111111111111111111")
	assert.NoError(t, err)
	assert.Equal(t, "tester", record.Username)
	assert.Equal(t, "user@example.com", record.Email)
	assert.Equal(t, 2, record.PremiumType)
	assert.Equal(t, models.STATUS_VERIFIED, record.Status)
	assert.Contains(t, record.AvatarURL, "cdn.discordapp.com/avatars/111111111111111111")
	assert.WithinDuration(t, time.Now(), record.VerifiedAt, 10*time.Second)

	assert.Equal(t, []string{"111111111111111111"}, assigner.Calls())
}

func TestHandleRedirectRoleFailureStillRedirects(t *testing.T) {
	server, _ := fakeDiscord(t, http.StatusOK, http.StatusOK)
	defer server.Close()

	assigner := &recordingAssigner{out: watcher.RoleOutcome{Reason: watcher.ReasonRoleNotFound}}
	app := newAuthApp(server.URL, newMemStore(), assigner, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/auth/discord/redirect?code=abc", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, DiscordAppURL, resp.Header.Get("Location"))
}

func TestHandleRedirectDelegatesRoleViaQueue(t *testing.T) {
	server, _ := fakeDiscord(t, http.StatusOK, http.StatusOK)
	defer server.Close()

	queue := &recordingEnqueuer{}
	app := newAuthApp(server.URL, newMemStore(), nil, queue)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/auth/discord/redirect?code=abc", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Contains(t, queue.Jobs(), jobqueue.JobTypeAssignRole)
}
