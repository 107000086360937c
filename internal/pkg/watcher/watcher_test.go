package watcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chouha-community/gatekeeper/app/models"
	"github.com/chouha-community/gatekeeper/internal/pkg/config"
	"github.com/chouha-community/gatekeeper/internal/pkg/discord"
	"github.com/chouha-community/gatekeeper/internal/pkg/gateway"
	"github.com/chouha-community/gatekeeper/internal/pkg/verifystore"
)

type stubSession struct {
	ready bool
}

func (s *stubSession) Ready() bool { return s.ready }

type memoryStore struct {
	users map[string]*models.VerifiedUser
}

func (s *memoryStore) Name() string { return "memory" }

func (s *memoryStore) Put(ctx context.Context, user *models.VerifiedUser) error {
	s.users[user.DiscordID] = user
	return nil
}

func (s *memoryStore) Get(ctx context.Context, discordID string) (*models.VerifiedUser, error) {
	if u, ok := s.users[discordID]; ok {
		return u, nil
	}
	return nil, verifystore.ErrNotFound
}

func (s *memoryStore) List(ctx context.Context) ([]models.VerifiedUser, error) {
	var out []models.VerifiedUser
	for _, u := range s.users {
		out = append(out, *u)
	}
	return out, nil
}

func newTestWatcher(serverURL string, store verifystore.Store) *Watcher {
	cfg := &config.Config{
		GuildID:          "100000000000000001",
		WelcomeChannelID: "100000000000000002",
		VerifiedRoleName: "Verified",
		SiteURL:          "https://verify.example.com",
	}
	bot := discord.NewBotClient("test-token")
	bot.APIBaseURL = serverURL
	w := New(cfg, bot, &stubSession{ready: true}, store)
	w.readyPollInterval = time.Millisecond
	return w
}

func TestAssignVerifiedRoleInvalidID(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	w := newTestWatcher(server.URL, &memoryStore{users: map[string]*models.VerifiedUser{}})

	for _, id := range []string{"", "abc", "1234", "1234567890123456789012", "12345678901234567x"} {
		outcome := w.AssignVerifiedRole(context.Background(), id)
		assert.False(t, outcome.Granted)
		assert.Equal(t, ReasonInvalidID, outcome.Reason)
	}
	assert.False(t, called, "invalid IDs must not reach the API")
}

func TestAssignVerifiedRoleGrants(t *testing.T) {
	var rolePut string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/guilds/100000000000000001/roles":
			w.Write([]byte(`[{"id":"900000000000000001","name":"Verified"},{"id":"900000000000000002","name":"Mod"}]`))
		case r.URL.Path == "/guilds/100000000000000001/members/111111111111111111":
			w.Write([]byte(`{"user":{"id":"111111111111111111","username":"tester"},"roles":[]}`))
		case r.Method == http.MethodPut:
			rolePut = r.URL.Path
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	w := newTestWatcher(server.URL, &memoryStore{users: map[string]*models.VerifiedUser{}})
	outcome := w.AssignVerifiedRole(context.Background(), "111111111111111111")

	assert.True(t, outcome.Granted)
	assert.False(t, outcome.AlreadyHad)
	assert.Empty(t, outcome.Reason)
	assert.Equal(t, "/guilds/100000000000000001/members/111111111111111111/roles/900000000000000001", rolePut)
}

func TestAssignVerifiedRoleAlreadyHad(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/guilds/100000000000000001/roles":
			w.Write([]byte(`[{"id":"900000000000000001","name":"Verified"}]`))
		case "/guilds/100000000000000001/members/111111111111111111":
			w.Write([]byte(`{"user":{"id":"111111111111111111"},"roles":["900000000000000001"]}`))
		default:
			t.Errorf("unexpected call: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	w := newTestWatcher(server.URL, &memoryStore{users: map[string]*models.VerifiedUser{}})
	outcome := w.AssignVerifiedRole(context.Background(), "111111111111111111")

	assert.True(t, outcome.Granted)
	assert.True(t, outcome.AlreadyHad)
}

func TestAssignVerifiedRoleCaseSensitiveName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/guilds/100000000000000001/roles" {
			w.Write([]byte(`[{"id":"900000000000000001","name":"verified"}]`))
			return
		}
		t.Errorf("unexpected call: %s %s", r.Method, r.URL.Path)
	}))
	defer server.Close()

	w := newTestWatcher(server.URL, &memoryStore{users: map[string]*models.VerifiedUser{}})
	outcome := w.AssignVerifiedRole(context.Background(), "111111111111111111")

	assert.False(t, outcome.Granted)
	assert.Equal(t, ReasonRoleNotFound, outcome.Reason)
}

func TestAssignVerifiedRoleMemberNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/guilds/100000000000000001/roles":
			w.Write([]byte(`[{"id":"900000000000000001","name":"Verified"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"Unknown Member"}`))
		}
	}))
	defer server.Close()

	w := newTestWatcher(server.URL, &memoryStore{users: map[string]*models.VerifiedUser{}})
	outcome := w.AssignVerifiedRole(context.Background(), "111111111111111111")

	assert.False(t, outcome.Granted)
	assert.Equal(t, ReasonMemberNotFound, outcome.Reason)
}

func TestRoleOutcomeRetryable(t *testing.T) {
	assert.True(t, RoleOutcome{Reason: ReasonAPIError}.Retryable())
	assert.True(t, RoleOutcome{Reason: ReasonGuildNotFound}.Retryable())
	assert.False(t, RoleOutcome{Reason: ReasonInvalidID}.Retryable())
	assert.False(t, RoleOutcome{Reason: ReasonMemberNotFound}.Retryable())
	assert.False(t, RoleOutcome{Reason: ReasonRoleNotFound}.Retryable())
	assert.False(t, RoleOutcome{Granted: true}.Retryable())
}

func TestAssignVerifiedRoleAPIErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	w := newTestWatcher(server.URL, &memoryStore{users: map[string]*models.VerifiedUser{}})
	outcome := w.AssignVerifiedRole(context.Background(), "111111111111111111")

	assert.False(t, outcome.Granted)
	assert.Equal(t, ReasonAPIError, outcome.Reason)
	assert.True(t, outcome.Retryable())
}

func TestHandleMemberAddSendsWelcome(t *testing.T) {
	var sent *discord.Message
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/channels/100000000000000002" && r.Method == http.MethodGet:
			w.Write([]byte(`{"id":"100000000000000002","name":"welcome"}`))
		case r.URL.Path == "/channels/100000000000000002/messages" && r.Method == http.MethodPost:
			var msg discord.Message
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
			sent = &msg
			w.Write([]byte(`{}`))
		default:
			t.Errorf("unexpected call: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	w := newTestWatcher(server.URL, &memoryStore{users: map[string]*models.VerifiedUser{}})
	w.HandleMemberAdd(gateway.MemberAddEvent{
		GuildID: "100000000000000001",
		User:    &discord.User{ID: "111111111111111111", Username: "newcomer"},
	})

	if assert.NotNil(t, sent, "welcome message must be sent") {
		assert.Contains(t, sent.Content, "<@111111111111111111>")
		assert.Len(t, sent.Embeds, 1)
		assert.Len(t, sent.Embeds[0].Fields, 3)

		row := sent.Components[0]
		assert.Equal(t, discord.ComponentActionRow, row.Type)
		button := row.Components[0]
		assert.Equal(t, discord.ButtonStyleLink, button.Style)
		assert.Equal(t, "https://verify.example.com/login", button.URL)
	}
}

func TestWelcomeButtonFallsBackToAuthorizeURL(t *testing.T) {
	cfg := &config.Config{
		GuildID:          "100000000000000001",
		WelcomeChannelID: "100000000000000002",
		VerifiedRoleName: "Verified",
		ClientID:         "client-id",
		RedirectURI:      "https://verify.example.com/api/auth/discord/redirect",
	}
	w := New(cfg, discord.NewBotClient("test-token"), &stubSession{ready: true}, &memoryStore{users: map[string]*models.VerifiedUser{}})

	msg := w.welcomeMessage(&discord.User{ID: "111111111111111111", Username: "newcomer"})
	button := msg.Components[0].Components[0]
	assert.Contains(t, button.URL, "https://discord.com/oauth2/authorize")
	assert.Contains(t, button.URL, "client_id=client-id")
}

func TestHandleMemberAddDeduplicates(t *testing.T) {
	sends := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			sends++
		}
		w.Write([]byte(`{"id":"100000000000000002","name":"welcome"}`))
	}))
	defer server.Close()

	w := newTestWatcher(server.URL, &memoryStore{users: map[string]*models.VerifiedUser{}})
	ev := gateway.MemberAddEvent{
		GuildID: "100000000000000001",
		User:    &discord.User{ID: "111111111111111111", Username: "newcomer"},
	}
	w.HandleMemberAdd(ev)
	w.HandleMemberAdd(ev)

	assert.Equal(t, 1, sends)
}

func TestHandleMemberAddIgnoresBotsAndForeignGuilds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call: %s %s", r.Method, r.URL.Path)
	}))
	defer server.Close()

	w := newTestWatcher(server.URL, &memoryStore{users: map[string]*models.VerifiedUser{}})

	w.HandleMemberAdd(gateway.MemberAddEvent{
		GuildID: "100000000000000001",
		User:    &discord.User{ID: "111111111111111111", Bot: true},
	})
	w.HandleMemberAdd(gateway.MemberAddEvent{
		GuildID: "500000000000000005",
		User:    &discord.User{ID: "222222222222222222"},
	})
}

func TestReconcileOnceGrantsForStoredMembers(t *testing.T) {
	var rolePuts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/guilds/100000000000000001/roles":
			w.Write([]byte(`[{"id":"900000000000000001","name":"Verified"}]`))
		case r.URL.Path == "/guilds/100000000000000001/members" || r.URL.Path == "/guilds/100000000000000001/members/":
			w.Write([]byte(`[
				{"user":{"id":"111111111111111111","username":"verified-no-role"},"roles":[]},
				{"user":{"id":"222222222222222222","username":"unverified"},"roles":[]},
				{"user":{"id":"333333333333333333","username":"has-role"},"roles":["900000000000000001"]},
				{"user":{"id":"444444444444444444","username":"bot","bot":true},"roles":[]}
			]`))
		case r.URL.Path == "/guilds/100000000000000001/members/111111111111111111":
			w.Write([]byte(`{"user":{"id":"111111111111111111"},"roles":[]}`))
		case r.Method == http.MethodPut:
			rolePuts = append(rolePuts, r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected call: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	store := &memoryStore{users: map[string]*models.VerifiedUser{
		"111111111111111111": {DiscordID: "111111111111111111", Username: "verified-no-role"},
	}}
	w := newTestWatcher(server.URL, store)
	w.ReconcileOnce(context.Background())

	assert.Equal(t, []string{"/guilds/100000000000000001/members/111111111111111111/roles/900000000000000001"}, rolePuts)
}
