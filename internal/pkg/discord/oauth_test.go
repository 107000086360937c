package discord

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chouha-community/gatekeeper/internal/pkg/config"
)

func newTestOAuthClient() *OAuthClient {
	return NewOAuthClient(&config.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://verify.example.com/api/auth/discord/redirect",
	})
}

func TestAuthorizeURL(t *testing.T) {
	c := newTestOAuthClient()

	raw, err := c.AuthorizeURL()
	assert.NoError(t, err)

	u, err := url.Parse(raw)
	assert.NoError(t, err)
	assert.Equal(t, "discord.com", u.Host)
	assert.Equal(t, "/oauth2/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "https://verify.example.com/api/auth/discord/redirect", q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "identify email", q.Get("scope"))
}

func TestAuthorizeURLRequiresClientID(t *testing.T) {
	c := newTestOAuthClient()
	c.ClientID = ""

	_, err := c.AuthorizeURL()
	assert.Error(t, err)
}

func TestExchangeCodeSendsForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600,"scope":"identify email"}`))
	}))
	defer server.Close()

	c := newTestOAuthClient()
	c.TokenURL = server.URL

	token, err := c.ExchangeCode(context.Background(), "the-code")
	assert.NoError(t, err)
	assert.Equal(t, "tok", token.AccessToken)
}

func TestExchangeCodeErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	c := newTestOAuthClient()
	c.TokenURL = server.URL

	_, err := c.ExchangeCode(context.Background(), "expired-code")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status=400")
}

func TestExchangeCodeEmptyAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token_type":"Bearer"}`))
	}))
	defer server.Close()

	c := newTestOAuthClient()
	c.TokenURL = server.URL

	_, err := c.ExchangeCode(context.Background(), "the-code")
	assert.Error(t, err)
}

func TestFetchUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/@me", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"id":"111111111111111111","username":"tester","email":"user@example.com","premium_type":2}`))
	}))
	defer server.Close()

	c := newTestOAuthClient()
	c.APIBaseURL = server.URL

	user, err := c.FetchUser(context.Background(), "tok")
	assert.NoError(t, err)
	assert.Equal(t, "111111111111111111", user.ID)
	assert.Equal(t, "tester", user.Username)
	assert.Equal(t, 2, user.PremiumType)
}

func TestFetchUserMissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestOAuthClient()
	c.APIBaseURL = server.URL

	_, err := c.FetchUser(context.Background(), "tok")
	assert.Error(t, err)
}
