package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// BotClient issues bot-token-authenticated calls against the Discord REST API.
// All calls use a 10 second timeout; failures are returned as errors and the
// callers decide whether they are hard or best-effort.
type BotClient struct {
	Token      string
	APIBaseURL string

	HTTPClient *http.Client
}

// NewBotClient builds a REST client for the given bot token.
func NewBotClient(token string) *BotClient {
	return &BotClient{
		Token:      token,
		APIBaseURL: defaultAPIBaseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *BotClient) do(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	if strings.TrimSpace(c.Token) == "" {
		return errors.New("DISCORD_BOT_TOKEN is not configured")
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.APIBaseURL, "/")+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return err
		}
	}
	return nil
}

// APIError carries the upstream status so callers can categorize 403/404.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// GuildRoles fetches the full role list of a guild.
func (c *BotClient) GuildRoles(ctx context.Context, guildID string) ([]Role, error) {
	var roles []Role
	err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/roles", nil, &roles)
	return roles, err
}

// AddMemberRole grants a role to a guild member.
func (c *BotClient) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	return c.do(ctx, http.MethodPut, "/guilds/"+guildID+"/members/"+userID+"/roles/"+roleID, struct{}{}, nil)
}

// GetGuildMember fetches a single guild member.
func (c *BotClient) GetGuildMember(ctx context.Context, guildID, userID string) (*Member, error) {
	var member Member
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/members/"+userID, nil, &member); err != nil {
		return nil, err
	}
	return &member, nil
}

// ListGuildMembers pages through the guild member list, 1000 members per call.
// Large guilds make this a full scan; the reconciliation sweep accepts that.
func (c *BotClient) ListGuildMembers(ctx context.Context, guildID string) ([]Member, error) {
	const pageSize = 1000

	var all []Member
	after := ""
	for {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(pageSize))
		if after != "" {
			q.Set("after", after)
		}

		var page []Member
		if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/members?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
		// The cursor is the last member that actually carries a user object.
		after = ""
		for i := len(page) - 1; i >= 0; i-- {
			if page[i].User != nil && page[i].User.ID != "" {
				after = page[i].User.ID
				break
			}
		}
		if after == "" {
			return all, nil
		}
	}
}

// GetChannel fetches a channel by ID (used for fetch-on-demand resolution).
func (c *BotClient) GetChannel(ctx context.Context, channelID string) (*Channel, error) {
	var ch Channel
	if err := c.do(ctx, http.MethodGet, "/channels/"+channelID, nil, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// CreateMessage posts a message to a channel.
func (c *BotClient) CreateMessage(ctx context.Context, channelID string, msg *Message) error {
	return c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", msg, nil)
}
