package discord

import (
	"fmt"
	"regexp"
)

// User is the subset of the users/@me payload this system reads.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Avatar      string `json:"avatar"`
	Email       string `json:"email"`
	PremiumType int    `json:"premium_type"`
	Bot         bool   `json:"bot"`
}

// Role as returned by the guild roles endpoint.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Member as returned by the guild members endpoint.
type Member struct {
	User  *User    `json:"user"`
	Nick  string   `json:"nick"`
	Roles []string `json:"roles"`
}

// HasRole reports whether the member carries the given role ID.
func (m *Member) HasRole(roleID string) bool {
	for _, r := range m.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// Embed mirrors the message embed object of the Discord REST API.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Thumbnail   *EmbedImage  `json:"thumbnail,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type EmbedImage struct {
	URL string `json:"url"`
}

type EmbedFooter struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url,omitempty"`
}

// Component types used for the verification link button. Style 5 is the link
// button, which needs no interaction handler on our side.
const (
	ComponentActionRow = 1
	ComponentButton    = 2
	ButtonStyleLink    = 5
)

type Component struct {
	Type       int         `json:"type"`
	Style      int         `json:"style,omitempty"`
	Label      string      `json:"label,omitempty"`
	URL        string      `json:"url,omitempty"`
	Components []Component `json:"components,omitempty"`
}

// Message is the payload for the create-message endpoint.
type Message struct {
	Content    string      `json:"content,omitempty"`
	Embeds     []Embed     `json:"embeds,omitempty"`
	Components []Component `json:"components,omitempty"`
}

// Channel as returned by the get-channel endpoint.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var snowflakeRe = regexp.MustCompile(`^[0-9]{17,19}$`)

// ValidSnowflake reports whether id has the numeric shape of a Discord ID.
// Callers must check this before any network call keyed on a member ID.
func ValidSnowflake(id string) bool {
	return snowflakeRe.MatchString(id)
}

// AvatarURL derives the CDN avatar URL for a user, or "" when the user has no
// custom avatar.
func AvatarURL(userID, avatarHash string) string {
	if avatarHash == "" {
		return ""
	}
	return fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png", userID, avatarHash)
}

// DefaultAvatarURL is used as the embed thumbnail when a user has no avatar.
const DefaultAvatarURL = "https://cdn.discordapp.com/embed/avatars/0.png"
