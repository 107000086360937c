package discord

import (
	"context"
	"fmt"
	"time"
)

// NotifyVerification posts a verification summary embed to the ops log
// channel. Callers treat failures as best-effort and only log them.
func (c *BotClient) NotifyVerification(ctx context.Context, channelID string, user *User, roleGranted bool, backend string) error {
	if channelID == "" {
		return nil
	}

	roleLine := "no"
	if roleGranted {
		roleLine = "yes"
	}
	thumbnail := AvatarURL(user.ID, user.Avatar)
	if thumbnail == "" {
		thumbnail = DefaultAvatarURL
	}

	embed := Embed{
		Title: "Member verified",
		Color: 0x57F287,
		Fields: []EmbedField{
			{Name: "Member", Value: fmt.Sprintf("<@%s> (%s)", user.ID, user.Username), Inline: true},
			{Name: "Email", Value: orDash(user.Email), Inline: true},
			{Name: "Nitro", Value: premiumLabel(user.PremiumType), Inline: true},
			{Name: "Role granted", Value: roleLine, Inline: true},
			{Name: "Storage", Value: backend, Inline: true},
		},
		Thumbnail: &EmbedImage{URL: thumbnail},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	return c.CreateMessage(ctx, channelID, &Message{Embeds: []Embed{embed}})
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func premiumLabel(premiumType int) string {
	switch premiumType {
	case 1:
		return "Nitro Classic"
	case 2:
		return "Nitro"
	case 3:
		return "Nitro Basic"
	default:
		return "None"
	}
}
