package watcher

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/chouha-community/gatekeeper/internal/pkg/config"
	"github.com/chouha-community/gatekeeper/internal/pkg/discord"
	"github.com/chouha-community/gatekeeper/internal/pkg/gateway"
	"github.com/chouha-community/gatekeeper/internal/pkg/metrics/counter"
	"github.com/chouha-community/gatekeeper/internal/pkg/verifystore"
)

// ReadyChecker reports whether the gateway session can deliver messages.
type ReadyChecker interface {
	Ready() bool
}

// RoleOutcome categorizes the result of a role assignment attempt. Granted
// covers both a fresh grant and a member who already had the role; Reason is
// set only on failure.
type RoleOutcome struct {
	Granted    bool
	AlreadyHad bool
	Reason     string
}

// Retryable reports whether a failed assignment may succeed on a later
// attempt. API and guild lookup failures are transient; a malformed ID, a
// missing member or a missing role will not change between retries.
func (o RoleOutcome) Retryable() bool {
	switch o.Reason {
	case ReasonAPIError, ReasonGuildNotFound:
		return true
	}
	return false
}

// Failure reasons for RoleOutcome.
const (
	ReasonInvalidID      = "invalid_id"
	ReasonGuildNotFound  = "guild_not_found"
	ReasonMemberNotFound = "member_not_found"
	ReasonRoleNotFound   = "role_not_found"
	ReasonAPIError       = "api_error"
)

// Watcher reacts to member joins with a welcome message and keeps guild roles
// in sync with the verification store. Every step past dedup is best-effort:
// errors are logged, never propagated to the gateway session.
type Watcher struct {
	cfg     *config.Config
	bot     *discord.BotClient
	session ReadyChecker
	store   verifystore.Store
	dedup   *Deduper

	channelMu      sync.Mutex
	channelChecked bool

	// Ready-wait polling, overridable in tests.
	readyPollInterval time.Duration
	readyPollAttempts int
}

// New creates a watcher. The session may be nil when role assignment is driven
// purely by the job queue (no welcome pipeline).
func New(cfg *config.Config, bot *discord.BotClient, session ReadyChecker, store verifystore.Store) *Watcher {
	return &Watcher{
		cfg:               cfg,
		bot:               bot,
		session:           session,
		store:             store,
		dedup:             NewDeduper(),
		readyPollInterval: time.Second,
		readyPollAttempts: 10,
	}
}

// HandleMemberAdd runs the welcome pipeline for a join event. Duplicate events
// within the dedup window are dropped silently.
func (w *Watcher) HandleMemberAdd(ev gateway.MemberAddEvent) {
	user := ev.User
	if user.Bot {
		log.Debugf("[Watcher] Ignoring bot join: %s", user.ID)
		return
	}
	if w.cfg.GuildID != "" && ev.GuildID != w.cfg.GuildID {
		log.Debugf("[Watcher] Ignoring join from foreign guild %s", ev.GuildID)
		return
	}
	if !w.dedup.ShouldProcess(user.ID) {
		log.Infof("[Watcher] Duplicate join suppressed for %s (%s)", user.Username, user.ID)
		return
	}

	log.Infof("[Watcher] Member joined: %s (%s)", user.Username, user.ID)

	if !w.waitForReady() {
		log.Warnf("[Watcher] Gateway not ready, skipping welcome for %s", user.ID)
		w.dedup.Forget(user.ID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if !w.resolveWelcomeChannel(ctx) {
		w.dedup.Forget(user.ID)
		return
	}

	msg := w.welcomeMessage(user)
	if err := w.bot.CreateMessage(ctx, w.cfg.WelcomeChannelID, msg); err != nil {
		log.Errorf("[Watcher] Failed to send welcome for %s: %v", user.ID, err)
		return
	}
	log.Infof("[Watcher] Welcome sent for %s", user.Username)

	if err := counter.AddWelcomeSent(); err != nil {
		log.Warnf("[Watcher] Counter increment failed: %v", err)
	}
}

// waitForReady polls the gateway readiness flag once per second, up to ten
// times. Joins delivered during a reconnect window wait here instead of
// hitting the REST API with a dead session.
func (w *Watcher) waitForReady() bool {
	if w.session == nil {
		return true
	}
	for i := 0; i < w.readyPollAttempts; i++ {
		if w.session.Ready() {
			return true
		}
		time.Sleep(w.readyPollInterval)
	}
	return w.session.Ready()
}

// resolveWelcomeChannel verifies the configured channel exists. The check runs
// once per process; later sends trust the cached result.
func (w *Watcher) resolveWelcomeChannel(ctx context.Context) bool {
	w.channelMu.Lock()
	defer w.channelMu.Unlock()

	if w.channelChecked {
		return true
	}
	if w.cfg.WelcomeChannelID == "" {
		log.Error("[Watcher] DISCORD_WELCOME_CHANNEL_ID is not configured")
		return false
	}

	ch, err := w.bot.GetChannel(ctx, w.cfg.WelcomeChannelID)
	if err != nil {
		log.Errorf("[Watcher] Welcome channel %s not resolvable: %v", w.cfg.WelcomeChannelID, err)
		return false
	}
	log.Infof("[Watcher] Welcome channel resolved: #%s", ch.Name)
	w.channelChecked = true
	return true
}

// verificationURL is the link behind the welcome button: the site's login page
// when SITE_URL is set, otherwise the OAuth authorize URL built directly from
// the client credentials.
func (w *Watcher) verificationURL() string {
	if w.cfg.SiteURL != "" {
		return w.cfg.SiteURL + "/login"
	}
	if w.cfg.ClientID != "" && w.cfg.RedirectURI != "" {
		if u, err := discord.NewOAuthClient(w.cfg).AuthorizeURL(); err == nil {
			return u
		}
	}
	return ""
}

func (w *Watcher) welcomeMessage(user *discord.User) *discord.Message {
	thumbnail := discord.AvatarURL(user.ID, user.Avatar)
	if thumbnail == "" {
		thumbnail = discord.DefaultAvatarURL
	}

	embed := discord.Embed{
		Title:       "Welcome to the Chouha Community!",
		Description: fmt.Sprintf("Hey <@%s>, great to have you here!", user.ID),
		Color:       0x5865F2,
		Fields: []discord.EmbedField{
			{
				Name:  "1. Verify yourself",
				Value: "Click the button below and sign in with Discord to unlock the server.",
			},
			{
				Name:  "2. Read the rules",
				Value: "Have a look at the rules channel so you know how we roll.",
			},
			{
				Name:  "3. Say hello",
				Value: "Drop a message in the chat once you are verified.",
			},
		},
		Thumbnail: &discord.EmbedImage{URL: thumbnail},
		Footer:    &discord.EmbedFooter{Text: "Chouha Community Onboarding"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	msg := &discord.Message{
		Content: fmt.Sprintf("<@%s>", user.ID),
		Embeds:  []discord.Embed{embed},
	}

	if verifyURL := w.verificationURL(); verifyURL != "" {
		msg.Components = []discord.Component{
			{
				Type: discord.ComponentActionRow,
				Components: []discord.Component{
					{
						Type:  discord.ComponentButton,
						Style: discord.ButtonStyleLink,
						Label: "Verify now",
						URL:   verifyURL,
					},
				},
			},
		}
	}
	return msg
}

// AssignVerifiedRole grants the configured role to a member. The role is
// matched by exact, case-sensitive name. All failure paths are categorized so
// callers can log and count them without parsing errors.
func (w *Watcher) AssignVerifiedRole(ctx context.Context, discordID string) RoleOutcome {
	if !discord.ValidSnowflake(discordID) {
		log.Warnf("[Watcher] Rejecting role assignment for malformed ID: %q", discordID)
		return RoleOutcome{Reason: ReasonInvalidID}
	}

	roles, err := w.bot.GuildRoles(ctx, w.cfg.GuildID)
	if err != nil {
		if discord.IsStatus(err, http.StatusNotFound) {
			log.Errorf("[Watcher] Guild %s not found", w.cfg.GuildID)
			return RoleOutcome{Reason: ReasonGuildNotFound}
		}
		log.Errorf("[Watcher] Failed to list roles for guild %s: %v", w.cfg.GuildID, err)
		return RoleOutcome{Reason: ReasonAPIError}
	}

	roleID := ""
	for _, role := range roles {
		if role.Name == w.cfg.VerifiedRoleName {
			roleID = role.ID
			break
		}
	}
	if roleID == "" {
		log.Errorf("[Watcher] Role %q does not exist in guild %s", w.cfg.VerifiedRoleName, w.cfg.GuildID)
		return RoleOutcome{Reason: ReasonRoleNotFound}
	}

	member, err := w.bot.GetGuildMember(ctx, w.cfg.GuildID, discordID)
	if err != nil {
		if discord.IsStatus(err, http.StatusNotFound) {
			log.Warnf("[Watcher] Member %s not in guild %s", discordID, w.cfg.GuildID)
			return RoleOutcome{Reason: ReasonMemberNotFound}
		}
		log.Errorf("[Watcher] Failed to fetch member %s: %v", discordID, err)
		return RoleOutcome{Reason: ReasonAPIError}
	}

	if member.HasRole(roleID) {
		log.Infof("[Watcher] Member %s already has role %q", discordID, w.cfg.VerifiedRoleName)
		return RoleOutcome{Granted: true, AlreadyHad: true}
	}

	if err := w.bot.AddMemberRole(ctx, w.cfg.GuildID, discordID, roleID); err != nil {
		log.Errorf("[Watcher] Failed to grant role to %s: %v", discordID, err)
		return RoleOutcome{Reason: ReasonAPIError}
	}

	log.Infof("[Watcher] Granted role %q to member %s", w.cfg.VerifiedRoleName, discordID)
	if err := counter.AddRoleGranted(); err != nil {
		log.Warnf("[Watcher] Counter increment failed: %v", err)
	}
	return RoleOutcome{Granted: true}
}

// ReconcileOnce cross-references the guild member list against the
// verification store and grants the role to verified members who are missing
// it. Runs on a five minute ticker; a single pass tolerates every error.
func (w *Watcher) ReconcileOnce(ctx context.Context) {
	members, err := w.bot.ListGuildMembers(ctx, w.cfg.GuildID)
	if err != nil {
		log.Errorf("[Watcher] Reconciliation aborted, member list failed: %v", err)
		return
	}

	roles, err := w.bot.GuildRoles(ctx, w.cfg.GuildID)
	if err != nil {
		log.Errorf("[Watcher] Reconciliation aborted, role list failed: %v", err)
		return
	}
	roleID := ""
	for _, role := range roles {
		if role.Name == w.cfg.VerifiedRoleName {
			roleID = role.ID
			break
		}
	}
	if roleID == "" {
		log.Errorf("[Watcher] Reconciliation aborted, role %q does not exist", w.cfg.VerifiedRoleName)
		return
	}

	unverified := 0
	granted := 0
	for _, member := range members {
		if member.User == nil || member.User.Bot || member.HasRole(roleID) {
			continue
		}
		unverified++

		if _, err := w.store.Get(ctx, member.User.ID); err != nil {
			if err != verifystore.ErrNotFound {
				log.Warnf("[Watcher] Reconciliation lookup failed for %s: %v", member.User.ID, err)
			}
			continue
		}

		outcome := w.AssignVerifiedRole(ctx, member.User.ID)
		if outcome.Granted && !outcome.AlreadyHad {
			granted++
		}
	}

	log.Infof("[Watcher] Reconciliation pass done: members=%d unverified=%d granted=%d", len(members), unverified, granted)
}
