package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/chouha-community/gatekeeper/app/models"
	"github.com/chouha-community/gatekeeper/internal/pkg/config"
	"github.com/chouha-community/gatekeeper/internal/pkg/discord"
	"github.com/chouha-community/gatekeeper/internal/pkg/jobqueue"
	"github.com/chouha-community/gatekeeper/internal/pkg/metrics/counter"
	"github.com/chouha-community/gatekeeper/internal/pkg/verifystore"
	"github.com/chouha-community/gatekeeper/internal/pkg/watcher"
)

// DiscordAppURL is where every completed callback lands, success or not.
const DiscordAppURL = "https://discord.com/app"

// RoleAssigner grants the verified role in-process (bot credentials present).
type RoleAssigner interface {
	AssignVerifiedRole(ctx context.Context, discordID string) watcher.RoleOutcome
}

// JobEnqueuer hands role assignment to the watcher process via the queue.
type JobEnqueuer interface {
	EnqueueJob(jobType jobqueue.JobType, payload map[string]interface{}) (*jobqueue.Job, error)
}

// AuthController owns the OAuth verification flow. Token exchange and profile
// fetch are the only hard failures; everything after the profile is
// best-effort and the user always ends up back on Discord.
type AuthController struct {
	cfg      *config.Config
	oauth    *discord.OAuthClient
	store    verifystore.Store
	bot      *discord.BotClient
	assigner RoleAssigner
	queue    JobEnqueuer
}

// NewAuthController wires the verification flow. bot, assigner and queue may
// be nil depending on deployment mode.
func NewAuthController(cfg *config.Config, oauth *discord.OAuthClient, store verifystore.Store, bot *discord.BotClient, assigner RoleAssigner, queue JobEnqueuer) *AuthController {
	return &AuthController{
		cfg:      cfg,
		oauth:    oauth,
		store:    store,
		bot:      bot,
		assigner: assigner,
		queue:    queue,
	}
}

// HandleLogin redirects the browser to the Discord consent screen.
func (ac *AuthController) HandleLogin(c *fiber.Ctx) error {
	authURL, err := ac.oauth.AuthorizeURL()
	if err != nil {
		log.Errorf("[Auth] Cannot build authorize URL: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "configuration_error",
			"message": "OAuth is not configured",
			"details": err.Error(),
		})
	}
	return c.Redirect(authURL, fiber.StatusFound)
}

// HandleRedirect completes the OAuth flow: exchange the code, fetch the
// profile, then run the best-effort chain (persist, role, ops notification)
// before sending the browser back to Discord.
func (ac *AuthController) HandleRedirect(c *fiber.Ctx) error {
	code := c.Query("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "missing_code",
			"message": "No authorization code in callback",
		})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 30*time.Second)
	defer cancel()

	token, err := ac.oauth.ExchangeCode(ctx, code)
	if err != nil {
		log.Errorf("[Auth] Token exchange failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "token_exchange_failed",
			"message": "Could not exchange the authorization code",
			"details": err.Error(),
		})
	}

	user, err := ac.oauth.FetchUser(ctx, token.AccessToken)
	if err != nil {
		log.Errorf("[Auth] Profile fetch failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "profile_fetch_failed",
			"message": "Could not load the Discord profile",
			"details": err.Error(),
		})
	}

	log.Infof("[Auth] Verification completed for %s (%s)", user.Username, user.ID)
	ac.completeVerification(user)

	return c.Redirect(DiscordAppURL, fiber.StatusFound)
}

// completeVerification runs the downstream chain. Nothing in here may produce
// a user-visible failure.
func (ac *AuthController) completeVerification(user *discord.User) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	record := models.NewVerifiedUser(user.ID, user.Username, user.Email,
		discord.AvatarURL(user.ID, user.Avatar), user.PremiumType, time.Now().UTC())
	if err := record.Validate(); err != nil {
		log.Warnf("[Auth] Record for %s failed validation, storing anyway: %v", user.ID, err)
	}
	if err := ac.store.Put(ctx, record); err != nil {
		log.Errorf("[Auth] Store put failed for %s: %v", user.ID, err)
	}

	if err := counter.AddVerification(); err != nil {
		log.Warnf("[Auth] Counter increment failed: %v", err)
	}

	roleGranted := ac.handleRole(ctx, user)
	ac.notifyOps(ctx, user, roleGranted)
}

func (ac *AuthController) handleRole(ctx context.Context, user *discord.User) bool {
	if ac.assigner != nil {
		outcome := ac.assigner.AssignVerifiedRole(ctx, user.ID)
		if !outcome.Granted {
			log.Warnf("[Auth] Role not granted for %s: %s", user.ID, outcome.Reason)
		}
		return outcome.Granted
	}

	if ac.queue != nil {
		payload := jobqueue.AssignRoleJobPayload{DiscordID: user.ID, Username: user.Username}
		if _, err := ac.queue.EnqueueJob(jobqueue.JobTypeAssignRole, payload.ToMap()); err != nil {
			log.Errorf("[Auth] Could not enqueue role assignment for %s: %v", user.ID, err)
		}
		return false
	}

	log.Debugf("[Auth] No role assignment path configured, skipping for %s", user.ID)
	return false
}

func (ac *AuthController) notifyOps(ctx context.Context, user *discord.User, roleGranted bool) {
	if ac.cfg.LogChannelID == "" {
		return
	}

	if ac.bot != nil {
		if err := ac.bot.NotifyVerification(ctx, ac.cfg.LogChannelID, user, roleGranted, ac.store.Name()); err != nil {
			log.Warnf("[Auth] Ops notification failed for %s: %v", user.ID, err)
		}
		return
	}

	if ac.queue != nil {
		payload := jobqueue.NotifyJobPayload{
			DiscordID:   user.ID,
			Username:    user.Username,
			Email:       user.Email,
			AvatarHash:  user.Avatar,
			PremiumType: user.PremiumType,
			RoleGranted: roleGranted,
			Backend:     ac.store.Name(),
		}
		if _, err := ac.queue.EnqueueJob(jobqueue.JobTypeNotify, payload.ToMap()); err != nil {
			log.Warnf("[Auth] Could not enqueue ops notification for %s: %v", user.ID, err)
		}
	}
}
