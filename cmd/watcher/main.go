package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/chouha-community/gatekeeper/app/repository"
	"github.com/chouha-community/gatekeeper/internal/pkg/cache"
	"github.com/chouha-community/gatekeeper/internal/pkg/config"
	"github.com/chouha-community/gatekeeper/internal/pkg/database"
	"github.com/chouha-community/gatekeeper/internal/pkg/discord"
	"github.com/chouha-community/gatekeeper/internal/pkg/env"
	"github.com/chouha-community/gatekeeper/internal/pkg/gateway"
	"github.com/chouha-community/gatekeeper/internal/pkg/jobqueue"
	"github.com/chouha-community/gatekeeper/internal/pkg/verifystore"
	"github.com/chouha-community/gatekeeper/internal/pkg/watcher"
)

// The membership watcher: holds the gateway session, welcomes new members,
// grants the verified role and reconciles the guild against the store.
func main() {
	env.SetupEnvFile()

	cfg := config.FromEnv()
	if err := cfg.ValidateWatcher(); err != nil {
		log.Fatalf("[Watcher] Invalid configuration: %v", err)
	}

	cache.SetupCache()

	if cfg.StorageBackend == config.StorageMySQL {
		database.SetupDatabase()
		repository.InitializeFactory(database.GetDB())
	}

	store, err := verifystore.FromConfig(cfg)
	if err != nil {
		log.Fatalf("[Watcher] Storage backend setup failed: %v", err)
	}
	log.Infof("[Watcher] Using %s storage backend", store.Name())

	bot := discord.NewBotClient(cfg.BotToken)
	session := gateway.NewSession(cfg.BotToken)
	w := watcher.New(cfg, bot, session, store)

	session.OnReady = func(ev gateway.ReadyEvent) {
		log.Infof("[Watcher] Gateway ready, watching guild %s", cfg.GuildID)
	}
	session.OnMemberAdd = func(ev gateway.MemberAddEvent) {
		go w.HandleMemberAdd(ev)
	}
	session.OnDisconnect = func(err error) {
		log.Warnf("[Watcher] Gateway connection lost: %v", err)
	}

	manager := jobqueue.GetManager()
	queue := manager.GetQueue()

	queue.RegisterHandler(jobqueue.JobTypeAssignRole, func(ctx context.Context, job *jobqueue.Job) error {
		payload, err := jobqueue.AssignRoleJobPayloadFromMap(job.Payload)
		if err != nil {
			return err
		}
		outcome := w.AssignVerifiedRole(ctx, payload.DiscordID)
		if outcome.Granted {
			return nil
		}
		// Transient failures go back to the queue for the retry/backoff
		// machinery; permanent ones would fail identically every attempt.
		if outcome.Retryable() {
			return fmt.Errorf("role assignment for %s failed: %s", payload.DiscordID, outcome.Reason)
		}
		log.Warnf("[Watcher] Dropping role assignment for %s: %s", payload.DiscordID, outcome.Reason)
		return nil
	})
	queue.RegisterHandler(jobqueue.JobTypeNotify, func(ctx context.Context, job *jobqueue.Job) error {
		payload, err := jobqueue.NotifyJobPayloadFromMap(job.Payload)
		if err != nil {
			return err
		}
		user := &discord.User{
			ID:          payload.DiscordID,
			Username:    payload.Username,
			Email:       payload.Email,
			Avatar:      payload.AvatarHash,
			PremiumType: payload.PremiumType,
		}
		return bot.NotifyVerification(ctx, cfg.LogChannelID, user, payload.RoleGranted, payload.Backend)
	})

	manager.SetReconciler(w.ReconcileOnce)
	manager.SetStatusReporter(func() string {
		if session.Ready() {
			return "gateway=up uptime=" + session.Uptime().Round(time.Second).String()
		}
		return "gateway=down"
	})
	if cfg.StorageBackend == config.StorageMySQL {
		manager.EnableCounterFlush()
	}
	manager.Start()

	ctx, cancel := context.WithCancel(context.Background())
	go session.Run(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("[Watcher] Shutting down")
	cancel()
	manager.Stop()
}
