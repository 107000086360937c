package main

import (
	"fmt"
	"log"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"

	"github.com/chouha-community/gatekeeper/app/controllers"
	"github.com/chouha-community/gatekeeper/app/repository"
	"github.com/chouha-community/gatekeeper/internal/pkg/cache"
	"github.com/chouha-community/gatekeeper/internal/pkg/config"
	"github.com/chouha-community/gatekeeper/internal/pkg/database"
	"github.com/chouha-community/gatekeeper/internal/pkg/discord"
	"github.com/chouha-community/gatekeeper/internal/pkg/env"
	"github.com/chouha-community/gatekeeper/internal/pkg/jobqueue"
	"github.com/chouha-community/gatekeeper/internal/pkg/router"
	"github.com/chouha-community/gatekeeper/internal/pkg/verifystore"
	"github.com/chouha-community/gatekeeper/internal/pkg/watcher"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

// NewApplication wires the verification callback service.
func NewApplication() *fiber.App {
	env.SetupEnvFile()

	cfg := config.FromEnv()
	if err := cfg.ValidateWeb(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	cache.SetupCache()

	if cfg.StorageBackend == config.StorageMySQL {
		database.SetupDatabase()
		repository.InitializeFactory(database.GetDB())
	}

	store, err := verifystore.FromConfig(cfg)
	if err != nil {
		log.Fatalf("storage backend setup failed: %v", err)
	}

	oauthClient := discord.NewOAuthClient(cfg)

	// With bot credentials the role grant and ops notification run in-process;
	// without them both are delegated to the watcher via the job queue.
	var (
		bot      *discord.BotClient
		assigner controllers.RoleAssigner
		queue    controllers.JobEnqueuer
	)
	manager := jobqueue.GetManager()
	if cfg.HasBotCredentials() {
		bot = discord.NewBotClient(cfg.BotToken)
		assigner = watcher.New(cfg, bot, nil, store)
	} else {
		queue = manager.GetQueue()
	}

	if cfg.StorageBackend == config.StorageMySQL {
		manager.EnableCounterFlush()
	}
	manager.Start()

	engine := html.New("./views", ".html")
	app := fiber.New(fiber.Config{
		Views: engine,
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())
	app.Static("/", "./public/assets")

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app, router.Deps{
		Cfg:    cfg,
		Auth:   controllers.NewAuthController(cfg, oauthClient, store, bot, assigner, queue),
		Export: controllers.NewExportController(store),
	})

	return app
}
