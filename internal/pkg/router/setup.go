package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/chouha-community/gatekeeper/app/controllers"
	"github.com/chouha-community/gatekeeper/internal/pkg/config"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Deps carries the wired controllers into the routers.
type Deps struct {
	Cfg    *config.Config
	Auth   *controllers.AuthController
	Export *controllers.ExportController
}

// InstallRouter registers all HTTP and API routes.
func InstallRouter(app *fiber.App, deps Deps) {
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
