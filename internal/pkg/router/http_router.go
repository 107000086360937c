package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/chouha-community/gatekeeper/app/controllers"
)

type HttpRouter struct {
	deps Deps
}

func NewHttpRouter(deps Deps) *HttpRouter {
	return &HttpRouter{deps: deps}
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/", controllers.HandleIndex)
	app.Get("/login", h.deps.Auth.HandleLogin)

	// The OAuth redirect is also reachable without the /api prefix; both
	// spellings appear in existing app configurations.
	app.Get("/auth/discord/redirect", h.deps.Auth.HandleRedirect)
}
