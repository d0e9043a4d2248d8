package router

import (
	"github.com/MarvinWeber/LiftLog/app/controllers"
	"github.com/MarvinWeber/LiftLog/internal/pkg/constants"
	"github.com/MarvinWeber/LiftLog/internal/pkg/middleware"
	"github.com/MarvinWeber/LiftLog/internal/pkg/session"

	"github.com/gofiber/fiber/v2"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	h.registerWebhookRoutes(app)
}

// registerWebhookRoutes installs the provider-facing endpoints. They do not
// belong under /api: they are authenticated by provider secret, not by user
// session, and must never pass the API limiter shared with client traffic.
func (h HttpRouter) registerWebhookRoutes(app *fiber.App) {
	webhooks := app.Group(constants.WebhooksRoute)
	webhooks.Post("/revenuecat", controllers.HandleRevenueCatWebhook)
	webhooks.Post("/stripe", controllers.HandleStripeWebhook)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
