package routes

import (
	"github.com/anjiri1684/tuition_billing/handlers"
	"github.com/gofiber/fiber/v2"
)

// Setup mounts every route group.
func Setup(app *fiber.App, h *handlers.Handler) {
	PublicRoutes(app)
	ReconciliationRoutes(app, h)
	PaymentRoutes(app, h)
	LedgerRoutes(app, h)
	AlertRoutes(app, h)
}
