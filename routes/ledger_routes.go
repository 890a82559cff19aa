package routes

import (
	"github.com/anjiri1684/tuition_billing/handlers"
	"github.com/anjiri1684/tuition_billing/middleware"
	"github.com/gofiber/fiber/v2"
)

// LedgerRoutes mounts the operator-only ledger, plan and collections routes.
// Each area gets its own group so the middleware stays scoped to its prefix.
func LedgerRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")
	operator := func(prefix string) fiber.Router {
		return api.Group(prefix, middleware.Protected(h.JWTSecret), middleware.OperatorRequired())
	}

	entries := operator("/ledger/entries")
	entries.Post("", h.CreateManualEntry)
	entries.Post("/:id/review", h.ReviewEntry)

	enrollments := operator("/enrollments")
	enrollments.Post("/:id/installments", h.GeneratePlan)

	installments := operator("/installments")
	installments.Delete("/:id", h.DeleteInstallment)

	collections := operator("/collections")
	collections.Get("/enrollments/:id/status", h.CollectionsStatus)
}
