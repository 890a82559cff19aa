package routes

import (
	"github.com/anjiri1684/tuition_billing/handlers"
	"github.com/anjiri1684/tuition_billing/middleware"
	"github.com/gofiber/fiber/v2"
)

func ReconciliationRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	recon := api.Group("/reconciliation", middleware.Protected(h.JWTSecret), middleware.OperatorRequired())
	recon.Post("/statements", h.ImportStatement)
	recon.Post("/historical", h.ImportHistorical)
	recon.Post("/run", h.RunReconciliation)
	recon.Get("/unmatched-bank", h.UnmatchedBankRecords)
	recon.Get("/pending-matches", h.PendingMatches)
	recon.Get("/reconciled-matches", h.ReconciledMatches)
}
