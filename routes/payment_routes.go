package routes

import (
	"github.com/anjiri1684/tuition_billing/handlers"
	"github.com/anjiri1684/tuition_billing/middleware"
	"github.com/gofiber/fiber/v2"
)

func PaymentRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	payments := api.Group("/payments",
		middleware.Protected(h.JWTSecret),
		middleware.RolesAllowed(middleware.RoleStudent, middleware.RoleOperator, middleware.RoleAdmin),
	)
	payments.Post("/receipts", h.SubmitReceipt)
}
