package routes

import (
	"github.com/anjiri1684/tuition_billing/handlers"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

func AlertRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	api.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})
	api.Get("/ws/operators", websocket.New(h.ServeOperatorAlerts))
}
