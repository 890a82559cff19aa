package handlers

import (
	"log"

	"github.com/anjiri1684/tuition_billing/middleware"
	"github.com/anjiri1684/tuition_billing/websocket"
	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type authMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// ServeOperatorAlerts authenticates an operator from the first message and
// then keeps the connection registered until the client goes away.
func (h *Handler) ServeOperatorAlerts(c *websocketcontrib.Conn) {
	var msg authMessage
	if err := c.ReadJSON(&msg); err != nil || msg.Type != "auth" {
		log.Printf("WebSocket auth failed: invalid or missing auth message, error: %v", err)
		_ = c.WriteJSON(fiber.Map{"error": "Invalid or missing auth message"})
		c.Close()
		return
	}

	claims, err := middleware.ParseToken(h.JWTSecret, msg.Token)
	if err != nil {
		log.Printf("WebSocket auth failed: invalid token, error: %v", err)
		_ = c.WriteJSON(fiber.Map{"error": "Invalid token"})
		c.Close()
		return
	}
	role, _ := claims["role"].(string)
	if role != middleware.RoleOperator && role != middleware.RoleAdmin {
		_ = c.WriteJSON(fiber.Map{"error": "Forbidden: Operator access required"})
		c.Close()
		return
	}
	rawID, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(rawID)
	if err != nil {
		_ = c.WriteJSON(fiber.Map{"error": "Invalid user ID"})
		c.Close()
		return
	}

	client := &websocket.Client{UserID: userID, Conn: c}
	if !h.Hub.Join(client) {
		_ = c.WriteJSON(fiber.Map{"error": "Server is shutting down"})
		c.Close()
		return
	}
	defer func() {
		h.Hub.Leave(client)
		c.Close()
	}()

	// Operators only listen; reading detects the close.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if !websocketcontrib.IsCloseError(err, websocketcontrib.CloseGoingAway, websocketcontrib.CloseNormalClosure) {
				log.Printf("WebSocket read error for operator %s: %v", userID, err)
			}
			return
		}
	}
}
