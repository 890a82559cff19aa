package middleware

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleStudent  = "student"
)

func Protected(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   []byte(secret),
		ErrorHandler: jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if err.Error() == "Missing or malformed JWT" {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"status": "error", "message": "Missing or malformed JWT", "data": nil})
	}
	return c.Status(fiber.StatusUnauthorized).
		JSON(fiber.Map{"status": "error", "message": "Invalid or expired JWT", "data": nil})
}

// OperatorRequired lets finance operators and admins through.
func OperatorRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		role := Role(c)
		if role != RoleOperator && role != RoleAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Forbidden: Operator access required",
			})
		}
		return c.Next()
	}
}

// RolesAllowed rejects tokens whose role is not listed, including tokens
// with no role at all.
func RolesAllowed(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role := Role(c)
		for _, r := range roles {
			if role == r {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Forbidden: your role cannot perform this action",
		})
	}
}

func claims(c *fiber.Ctx) jwt.MapClaims {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return nil
	}
	mc, _ := token.Claims.(jwt.MapClaims)
	return mc
}

func Role(c *fiber.Ctx) string {
	role, _ := claims(c)["role"].(string)
	return role
}

// UserID is the authenticated user, recorded as the actor on ledger changes.
func UserID(c *fiber.Ctx) (uuid.UUID, bool) {
	return claimID(claims(c), "user_id")
}

// StudentID is the student a student token speaks for.
func StudentID(c *fiber.Ctx) (uuid.UUID, bool) {
	return claimID(claims(c), "student_id")
}

func claimID(mc jwt.MapClaims, key string) (uuid.UUID, bool) {
	raw, ok := mc[key].(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// ParseToken validates a token outside the HTTP middleware, as websocket
// clients send it in their first message.
func ParseToken(secret, tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if mc, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return mc, nil
	}
	return nil, errors.New("invalid token")
}
