package middleware

import (
	"github.com/fathima-sithara/graphql-chat/internal/auth"
	"github.com/gofiber/fiber/v2"
)

// Identity resolves the bearer token into claims on the user context. Missing
// or bad tokens leave the request anonymous; resolvers decide what needs a user.
func Identity(jwt *auth.JWTManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := jwt.Resolve(c.Get(fiber.HeaderAuthorization))
		if claims != nil {
			c.Locals("user_id", claims.UserID)
		}
		c.SetUserContext(auth.WithClaims(c.UserContext(), claims))
		return c.Next()
	}
}
