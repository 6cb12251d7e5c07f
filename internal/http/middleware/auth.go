package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"reportsigner/internal/token"
)

// ClaimsLocalKey is the key under which validated access claims are stored
// in Fiber's context locals.
const ClaimsLocalKey = "auth_claims"

// RequireAuth validates the access token on every request. The token is
// read from the Authorization header (Bearer scheme) or, as a fallback,
// from the token query parameter.
func RequireAuth(codec token.Codec) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := bearerToken(c)
		if raw == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing access token")
		}

		claims, err := codec.ValidateAccess(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid access token")
		}

		c.Locals(ClaimsLocalKey, claims)
		return c.Next()
	}
}

// RequireRole allows the request through when the validated claims carry
// at least one of the given roles. It must run after RequireAuth.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := ClaimsFromCtx(c)
		if claims == nil {
			return fiber.NewError(fiber.StatusUnauthorized, "missing access token")
		}
		for _, want := range roles {
			for _, have := range claims.Roles {
				if strings.EqualFold(have, want) {
					return c.Next()
				}
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "insufficient role")
	}
}

// ClaimsFromCtx returns the claims stored by RequireAuth, or nil.
func ClaimsFromCtx(c *fiber.Ctx) *token.Claims {
	if v := c.Locals(ClaimsLocalKey); v != nil {
		if claims, ok := v.(*token.Claims); ok {
			return claims
		}
	}
	return nil
}

func bearerToken(c *fiber.Ctx) string {
	auth := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return c.Query("token")
}
