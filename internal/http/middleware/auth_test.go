package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportsigner/internal/clock"
	"reportsigner/internal/config"
	"reportsigner/internal/token"
)

func newAuthApp(t *testing.T) (*fiber.App, token.Codec) {
	t.Helper()
	codec := token.NewCodec(config.TokenConfig{
		Secret:      "test-secret",
		Issuer:      "report-signer",
		DownloadTTL: time.Hour,
		AccessTTL:   time.Hour,
	}, clock.System())

	app := fiber.New()
	app.Get("/user", RequireAuth(codec), func(c *fiber.Ctx) error {
		return c.SendString(ClaimsFromCtx(c).Subject)
	})
	app.Get("/admin", RequireAuth(codec), RequireRole("admin"), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app, codec
}

func TestRequireAuth(t *testing.T) {
	app, codec := newAuthApp(t)

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/user", nil)
		resp, _ := app.Test(req)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("bearer header", func(t *testing.T) {
		tok, _, err := codec.IssueAccessToken("alice", []string{"user"})
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/user", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tok)
		resp, _ := app.Test(req)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("query fallback", func(t *testing.T) {
		tok, _, err := codec.IssueAccessToken("alice", []string{"user"})
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/user?token="+tok, nil)
		resp, _ := app.Test(req)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/user", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer not-a-jwt")
		resp, _ := app.Test(req)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("download token rejected for access", func(t *testing.T) {
		tok, _, err := codec.IssueDownloadToken("r.pdf")
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/user", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tok)
		resp, _ := app.Test(req)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}

func TestRequireRole(t *testing.T) {
	app, codec := newAuthApp(t)

	t.Run("role present", func(t *testing.T) {
		tok, _, err := codec.IssueAccessToken("root", []string{"admin"})
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/admin", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tok)
		resp, _ := app.Test(req)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("role missing", func(t *testing.T) {
		tok, _, err := codec.IssueAccessToken("alice", []string{"user"})
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/admin", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tok)
		resp, _ := app.Test(req)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})
}
