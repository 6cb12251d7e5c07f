package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"reportsigner/internal/config"
	"reportsigner/internal/http/middleware"
	"reportsigner/internal/service"
	"reportsigner/internal/storage"
	"reportsigner/internal/token"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Keep handlers minimal and free of business logic.
func RegisterRoutes(
	app *fiber.App,
	cfg *config.AppConfig,
	db *sql.DB,
	store storage.FileStore,
	codec token.Codec,
	svc service.ReportService,
) {
	// Serve OpenAPI spec and Swagger UI
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	})
	app.Get("/docs", func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	})

	app.Get("/health", HealthCheck(db, store))
	app.Get("/healthz", LivenessProbe())

	// Public download endpoint; access control is the token itself.
	app.Get("/download/:filename", DownloadReport(svc))

	auth := app.Group("/api/auth")
	auth.Post("/login", Login(cfg.Users, codec))
	auth.Get("/validate", middleware.RequireAuth(codec), ValidateToken())

	reports := app.Group("/api/v1/reports", middleware.RequireAuth(codec))
	reports.Post("/generate", middleware.RequireRole("user", "admin"), GenerateReport(svc))
	reports.Get("/status/:filename", ReportStatus(svc))
	reports.Get("/", middleware.RequireRole("admin"), ListReports(svc))
	reports.Delete("/:filename", middleware.RequireRole("admin"), DeleteReport(svc))
	reports.Post("/cleanup", middleware.RequireRole("admin"), ManualCleanup(svc))
}
