package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reportsigner/internal/clock"
	"reportsigner/internal/config"
	"reportsigner/internal/database"
	"reportsigner/internal/database/migration"
	handlers "reportsigner/internal/http/handler"
	"reportsigner/internal/http/middleware"
	"reportsigner/internal/keystore"
	"reportsigner/internal/otel"
	"reportsigner/internal/qr"
	"reportsigner/internal/render"
	"reportsigner/internal/repository"
	"reportsigner/internal/repository/postgres"
	"reportsigner/internal/retention"
	"reportsigner/internal/service"
	"reportsigner/internal/signer"
	"reportsigner/internal/storage"
	"reportsigner/internal/token"
)

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	clk := clock.System()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize tracing; exporter settings come from OTEL_* env vars
	shutdownTracing, err := otel.Init(ctx, time.Local)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	// The audit database is optional; it is wired only when a host is set
	var db *sql.DB
	var repo repository.ReportRepository
	if cfg.Database.Host != "" {
		db, err = database.NewPostgres(cfg.Database)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := migration.EnsureMigrated(ctx, db, time.Local, cfg.Database.Host); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
		repo = postgres.NewReportPostgres(db)
	}

	// Fail fast on an unreadable keystore instead of at the first request
	creds := keystore.New(cfg.Signature.KeystorePath, cfg.Signature.KeystorePassword)
	if _, err := creds.Load(); err != nil {
		log.Fatalf("failed to load signing keystore: %v", err)
	}

	store, err := storage.NewDiskStore(cfg.Storage, clk)
	if err != nil {
		log.Fatalf("failed to initialize file storage: %v", err)
	}

	codec := token.NewCodec(cfg.Token, clk)
	sweeper := retention.NewSweeper(cfg.Cleanup, store, clk, os.Stdout)
	sweeper.Start(ctx)

	svc := service.NewReportService(
		render.NewRenderer(),
		signer.New(creds, cfg.Signature, clk),
		qr.NewEncoder(cfg.QR),
		store,
		codec,
		sweeper,
		repo,
		clk,
		cfg.Storage.DownloadBaseURL,
	)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	// Register global middleware
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger())
	app.Use(otelfiber.Middleware())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	promMW, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.Fatalf("failed to initialize metrics: %v", err)
	}
	app.Use(promMW.Handler())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	handlers.RegisterRoutes(app, cfg, db, store, codec, svc)

	addr := ":" + cfg.Port
	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
