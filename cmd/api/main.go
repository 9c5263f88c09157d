package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docstore/docs"
	"docstore/internal/config"
	"docstore/internal/database"
	"docstore/internal/database/migration"
	handlers "docstore/internal/http/handler"
	"docstore/internal/http/middleware"
	"docstore/internal/otel"
	"docstore/internal/repository/postgres"
	"docstore/internal/service"
	"docstore/internal/storage"
)

// @title Document Store API
// @version 1.0
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	ctx := context.Background()

	shutdownTracing, err := otel.Init(ctx, time.UTC)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	// PostgreSQL connection (pooling via database/sql, traced via otelsql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	// S3-compatible object storage client (MinIO-supported)
	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		log.Fatalf("failed to initialize object storage: %v", err)
	}

	docRepo := postgres.NewDocumentPostgres(db)
	lineRepo := postgres.NewLinePostgres(db)

	svc := service.NewDataClient(objStore, docRepo, lineRepo, func(ctx context.Context) error {
		return migration.EnsureMigrated(ctx, db, time.UTC, cfg.Database.Host)
	})

	// Ensure schema and bucket before accepting traffic. Idempotent, so
	// rolling restarts and multiple replicas are fine.
	initCtx, cancelInit := context.WithTimeout(ctx, 30*time.Second)
	if err := svc.Init(initCtx); err != nil {
		cancelInit()
		log.Fatalf("failed to initialize backends: %v", err)
	}
	cancelInit()

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	// Register global middleware
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger())
	app.Use(otelfiber.Middleware())

	promMw, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}
	app.Use(promMw.Handler())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handlers.RegisterRoutes(app, svc)

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	if cfg.Sweep.Enabled {
		go runSweeper(ctx, svc, cfg.Sweep)
	}

	addr := ":" + cfg.Port

	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

// runSweeper periodically reconciles PENDING rows left behind by
// interrupted uploads.
func runSweeper(ctx context.Context, svc service.DataClient, sc config.SweepConfig) {
	ticker := time.NewTicker(sc.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, sc.Interval)
			if _, err := svc.SweepPending(sweepCtx, sc.Grace); err != nil {
				log.Printf("sweep failed: %v", err)
			}
			cancel()
		}
	}
}
