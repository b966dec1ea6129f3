package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	httpapi "github.com/i474232898/weight-tracker/internal/api/http"
	"github.com/i474232898/weight-tracker/internal/config"
	"github.com/i474232898/weight-tracker/internal/scheduler"
	"github.com/i474232898/weight-tracker/internal/store"
	"github.com/i474232898/weight-tracker/internal/weight"
	"github.com/i474232898/weight-tracker/internal/weight/sources"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound source calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	source := newSource(cfg, httpClient)
	overrides := newOverrideStore(cfg)

	// Core service merging base data with local overrides.
	service := weight.NewService(source, overrides, weight.SystemClock{})

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 30*time.Second)
	if err := service.Load(loadCtx); err != nil {
		// The API reports the error until a refresh succeeds.
		log.Printf("ERROR: initial load failed: %v", err)
	}
	cancelLoad()

	// Scheduler that periodically refetches the base data.
	sched := scheduler.New(cfg.RefreshInterval, service)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weight-tracker",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weight-tracker",
			"loaded":  service.Loaded(),
		})
	})

	httpapi.RegisterRoutes(app, service)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}

func newSource(cfg *config.AppConfig, client *http.Client) weight.Source {
	backoff := sources.DefaultBackoff
	backoff.MaxRetries = cfg.SourceRetries

	switch cfg.SourceKind {
	case config.SourceStatic:
		return sources.NewStaticSource(client, cfg.SourceURL).WithBackoff(backoff)
	case config.SourceSheet:
		return sources.NewSheetSource(client, cfg.SourceURL).WithBackoff(backoff)
	default:
		return sources.NewFileSource(cfg.SourcePath)
	}
}

func newOverrideStore(cfg *config.AppConfig) weight.OverrideStore {
	if cfg.OverrideInMemory {
		return store.NewMemoryStore(cfg.OverrideQuotaBytes)
	}
	return store.NewFileStore(cfg.OverrideDir)
}
