package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bilgisen/newskit/internal/ai"
	"github.com/bilgisen/newskit/internal/api"
	"github.com/bilgisen/newskit/internal/cache"
	"github.com/bilgisen/newskit/internal/config"
	"github.com/bilgisen/newskit/internal/feed"
	"github.com/bilgisen/newskit/internal/logger"
	"github.com/bilgisen/newskit/internal/metrics"
	"github.com/bilgisen/newskit/internal/middleware"
	"github.com/bilgisen/newskit/internal/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "newskit: %v\n", err)
		os.Exit(1)
	}

	output := "stdout"
	if cfg.LogFile != "" {
		output = cfg.LogFile
	}
	if err := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Output: output,
		Pretty: cfg.Env == "development",
	}); err != nil {
		panic(err)
	}

	log := logger.Get()
	log.Info().Str("env", cfg.Env).Str("model", cfg.AIModel).Msg("Starting application...")

	if cfg.AIApiKey == "" {
		log.Warn().Msg("AI_API_KEY is empty, AI calls will be rejected by the provider")
	}

	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register metrics")
	}

	seen, err := cache.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize seen-headline cache")
	}
	defer func() {
		if err := seen.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing cache")
		}
	}()

	backend, err := storage.NewBackend(cfg.StoreBackend, cfg.StorePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open project storage")
	}
	projects := storage.NewProjectStore(backend)
	defer func() {
		log.Info().Msg("Closing project storage...")
		if err := projects.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing project storage")
		}
	}()

	var archiver api.ExportArchiver
	if cfg.ArchiveEnabled() {
		a, err := storage.NewR2Archiver(context.Background(), cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize R2 archiver")
		}
		archiver = a
	}

	gemini := ai.NewGeminiClient(cfg.AIApiKey, cfg.AIModel).
		WithBaseURL(cfg.AIBaseURL).
		WithTimeout(cfg.AITimeout).
		WithRetryPolicy(ai.RetryPolicy{
			MaxAttempts: cfg.AIMaxRetries,
			BaseDelay:   cfg.AIRetryBaseDelay,
			MaxJitter:   cfg.AIRetryJitter,
		}).
		WithRecorder(m)

	news := feed.NewProcessor(gemini, seen, cfg.SeenTTL)
	handlers := api.NewHandlers(cfg, news, gemini, projects, archiver)

	app := fiber.New(fiber.Config{
		Immutable:    true,
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.HTTPTimeout,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: middleware.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.Metrics(m))

	api.SetupRoutes(app, handlers, registry)

	if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
		app.Static("/", cfg.StaticDir)
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
