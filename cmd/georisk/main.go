package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"georisk/internal/analysis"
	httpapi "georisk/internal/api/http"
	"georisk/internal/chat"
	"georisk/internal/config"
	"georisk/internal/domain"
	"georisk/internal/geocode"
	"georisk/internal/llm"
	"georisk/internal/observability"
	"georisk/internal/risk"
	"georisk/internal/scheduler"
	"georisk/internal/store"
	"georisk/internal/weather"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	metrics := observability.NewMetrics()

	ctx := context.Background()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Persistence: a bucket when configured, process memory otherwise.
	var st domain.Store
	if cfg.StorageBucket != "" {
		gcs, err := store.NewGCS(ctx, cfg.StorageBucket, metrics, logger)
		if err != nil {
			logger.Error("init storage failed", "bucket", cfg.StorageBucket, "error", err)
			os.Exit(1)
		}
		st = gcs
		logger.Info("using cloud storage bucket", "bucket", cfg.StorageBucket)
	} else {
		st = store.NewMemory()
		logger.Info("using in-memory store")
	}

	// Weather provider selected by configuration.
	var provider domain.WeatherProvider
	switch cfg.WeatherProvider {
	case config.ProviderOpenWeather:
		provider = weather.NewOpenWeather(httpClient, cfg.OpenWeatherAPIKey)
	case config.ProviderWeatherAPI:
		provider = weather.NewWeatherAPI(httpClient, cfg.WeatherAPIKey)
	default:
		provider = weather.NewOpenMeteo(httpClient)
	}
	logger.Info("weather provider selected", "provider", provider.Name())

	// Reverse geocoder behind an LRU cache.
	var inner domain.Geocoder
	if cfg.GoogleGeocoderAPIKey != "" {
		inner = geocode.NewGoogle(cfg.GoogleGeocoderAPIKey, metrics, logger)
	} else {
		inner = geocode.NewOpenWeather(httpClient, cfg.OpenWeatherAPIKey, metrics, logger)
	}
	geocoder := geocode.NewCached(inner, cfg.GeocodeCacheSize, metrics)

	// Generative model client shared by risk scoring, chat and explain.
	generator, err := llm.New(ctx, llm.Config{
		BaseURL:           cfg.LLMBaseURL,
		APIKey:            cfg.LLMAPIKey,
		Model:             cfg.LLMModel,
		Timeout:           cfg.LLMTimeout,
		RequestsPerMinute: cfg.LLMRequestsPerMinute,
	}, metrics, logger)
	if err != nil {
		logger.Error("init llm client failed", "error", err)
		os.Exit(1)
	}

	assessor := risk.NewAssessor(generator, cfg.RiskThresholds, logger)
	analysisSvc := analysis.NewService(provider, geocoder, assessor, st, metrics, logger)
	chatSvc := chat.NewService(generator, st, cfg.ChatPersona, cfg.ChatHistoryLimit, metrics, logger)

	// Periodic re-analysis of watched locations.
	sched := scheduler.New(cfg.WatchLocations, cfg.WatchInterval, analysisSvc, metrics, logger)
	if err := sched.Start(); err != nil {
		logger.Error("start scheduler failed", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	app := httpapi.NewApp()

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "georisk",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API routes.
	httpapi.RegisterRoutes(app, analysisSvc, chatSvc)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", "error", err)
		}
	}()
	logger.Info("listening", "port", cfg.Port)

	// Wait for termination signal
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", "error", err)
	}
}
