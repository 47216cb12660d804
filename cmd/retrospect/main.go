package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/timemachine-ai/retrospect/internal/alternatives"
	"github.com/timemachine-ai/retrospect/internal/api"
	"github.com/timemachine-ai/retrospect/internal/auth"
	"github.com/timemachine-ai/retrospect/internal/bus"
	"github.com/timemachine-ai/retrospect/internal/config"
	"github.com/timemachine-ai/retrospect/internal/gemini"
	"github.com/timemachine-ai/retrospect/internal/pipeline"
	"github.com/timemachine-ai/retrospect/internal/report"
	"github.com/timemachine-ai/retrospect/internal/store"
)

func main() {
	godotenv.Load()

	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("retrospect starting", "port", cfg.Port, "mode", cfg.ReportMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database connected")

	// Alternative generator — Gemini when configured, static fallback otherwise
	var gen alternatives.Generator = alternatives.Fallback{}
	if cfg.GeminiAPIKey != "" {
		llm := gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel)
		gen = alternatives.NewLLMGenerator(llm, time.Duration(cfg.GenerationTimeout)*time.Second, slog.Default())
		slog.Info("gemini client ready", "model", cfg.GeminiModel)
	} else {
		slog.Warn("GEMINI_API_KEY not set — using static fallback alternatives")
	}

	// NATS
	busClient, err := bus.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer busClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	// Pipeline
	detector := report.NewDetector(cfg.DecisionKeywords)
	pipe := pipeline.New(db, detector, gen, cfg.StrictGeneration, busClient, slog.Default())

	// Deferred mode: compete for report jobs in the worker queue group
	if cfg.ReportMode == "deferred" {
		if err := busClient.QueueSubscribe(bus.SubjectReportRequested, bus.WorkerQueue, pipe.HandleReportRequested); err != nil {
			slog.Error("failed to subscribe to report jobs", "error", err)
			os.Exit(1)
		}
		slog.Info("report worker subscribed", "subject", bus.SubjectReportRequested, "queue", bus.WorkerQueue)
	}

	// HTTP API
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, time.Duration(cfg.JWTExpireMinutes)*time.Minute)
	srv := api.NewServer(api.Options{
		Port:    cfg.Port,
		Users:   db,
		Reports: db,
		Runner:  pipe,
		Jobs:    busClient,
		Tokens:  tokens,
		Mode:    cfg.ReportMode,
		Logger:  slog.Default(),
	})
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("retrospect ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("retrospect stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
