package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/sheetcsv/internal/config"
	"github.com/JonMunkholm/sheetcsv/internal/core"
	_ "github.com/JonMunkholm/sheetcsv/internal/core/sources" // Register xlsx, xls and csv
	"github.com/JonMunkholm/sheetcsv/internal/logging"
	"github.com/JonMunkholm/sheetcsv/internal/web"
)

func main() {
	// Values from .env fill in anything the environment leaves unset
	cfg, err := config.LoadWithDotEnv()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"convert_max_concurrent", cfg.Convert.MaxConcurrent,
		"convert_max_file_size", cfg.Convert.MaxFileSize,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"api_key_required", cfg.Security.RequireAPIKey,
	)

	opts := cfg.ServiceOptions()
	opts.History = core.NewHistory(cfg.History.Size)
	service := core.NewService(opts)

	for _, f := range core.Formats() {
		slog.Debug("source format registered", "key", f.Key, "extensions", f.Extensions)
	}

	server := web.NewServer(service, cfg)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go core.StartHistoryPruner(jobCtx, service.History(), core.PruneConfig{
		MaxAge:        cfg.History.MaxAge,
		CheckInterval: cfg.History.CheckInterval,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let running conversions finish before closing connections
		limiter := service.Limiter()
		if active := limiter.ActiveCount(); active > 0 {
			slog.Info("waiting for conversions to complete", "active", active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("conversions did not complete in time", "error", err)
			} else {
				slog.Info("all conversions completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
