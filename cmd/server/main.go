package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JonMunkholm/sheetclean/internal/config"
	"github.com/JonMunkholm/sheetclean/internal/logging"
	"github.com/JonMunkholm/sheetclean/internal/metrics"
	"github.com/JonMunkholm/sheetclean/internal/session"
	"github.com/JonMunkholm/sheetclean/internal/sheet"
	"github.com/JonMunkholm/sheetclean/internal/web"
	"github.com/joho/godotenv"
)

// janitorInterval is how often expired sessions are swept.
const janitorInterval = time.Minute

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"upload_max_files", cfg.Upload.MaxFiles,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"unreadable_policy", cfg.Upload.UnreadablePolicy,
		"session_ttl", cfg.Session.TTL,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"metrics_enabled", cfg.Metrics.Enabled,
	)

	store := session.NewStore(cfg.Session.TTL)
	limiter := session.NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)

	var opts []web.Option
	var rec session.Recorder
	if cfg.Metrics.Enabled {
		reg := metrics.NewRegistry()
		m, err := metrics.New(reg, cfg.Metrics.Namespace, "pipeline")
		if err != nil {
			slog.Error("failed to register metrics", "error", err)
			os.Exit(1)
		}
		gauges := []struct {
			name, help string
			fn         func() float64
		}{
			{"sessions_active", "Live browser sessions.", func() float64 { return float64(store.Len()) }},
			{"uploads_active", "Uploads currently holding a decode slot.", func() float64 { return float64(limiter.ActiveCount()) }},
		}
		for _, g := range gauges {
			if err := m.TrackGauge(cfg.Metrics.Namespace, g.name, g.help, g.fn); err != nil {
				slog.Error("failed to register gauge", "name", g.name, "error", err)
				os.Exit(1)
			}
		}
		rec = m
		opts = append(opts, web.WithMetrics(m, reg))
	}

	flow := session.NewWorkflow(store, sheet.Codec{}, limiter, rec, session.Options{
		Policy:             session.UnreadablePolicy(cfg.Upload.UnreadablePolicy),
		MaxFiles:           cfg.Upload.MaxFiles,
		DecodeWorkers:      cfg.Upload.DecodeWorkers,
		MergedPreviewRows:  cfg.Preview.MergedRows,
		CleanedPreviewRows: cfg.Preview.CleanedRows,
	})

	// Create server with config
	server := web.NewServer(flow, cfg, opts...)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())

	go store.RunJanitor(jobCtx, janitorInterval)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for in-flight uploads to finish decoding (with timeout)
		if active := limiter.ActiveCount(); active > 0 {
			slog.Info("waiting for uploads to complete", "active", active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("uploads did not complete in time", "error", err)
			} else {
				slog.Info("all uploads completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
