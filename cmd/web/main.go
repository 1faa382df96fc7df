package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"sales-analytics/internal/config"
	"sales-analytics/internal/middleware"
	"sales-analytics/internal/observability"
	"sales-analytics/internal/server"
	"sales-analytics/internal/services"
)

const (
	version        = "1.0.0"
	csvLoadTimeout = 30 * time.Second
)

// newHandler wires the routes behind the middleware chain.
func newHandler(cfg *config.Config, dashboard *services.Dashboard, logger *slog.Logger) (http.Handler, error) {
	proxies, err := middleware.ParseProxies(cfg.Security.TrustedProxies)
	if err != nil {
		return nil, err
	}

	srv := server.NewServer(dashboard, logger, server.Options{
		MaxUploadBytes:  cfg.Dataset.MaxUploadBytes,
		RawTableMaxRows: cfg.Dataset.RawTableMaxRows,
		UploadLimiter:   middleware.NewUploadLimiter(cfg.Security),
	})

	csrfKey, generated, err := middleware.CSRFKey(cfg.Security)
	if err != nil {
		return nil, err
	}
	if generated && cfg.Security.EnableCSRF {
		logger.Warn("no CSRF key configured, using a random one; forms reset on restart")
	}

	middlewareChain := middleware.Chain(
		middleware.RequestID(),
		middleware.ClientIP(proxies),
		middleware.Observe(logger),
		middleware.Recovery(logger),
		middleware.SecurityHeaders(cfg.Server.Secure),
		middleware.CORS(cfg.Security),
		middleware.CSRF(cfg.Security, cfg.Server.Secure, csrfKey, logger),
	)

	return middlewareChain(srv), nil
}

// preload loads the configured CSV at startup. A bad file is reported on
// the dashboard like a bad upload, so it does not stop the server.
func preload(dashboard *services.Dashboard, path string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), csvLoadTimeout)
	defer cancel()

	start := time.Now()
	if _, err := dashboard.LoadFile(ctx, path); err != nil {
		logger.Error("failed to load CSV data", "file", path, "error", err)
		return
	}
	logger.Info("CSV data loaded successfully", "file", path, "duration", time.Since(start))
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", version,
		"addr", cfg.Address(),
		"csv_file", cfg.Dataset.CSVFile,
		"max_upload_bytes", cfg.Dataset.MaxUploadBytes,
		"csrf", cfg.Security.EnableCSRF,
		"rate_limit", cfg.Security.EnableRateLimit,
	)

	dashboard := services.NewDashboard(cfg.Dataset.DateLayouts, logger)
	if cfg.Dataset.CSVFile != "" {
		preload(dashboard, cfg.Dataset.CSVFile, logger)
	}

	handler, err := newHandler(cfg, dashboard, logger)
	if err != nil {
		logger.Error("failed to build handler", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("shutting down dashboard", "stats", dashboard.Stats())
		dashboard.Reset()
		return nil
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
