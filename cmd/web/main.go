package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/CAFxX/httpcompression"

	"basket-dashboard/internal/config"
	"basket-dashboard/internal/middleware"
	"basket-dashboard/internal/observability"
	"basket-dashboard/internal/server"
	"basket-dashboard/internal/services"
	"basket-dashboard/internal/ui/templates"
)

const (
	renderTimeout  = 10 * time.Second
	csvLoadTimeout = 2 * time.Minute
	cacheMaxAge    = "public, max-age=300"
)

func dashboardHandler(miner *services.Miner, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
		defer cancel()

		if !miner.Loaded() {
			if err := templates.NoData(cfg.Data.CSVFile).Render(ctx, w); err != nil {
				http.Error(w, "render error", http.StatusInternalServerError)
			}
			return
		}

		countries, err := miner.Countries()
		if err != nil {
			http.Error(w, "render error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Cache-Control", cacheMaxAge)
		if err := templates.Dashboard(countries, cfg.Mining).Render(ctx, w); err != nil {
			http.Error(w, "render error", http.StatusInternalServerError)
		}
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"config", cfg,
	)

	loader := services.NewLoader(cfg.Data.CacheDir, logger)
	miner := services.NewMiner(logger)

	ctx, cancel := context.WithTimeout(context.Background(), csvLoadTimeout)
	defer cancel()

	// An absent source is recoverable: the dashboard serves a
	// "data not found" page and the API answers NOT_FOUND until the
	// file appears and the service is restarted.
	set, err := loader.Load(ctx, cfg.Data.CSVFile)
	switch {
	case errors.Is(err, services.ErrSourceNotFound):
		logger.Warn("transaction log missing, serving without data", "csv_file", cfg.Data.CSVFile)
	case err != nil:
		logger.Error("failed to load transaction log", "error", err)
		os.Exit(1)
	default:
		miner.SetRecords(set)
	}

	templateHandlers := &server.TemplateHandlers{
		Dashboard: dashboardHandler(miner, cfg),
	}

	srv := server.NewServer(miner, cfg.Mining, logger, templateHandlers)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	compress, err := httpcompression.DefaultAdapter()
	if err != nil {
		logger.Error("failed to build compression adapter", "error", err)
		os.Exit(1)
	}

	handler := compress(middlewareChain(srv))

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("shutting down rule miner")
		return nil
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
