package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/romidental/voice-platform/internal/analytics"
	"github.com/romidental/voice-platform/internal/api/handlers"
	"github.com/romidental/voice-platform/internal/api/router"
	"github.com/romidental/voice-platform/internal/clinic"
	appconfig "github.com/romidental/voice-platform/internal/config"
	"github.com/romidental/voice-platform/internal/observability/metrics"
	"github.com/romidental/voice-platform/internal/scheduling"
	"github.com/romidental/voice-platform/internal/tools"
	"github.com/romidental/voice-platform/internal/websearch"
	"github.com/romidental/voice-platform/pkg/logging"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting voice platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"clinic_id", cfg.ClinicID,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := openPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()

	// The redis-backed store lets operators adjust hours and services
	// without a redeploy; a miss falls back to the built-in defaults.
	clinicStore := clinic.NewStore(rdb)
	clinicCfg, err := clinicStore.Get(ctx, cfg.ClinicID)
	if err != nil {
		logger.Warn("clinic config load failed, using defaults", "error", err)
		clinicCfg = clinic.DefaultConfig(cfg.ClinicID)
	}
	dnc := clinic.NewDNCList(rdb, cfg.ClinicID)

	toolMetrics := metrics.NewToolMetrics(nil)

	schedSvc := scheduling.NewService(
		scheduling.NewRepository(pool),
		analytics.NewRepository(),
		clinicCfg,
		logger,
		scheduling.WithQueryTimeout(cfg.DBQueryTimeout),
	)
	analyticsSvc := analytics.NewService(pool, analytics.NewRepository(), logger)

	searchClient := websearch.NewClient(cfg.SearchBaseURL,
		websearch.WithHTTPClient(&http.Client{Timeout: cfg.SearchTimeout}),
		websearch.WithLogger(logger),
	)

	dispatcher := tools.NewDispatcher(schedSvc, analyticsSvc, logger,
		tools.WithSearch(searchClient),
		tools.WithDNC(dnc),
		tools.WithMetrics(toolMetrics),
		tools.WithRetry(cfg.ToolRetryMaxAttempts, cfg.ToolRetryBaseDelay),
	)

	r := router.New(&router.Config{
		Logger:         logger,
		Tools:          handlers.NewToolsHandler(dispatcher, logger),
		Admin:          handlers.NewAdminHandler(analyticsSvc, schedSvc, logger),
		AdminJWTSecret: cfg.AdminJWTSecret,
		MetricsHandler: promhttp.Handler(),
		ToolRatePerSec: 20,
		ToolBurst:      40,
		HealthCheck: func(w http.ResponseWriter, r *http.Request) {
			pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := pool.Ping(pingCtx); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func openPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
