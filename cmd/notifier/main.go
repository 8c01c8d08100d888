package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"finance-notifier/internal/api"
	awsclient "finance-notifier/internal/common/aws"
	"finance-notifier/internal/common/config"
	"finance-notifier/internal/common/database"
	"finance-notifier/internal/common/logger"
	"finance-notifier/internal/common/observability"
	"finance-notifier/internal/delivery"
	"finance-notifier/internal/finance"
	"finance-notifier/internal/notification"
	"finance-notifier/internal/ratelimit"
	"finance-notifier/internal/rules"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting notifier",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("storage", cfg.Storage.Driver),
	)

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Warn("otel metrics disabled", zap.Error(err))
	}
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	var (
		repo  finance.Repository
		store notification.Store
		ready = func(context.Context) error { return nil }
	)

	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		zapLog.Info("PostgreSQL connected successfully")

		if cfg.Storage.Migrate {
			if err := pg.Migrate(ctx, notification.Schema...); err != nil {
				zapLog.Fatal("notification schema migration failed", zap.Error(err))
			}
		}

		repo = finance.NewPostgresRepository(pg.DB)
		store = notification.NewPostgresStore(pg.DB)
		ready = pg.Ping
	default:
		zapLog.Warn("using in-memory storage, data is lost on restart")
		repo = finance.NewMemoryRepository()
		store = notification.NewMemoryStore()
	}

	// --- Delivery ---
	var transports []delivery.Transport

	if cfg.Delivery.Redis.Enabled {
		var rc *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rc, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rc.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rc.Close()
		zapLog.Info("Redis connected successfully")

		transports = append(transports, delivery.NewRedisChannel(
			rc.Client,
			cfg.Delivery.Redis.ChannelPrefix,
			cfg.Delivery.Redis.BroadcastTopic,
			config.GetDuration(cfg.Delivery.Redis.PublishTimeout),
		))
	}

	if cfg.Delivery.SNS.Enabled {
		snsClient, err := awsclient.NewSNSClient(ctx, cfg.Delivery.SNS.Region)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		transports = append(transports, delivery.NewSNSBroadcaster(snsClient, cfg.Delivery.SNS.TopicARN))
	}

	if len(transports) == 0 {
		transports = append(transports, delivery.NewLogChannel(log))
	}
	channel := delivery.NewMulti(log, transports...)

	// --- Rule engine ---
	engine := rules.NewEngine(rules.Config{
		Interval:    config.GetDuration(cfg.Scheduler.Interval),
		UserTimeout: config.GetDuration(cfg.Scheduler.UserTimeout),
		Concurrency: cfg.Scheduler.Concurrency,
		NearEndDays: cfg.Scheduler.NearEndDays,
		Location:    cfg.Scheduler.Location(),
	}, repo, store, channel, obs, log)

	if cfg.Scheduler.Enabled {
		engine.Start(ctx)
		defer engine.Stop()
	}

	// --- Rate limiter ---
	limiterCfg := ratelimit.Config{
		Enabled:         cfg.RateLimit.Enabled,
		Capacity:        int64(cfg.RateLimit.Capacity),
		RefillPeriod:    config.GetDuration(cfg.RateLimit.RefillPeriod),
		CleanupInterval: config.GetDuration(cfg.RateLimit.CleanupInterval),
		IdleTTL:         config.GetDuration(cfg.RateLimit.IdleTTL),
		Shards:          cfg.RateLimit.Shards,
	}
	limiter := ratelimit.New(limiterCfg, log)
	go limiter.StartCleanup(ctx)

	// --- HTTP ---
	handler := api.New(store, channel, api.NewGate(limiter, api.UserIDFromHeader, log), log)
	handler.Handle("GET /health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	}))
	handler.Handle("GET /ready", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := ready(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	}))
	handler.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      handler,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
		IdleTimeout:  config.GetDuration(cfg.Server.IdleTimeout),
	}

	servers := []*http.Server{server}

	if cfg.Server.OpsToken != "" {
		// Own limiter so no public identity can drain the operator bucket.
		opsLimiter := ratelimit.New(limiterCfg, log)
		go opsLimiter.StartCleanup(ctx)
		opsGate := api.NewGate(opsLimiter, func(*http.Request) string { return api.OpsIdentity }, log)
		servers = append(servers, &http.Server{
			Addr:         cfg.Server.OpsAddress,
			Handler:      api.NewOps(engine, channel, opsGate, cfg.Server.OpsToken, log),
			ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
			WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
			IdleTimeout:  config.GetDuration(cfg.Server.IdleTimeout),
		})
	} else {
		zapLog.Warn("operator endpoints disabled, server.ops_token is empty")
	}

	for _, srv := range servers {
		go func(srv *http.Server) {
			zapLog.Info("HTTP server listening", zap.String("address", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zapLog.Error("HTTP server failed", zap.String("address", srv.Addr), zap.Error(err))
				stop()
			}
		}(srv)
	}

	<-ctx.Done()
	zapLog.Info("Shutdown signal received, draining...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zapLog.Error("HTTP server shutdown failed", zap.String("address", srv.Addr), zap.Error(err))
		}
	}
	zapLog.Info("Notifier stopped")
}

func writeStatus(w http.ResponseWriter, status int, state string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"status":%q,"time":%q}`, state, time.Now().UTC().Format(time.RFC3339))
}
