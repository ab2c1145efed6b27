// cmd/activities-api/main.go
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

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mergington-activities/internal/activities"
	"mergington-activities/internal/api"
	"mergington-activities/internal/audit"
	"mergington-activities/internal/cache"
	"mergington-activities/internal/common/config"
	"mergington-activities/internal/common/database"
	"mergington-activities/internal/common/logger"
	"mergington-activities/internal/common/observability"
	"mergington-activities/internal/notify"
	"mergington-activities/pkg/registry"
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

	zapLog.Info("Starting activities API...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	ctx := context.Background()

	obs := observability.New(observability.Options{
		ServiceName:    cfg.Observability.ServiceName,
		JaegerEndpoint: cfg.Observability.JaegerEndpoint,
		Logger:         log,
	})

	// --- Registry ---
	var seed *activities.Catalog
	if cfg.Registry.SeedPath != "" {
		seed, err = registry.LoadSeed(cfg.Registry.SeedPath)
		if err != nil {
			zapLog.Fatal("seed load failed", zap.String("path", cfg.Registry.SeedPath), zap.Error(err))
		}
	}
	reg := activities.NewRegistry(seed, activities.WithCapacityEnforcement(cfg.Registry.EnforceCapacity))
	zapLog.Info("Activity registry loaded",
		zap.Int("activities", reg.List().Len()),
		zap.Bool("enforceCapacity", cfg.Registry.EnforceCapacity),
	)

	opts := api.HandlerOptions{
		Registry:          reg,
		Logger:            log,
		Observability:     obs,
		StaticDir:         cfg.Server.StaticDir,
		SideEffectTimeout: config.GetDuration(cfg.Server.SideEffectTimeout),
		Readiness:         map[string]api.ReadinessCheck{},
	}

	// --- Init Redis with retry ---
	if cfg.Cache.Enabled {
		rdb := database.NewRedis(cfg.Database.Redis)
		err = retryWithBackoff(func() error {
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()

		instanceID := uuid.NewString()
		opts.Cache = cache.NewListingCache(rdb.Client, config.GetDuration(cfg.Cache.TTL), instanceID)
		opts.Readiness["redis"] = rdb.Ping
		zapLog.Info("Redis connected successfully", zap.String("cacheInstance", instanceID))
	}

	// --- Init PostgreSQL with retry ---
	if cfg.Audit.Enabled {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			if pg == nil {
				pg, err = database.NewPostgres(cfg.Database.Postgres)
				if err != nil {
					return err
				}
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		recorder := audit.NewRecorder(pg.DB)
		if err := recorder.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("audit schema setup failed", zap.Error(err))
		}
		opts.Audit = recorder
		opts.Readiness["postgres"] = pg.Ping
		zapLog.Info("PostgreSQL connected successfully")
	}

	// --- Init AWS notification clients ---
	if cfg.Notifications.Enabled() {
		notifier, err := notify.NewFromConfig(ctx, cfg.Notifications, log)
		if err != nil {
			zapLog.Fatal("notifier setup failed", zap.Error(err))
		}
		opts.Notifier = notifier
		zapLog.Info("Notifications enabled",
			zap.Bool("email", cfg.Notifications.Email.Enabled),
			zap.Bool("events", cfg.Notifications.Events.Enabled),
		)
	}

	handler, err := api.NewHandler(opts)
	if err != nil {
		zapLog.Fatal("failed to create API handler", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      handler.Routes(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down telemetry", zap.Error(err))
	}

	zapLog.Info("Activities API stopped gracefully")
}
