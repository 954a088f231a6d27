package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/tradementor/capitalengine/internal/api"
	"github.com/tradementor/capitalengine/internal/cache"
	"github.com/tradementor/capitalengine/internal/config"
	"github.com/tradementor/capitalengine/internal/database"
	"github.com/tradementor/capitalengine/internal/engine"
	"github.com/tradementor/capitalengine/internal/logging"
	"github.com/tradementor/capitalengine/internal/middleware"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

// run orchestrates the startup sequence: configuration, observability, the
// database and cache connections, schema detection, the engine, the
// reconciliation sweep, and the HTTP server with graceful shutdown.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Environment,
			TracesSampleRate: cfg.Sentry.TracesSampleRate,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize Sentry: %v\n", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	log := logging.NewStandardLogger(cfg.LogLevel, cfg.Environment)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewDatabaseConnection(ctx, &cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.WithError(err).Error("failed to close database connection")
		}
	}()

	if err := database.EnsureSchema(ctx, db); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	// Redis is optional: without it snapshots are recomputed on every read.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("redis unavailable, continuing without snapshot cache")
		_ = redisClient.Close()
		redisClient = nil
	} else {
		defer func() { _ = redisClient.Close() }()
	}

	detector := engine.NewSchemaDetector(db, db.Kind(), log)
	profile := detector.DetectProfile(ctx)

	eng := engine.New(db, profile, engine.ConfigFromApp(cfg.Engine), log)

	snapshots := cache.NewSnapshotCache(redisClient, time.Duration(cfg.Engine.SnapshotTTLSeconds)*time.Second)

	sweepRunner := cron.New()
	sweeper := engine.NewSweeper(eng, log)
	if err := sweeper.Schedule(sweepRunner, cfg.Engine.SweepSchedule); err != nil {
		return fmt.Errorf("failed to schedule reconciliation sweep: %w", err)
	}
	sweepRunner.Start()
	defer sweepRunner.Stop()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	if cfg.Sentry.DSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{
			Repanic:         true,
			WaitForDelivery: false,
			Timeout:         2 * time.Second,
		}))
	}
	router.Use(gin.Recovery())

	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig(), redisClient, log)
	router.Use(limiter.Middleware())

	api.SetupRoutes(router, db, redisClient, eng, snapshots, log)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       15 * time.Second,
	}

	go func() {
		log.Info(fmt.Sprintf("starting server on :%d", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("server stopped unexpectedly")
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		log.Info("shutdown signal received")
	case <-ctx.Done():
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited gracefully")
	return nil
}
