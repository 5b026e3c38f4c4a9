// Package main is the entry point for the eventline API server.
//
// It loads configuration, connects the database pool, wires the scheduler
// (event source, status applier, optional SQS publisher and CloudWatch
// metrics), starts the scheduler control loop, and serves the HTTP API.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM):
// the HTTP server drains first, then the scheduler stops, then the pool
// closes.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"eventline/internal/api/handlers"
	"eventline/internal/config"
	"eventline/internal/core"
	"eventline/internal/db"
	"eventline/internal/queue"
	"eventline/internal/scheduler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("eventline API starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	// Database pool.
	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer pool.Close()

	eventRepo := db.NewEventRepository(pool)
	statusRepo := db.NewStatusRepository(pool)

	// Optional AWS integrations. Publication and metrics are both disabled in
	// local development by leaving their config empty.
	var (
		publisher scheduler.TransitionPublisher
		metrics   scheduler.Metrics
	)
	if cfg.AWS.TransitionQueue != "" || cfg.Observability.EnableMetrics {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return fmt.Errorf("loading AWS config: %w", err)
		}

		if cfg.AWS.TransitionQueue != "" {
			sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
				if cfg.AWS.EndpointURL != "" {
					o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
				}
			})
			publisher = queue.NewTransitionProducer(sqsClient, cfg.AWS, logger)
		}

		if cfg.Observability.EnableMetrics {
			cwClient := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
				if cfg.AWS.EndpointURL != "" {
					o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
				}
			})
			metrics = scheduler.NewCloudWatchMetrics(cwClient, cfg.Observability.MetricNamespace, logger)
		}
	}

	// Scheduler.
	applier := scheduler.NewResilientApplier(statusRepo, "status-store", logger)
	sched, err := scheduler.New(scheduler.Config{
		Source:             eventRepo,
		Applier:            applier,
		Publisher:          publisher,
		Metrics:            metrics,
		Logger:             logger,
		ApplyTimeout:       cfg.Scheduler.ApplyTimeout,
		RetryMinWait:       cfg.Scheduler.RetryMinWait,
		RetryMaxWait:       cfg.Scheduler.RetryMaxWait,
		StartupScanTimeout: cfg.Scheduler.StartupScanTimeout,
	})
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	// HTTP server.
	srv, err := core.NewServer(cfg, sched, logger)
	if err != nil {
		sched.Stop()
		return fmt.Errorf("creating server: %w", err)
	}
	srv.HealthProbes = []core.HealthProbe{db.NewPingProbe(pool)}

	eventHandler := handlers.NewEventHandler(eventRepo, sched, srv.Validator, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, eventHandler.RegisterRoutes)

	srv.MountRoutes()

	return serve(srv, sched, cfg, logger)
}

// newPool builds a pgx connection pool from the database configuration.
func newPool(ctx context.Context, dbCfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dbCfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	poolCfg.MaxConns = int32(dbCfg.MaxConns)
	poolCfg.MinConns = int32(dbCfg.MinConns)
	poolCfg.MaxConnLifetime = dbCfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = dbCfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// serve runs the HTTP server until a shutdown signal or server error, then
// drains connections and stops the scheduler.
func serve(srv *core.Server, sched *scheduler.Scheduler, cfg *config.Config, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(signalCtx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}

		sched.Stop()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server resource shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
