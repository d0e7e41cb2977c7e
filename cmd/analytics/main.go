// Command analytics starts the standalone analytics aggregation service.
//
// It consumes search and index events from Kafka, aggregates them in memory
// (query totals, not-found rate, cache hit rate, latency percentiles, top
// queries), periodically snapshots the aggregate to the database and serves
// GET /api/v1/analytics and GET /api/v1/analytics/history.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/database"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/middleware"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, nil)
	if !cfg.Kafka.Enabled {
		slog.Error("analytics service needs kafka.enabled")
		os.Exit(1)
	}
	slog.Info("starting analytics service", "port", cfg.Analytics.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := analytics.NewAggregator(cfg.Analytics.LatencyWindow, cfg.Analytics.TopN)
	events := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.AnalyticsTopic, "analytics", analytics.HandleEvent(agg))
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := events.Start(ctx); err != nil {
			slog.Error("analytics consumer error", "error", err)
		}
	}()
	slog.Info("analytics consumer started", "topic", cfg.Kafka.AnalyticsTopic)

	checker := health.NewChecker()
	checker.Register("kafka", func(context.Context) error {
		select {
		case <-consumerDone:
			return errors.New("consumer stopped")
		default:
			return nil
		}
	})

	var history analytics.History
	db, err := database.New(cfg.Database)
	if err != nil {
		slog.Warn("database unavailable, snapshot history disabled", "error", err)
	} else {
		defer db.Close()
		snapshots := aggregator.NewStore(db)
		if err := snapshots.Migrate(ctx); err != nil {
			slog.Error("migration failed", "error", err)
			os.Exit(1)
		}
		history = snapshots
		checker.Register("database", health.Optional(health.PingCheck(db)))
		go snapshots.Run(ctx, agg, cfg.Analytics.SnapshotInterval)
	}

	mux := http.NewServeMux()
	analytics.NewHandler(agg, history).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Analytics.Port),
		Handler:      middleware.Chain(mux, middleware.RequestID, middleware.AccessLog),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}
