// Command searcher serves the index over HTTP. It loads the snapshot file,
// or builds from the document store when there is none, accepts documents
// through the document API, and can follow the listings topic. Stored
// documents trigger a debounced rebuild.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml] [-follow]
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
	"time"

	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/auth"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/indexer/consumer"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/appsearch/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/store"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/database"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/appsearch/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	follow := flag.Bool("follow", false, "consume the listings topic and rebuild as listings arrive")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, nil)
	slog.Info("starting search service", "port", cfg.Server.Port, "tokenizer", cfg.Tokenizer.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdown := m.StartServer(cfg.Metrics.Port)
		defer shutdown(context.Background())
	}

	engine, err := indexer.NewEngine(cfg.Indexer, cfg.Tokenizer,
		indexer.WithMetrics(m),
		indexer.WithTracing(cfg.Tracing.Enabled),
	)
	if err != nil {
		slog.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	checker := health.NewChecker()

	var src indexer.Source
	var st *store.Store
	db, err := database.New(cfg.Database)
	if err != nil {
		slog.Warn("document store unavailable, rebuilds disabled", "error", err)
	} else {
		defer db.Close()
		st = store.New(db)
		if err := st.Migrate(ctx); err != nil {
			slog.Error("migration failed", "error", err)
			os.Exit(1)
		}
		src = st
		checker.Register("database", health.Optional(health.PingCheck(db)))
	}

	if _, err := engine.Load(cfg.Indexer.SnapshotPath); err != nil {
		slog.Warn("snapshot not loaded", "path", cfg.Indexer.SnapshotPath, "error", err)
		if src != nil {
			if _, err := engine.Build(ctx, src); err != nil {
				slog.Error("building index from store failed", "error", err)
			} else if _, err := engine.Save(cfg.Indexer.SnapshotPath); err != nil {
				slog.Warn("saving snapshot failed", "error", err)
			}
		}
	}

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			checker.Register("redis", health.Optional(health.PingCheck(redisClient)))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var collector *analytics.Collector
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.AnalyticsTopic)
		defer producer.Close()
		collector = analytics.NewCollector(producer, analytics.CollectorConfig{
			Buffer:        cfg.Kafka.CollectorBuffer,
			BatchSize:     cfg.Kafka.BatchSize,
			FlushInterval: cfg.Kafka.FlushInterval,
		})
		collector.Start()
		defer collector.Close()
	}

	var (
		admin     func(http.Handler) http.Handler
		validator auth.KeyValidator
	)
	if cfg.Auth.Enabled {
		if db == nil {
			slog.Error("auth.enabled needs a database for api keys")
			os.Exit(1)
		}
		keys := apikey.NewValidator(db)
		if err := keys.Migrate(ctx); err != nil {
			slog.Error("api key migration failed", "error", err)
			os.Exit(1)
		}
		validator = keys
		admin = auth.RequireKey(keys)
	}

	h := handler.New(engine, handler.Options{
		Cache:        queryCache,
		Collector:    collector,
		Metrics:      m,
		Source:       src,
		SnapshotPath: cfg.Indexer.SnapshotPath,
		DefaultK:     cfg.Search.DefaultK,
		MaxK:         cfg.Search.MaxK,
		Admin:        admin,
	})
	checker.Register("index", h.Ready)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	if st != nil {
		rb := consumer.NewRebuilder(engine, st, cfg.Indexer.RebuildDebounce, func(ctx context.Context, stats indexer.Stats) {
			if _, err := engine.Save(cfg.Indexer.SnapshotPath); err != nil {
				slog.Warn("saving snapshot failed", "error", err)
			}
			if queryCache != nil {
				if _, err := queryCache.Invalidate(ctx); err != nil {
					slog.Warn("cache invalidation failed", "error", err)
				}
			}
			if collector != nil {
				collector.TrackIndex(analytics.IndexEvent{
					Generation: stats.Generation,
					Documents:  stats.Documents,
					Vocabulary: stats.Vocabulary,
					Origin:     stats.Origin,
					Timestamp:  time.Now().UTC(),
				})
			}
		})
		go func() {
			if err := rb.Run(ctx); err != nil {
				slog.Error("rebuilder stopped", "error", err)
			}
		}()

		var listingsOut publisher.EventPublisher
		if cfg.Kafka.Enabled {
			producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.ListingsTopic)
			defer producer.Close()
			listingsOut = producer
		}
		pub := publisher.New(st, listingsOut, rb.Trigger)
		ingesthandler.New(pub, st, rb.Trigger, admin).Register(mux)

		if *follow {
			if !cfg.Kafka.Enabled {
				slog.Error("-follow needs kafka.enabled")
				os.Exit(1)
			}
			listings := consumer.New(kafka.NewConsumer(cfg.Kafka, cfg.Kafka.ListingsTopic, "searcher", consumer.HandleListing(st, rb)))
			go func() {
				if err := listings.Start(ctx); err != nil {
					slog.Error("listing consumer stopped", "error", err)
				}
			}()
			slog.Info("following listings topic", "topic", cfg.Kafka.ListingsTopic)
		}
	} else if *follow {
		slog.Error("-follow needs a document store")
		os.Exit(1)
	}

	mws := []func(http.Handler) http.Handler{middleware.RequestID, middleware.AccessLog}
	if len(cfg.Server.CORSOrigins) > 0 {
		mws = append(mws, middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins)))
	}
	if cfg.Auth.AnonymousRateLimit > 0 {
		mws = append(mws, auth.RateLimit(ratelimit.New(cfg.Auth.RateWindow), validator, cfg.Auth.AnonymousRateLimit))
	}
	mws = append(mws, middleware.Metrics(m), middleware.Timeout(cfg.Server.WriteTimeout))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, mws...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout + time.Second,
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

	slog.Info("search service listening", "addr", server.Addr, "index", engine.Stats())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}
