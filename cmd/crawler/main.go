// Command crawler discovers app listings from a seed page, extracts their
// title and description, and stores them as documents. With Kafka enabled
// the listings are published to the listings topic instead, for a searcher
// running with -follow to pick up.
//
// Usage:
//
//	go run ./cmd/crawler [-config configs/development.yaml] [-seed URL] [-n 500]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/crawler"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/store"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/database"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	seed := flag.String("seed", "", "seed page (defaults to crawler.seedUrl)")
	limit := flag.Int("n", 0, "number of listings to collect (defaults to crawler.maxApps)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, nil)
	if *seed == "" {
		*seed = cfg.Crawler.SeedURL
	}
	if *limit <= 0 {
		*limit = cfg.Crawler.MaxApps
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdown := m.StartServer(cfg.Metrics.Port)
		defer shutdown(context.Background())
	}

	client := &http.Client{Timeout: cfg.Crawler.FetchTimeout + 5*time.Second}
	c := crawler.New(cfg.Crawler, crawler.NewHTTPFetcher(cfg.Crawler, client, m), m)

	slog.Info("starting crawl", "seed", *seed, "target", *limit, "workers", cfg.Crawler.Workers)
	listings, err := c.Crawl(ctx, *seed, *limit)
	if err != nil {
		slog.Error("crawl failed", "error", err)
		os.Exit(1)
	}
	docs := make([]store.Document, len(listings))
	for i, l := range listings {
		docs[i] = store.FromListing(l)
	}

	if cfg.Kafka.Enabled {
		if err := publish(ctx, cfg.Kafka, docs); err != nil {
			slog.Error("publishing listings failed", "error", err)
			os.Exit(1)
		}
		slog.Info("listings published", "count", len(docs), "topic", cfg.Kafka.ListingsTopic)
		return
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	st := store.New(db)
	if err := st.Migrate(ctx); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
	if err := st.Upsert(ctx, docs...); err != nil {
		slog.Error("storing listings failed", "error", err)
		os.Exit(1)
	}
	total, _ := st.Count(ctx)
	slog.Info("listings stored", "count", len(docs), "store_total", total)
}

func publish(ctx context.Context, cfg config.KafkaConfig, docs []store.Document) error {
	producer := kafka.NewProducer(cfg, cfg.ListingsTopic)
	defer producer.Close()

	events := make([]kafka.Event, len(docs))
	for i, d := range docs {
		events[i] = kafka.Event{Key: d.AppID, Value: d}
	}
	batch := max(cfg.BatchSize, 1)
	for start := 0; start < len(events); start += batch {
		end := min(start+batch, len(events))
		if err := producer.PublishBatch(ctx, events[start:end]); err != nil {
			return err
		}
	}
	return nil
}
