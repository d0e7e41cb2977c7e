// Command indexer builds the TF-IDF index from every stored document and
// writes it to the snapshot file the searcher and query tools load.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml] [-out data/index.asix]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/store"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/database"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	out := flag.String("out", "", "snapshot path (defaults to indexer.snapshotPath)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, nil)
	if *out == "" {
		*out = cfg.Indexer.SnapshotPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	engine, err := indexer.NewEngine(cfg.Indexer, cfg.Tokenizer,
		indexer.WithMetrics(metrics.New(nil)),
		indexer.WithTracing(cfg.Tracing.Enabled),
	)
	if err != nil {
		slog.Error("failed to create engine", "error", err)
		os.Exit(1)
	}
	stats, err := engine.Build(ctx, st)
	if err != nil {
		slog.Error("index build failed", "error", err)
		os.Exit(1)
	}
	meta, err := engine.Save(*out)
	if err != nil {
		slog.Error("writing snapshot failed", "error", err)
		os.Exit(1)
	}
	slog.Info("index written",
		"path", *out,
		"documents", stats.Documents,
		"vocabulary", stats.Vocabulary,
		"processor", meta.Processor,
	)
}
