// Package consumer keeps the index current from a Kafka stream of crawled
// listings: each listing is written to the store, and a debounced rebuild
// swaps in a fresh index once the stream goes quiet.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/store"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/kafka"
)

// Upserter is the write side of the document store.
type Upserter interface {
	Upsert(ctx context.Context, docs ...store.Document) error
}

// Builder builds and publishes a new index from a source.
type Builder interface {
	Build(ctx context.Context, src indexer.Source) (indexer.Stats, error)
}

// HandleListing returns a Kafka handler that stores each listing and asks
// rb for a rebuild. Undecodable messages are logged and skipped; store
// failures are returned so the message is redelivered.
func HandleListing(st Upserter, rb *Rebuilder) kafka.MessageHandler {
	logger := slog.Default().With("component", "listing-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		doc, err := kafka.DecodeJSON[store.Document](value)
		if err != nil {
			logger.Error("failed to decode listing", "key", string(key), "error", err)
			return nil
		}
		if doc.Name == "" {
			logger.Warn("skipping listing without a name", "key", string(key), "url", doc.URL)
			return nil
		}
		if err := st.Upsert(ctx, doc); err != nil {
			return fmt.Errorf("storing listing %q: %w", doc.Name, err)
		}
		logger.Debug("listing stored", "name", doc.Name, "app_id", doc.AppID)
		rb.Trigger()
		return nil
	}
}

// Rebuilder coalesces rebuild requests: a build starts once no request has
// arrived for the debounce interval.
type Rebuilder struct {
	builder  Builder
	src      indexer.Source
	debounce time.Duration
	after    func(context.Context, indexer.Stats)
	pending  chan struct{}
	logger   *slog.Logger
}

// NewRebuilder creates a Rebuilder. after, if non-nil, runs after every
// successful build.
func NewRebuilder(b Builder, src indexer.Source, debounce time.Duration, after func(context.Context, indexer.Stats)) *Rebuilder {
	if debounce <= 0 {
		debounce = time.Second
	}
	return &Rebuilder{
		builder:  b,
		src:      src,
		debounce: debounce,
		after:    after,
		pending:  make(chan struct{}, 1),
		logger:   slog.Default().With("component", "rebuilder"),
	}
}

// Trigger requests a rebuild without blocking.
func (r *Rebuilder) Trigger() {
	select {
	case r.pending <- struct{}{}:
	default:
	}
}

// Run services rebuild requests until ctx is cancelled.
func (r *Rebuilder) Run(ctx context.Context) error {
	timer := time.NewTimer(r.debounce)
	timer.Stop()
	armed := false
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-r.pending:
			timer.Reset(r.debounce)
			armed = true
		case <-timer.C:
			if !armed {
				continue
			}
			armed = false
			stats, err := r.builder.Build(ctx, r.src)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.logger.Error("rebuild failed", "error", err)
				continue
			}
			r.logger.Info("index rebuilt from listing stream",
				"generation", stats.Generation,
				"documents", stats.Documents,
			)
			if r.after != nil {
				r.after(ctx, stats)
			}
		}
	}
}

// IndexConsumer drives HandleListing from a Kafka topic.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}
