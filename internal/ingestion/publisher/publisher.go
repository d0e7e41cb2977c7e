// Package publisher routes ingested documents: onto the listings topic when
// Kafka is configured, so every follower of the topic sees them, otherwise
// straight into the document store.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/store"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/kafka"
)

//go:generate mockgen -destination=mock_publisher_test.go -package=publisher . Writer,EventPublisher

// Writer is the write side of the document store.
type Writer interface {
	Upsert(ctx context.Context, docs ...store.Document) error
}

// EventPublisher is the listings topic producer.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

type Publisher struct {
	store    Writer
	producer EventPublisher
	onStored func()
	now      func() time.Time
	logger   *slog.Logger
}

// New creates a Publisher. producer may be nil. onStored, if non-nil, runs
// after every direct store write, typically to request a rebuild.
func New(st Writer, producer EventPublisher, onStored func()) *Publisher {
	return &Publisher{
		store:    st,
		producer: producer,
		onStored: onStored,
		now:      time.Now,
		logger:   slog.Default().With("component", "publisher"),
	}
}

// Ingest queues or stores the request. A failed publish falls back to a
// direct write so the document is never lost.
func (p *Publisher) Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	doc := req.Document(p.now())

	if p.producer != nil {
		key := doc.AppID
		if key == "" {
			key = doc.Name
		}
		err := p.producer.Publish(ctx, kafka.Event{Key: key, Value: doc})
		if err == nil {
			return &ingestion.IngestResponse{Name: doc.Name, Status: ingestion.StatusQueued}, nil
		}
		p.logger.Warn("publishing listing failed, writing to store directly",
			"name", doc.Name,
			"error", err,
		)
	}

	if err := p.store.Upsert(ctx, doc); err != nil {
		return nil, fmt.Errorf("storing document %q: %w", doc.Name, err)
	}
	if p.onStored != nil {
		p.onStored()
	}
	return &ingestion.IngestResponse{Name: doc.Name, Status: ingestion.StatusStored}, nil
}
