package analytics

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/kafka"
)

//go:generate mockgen -source=collector.go -destination=mock_publisher_test.go -package=analytics

// Publisher writes a batch of events. *kafka.Producer satisfies it.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

type CollectorConfig struct {
	Buffer        int
	BatchSize     int
	FlushInterval time.Duration
}

// Collector buffers events and publishes them in batches from a single
// goroutine. Track never blocks: when the buffer is full the event is
// dropped and counted.
type Collector struct {
	publisher Publisher
	eventCh   chan kafka.Event
	batchSize int
	interval  time.Duration
	dropped   atomic.Int64
	published atomic.Int64
	logger    *slog.Logger
	done      chan struct{}
}

func NewCollector(publisher Publisher, cfg CollectorConfig) *Collector {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 10000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	return &Collector{
		publisher: publisher,
		eventCh:   make(chan kafka.Event, cfg.Buffer),
		batchSize: cfg.BatchSize,
		interval:  cfg.FlushInterval,
		logger:    slog.Default().With("component", "analytics-collector"),
		done:      make(chan struct{}),
	}
}

// Start launches the publish loop. It runs until Close is called; events
// still buffered then are flushed with a short deadline.
func (c *Collector) Start() {
	go c.run()
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
		"flush_interval", c.interval,
	)
}

func (c *Collector) run() {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.batchSize)
	for {
		select {
		case ev, ok := <-c.eventCh:
			if !ok {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.flush(ctx, batch)
				cancel()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= c.batchSize {
				batch = c.flush(context.Background(), batch)
			}
		case <-ticker.C:
			batch = c.flush(context.Background(), batch)
		}
	}
}

// flush publishes batch and returns the emptied slice. A failed batch is
// dropped.
func (c *Collector) flush(ctx context.Context, batch []kafka.Event) []kafka.Event {
	if len(batch) == 0 {
		return batch
	}
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.dropped.Add(int64(len(batch)))
		c.logger.Error("failed to publish analytics batch", "events", len(batch), "error", err)
	} else {
		c.published.Add(int64(len(batch)))
	}
	return batch[:0]
}

func (c *Collector) TrackSearch(ev SearchEvent) {
	ev.Type = EventSearch
	c.track(kafka.Event{Key: ev.Query, Value: ev})
}

func (c *Collector) TrackIndex(ev IndexEvent) {
	ev.Type = EventIndexBuild
	c.track(kafka.Event{Key: "index", Value: ev})
}

func (c *Collector) track(ev kafka.Event) {
	select {
	case c.eventCh <- ev:
	default:
		if c.dropped.Add(1)%1000 == 1 {
			c.logger.Warn("analytics event dropped (buffer full)", "dropped_total", c.dropped.Load())
		}
	}
}

// Close stops accepting events and waits for the final flush. Track must
// not be called after Close.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

// Counts reports how many events were published and dropped so far.
func (c *Collector) Counts() (published, dropped int64) {
	return c.published.Load(), c.dropped.Load()
}
