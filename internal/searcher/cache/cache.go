// Package cache memoizes ranked query outcomes in Redis. Entries are keyed
// by the processed query terms, k and the index generation, so a rebuilt
// index never serves results computed against its predecessor.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/appsearch/pkg/redis"
)

//go:generate mockgen -source=cache.go -destination=mock_backend_test.go -package=cache

const keyPrefix = "appsearch:query:"

// Backend is the key/value store behind the cache. *redis.Client satisfies
// it.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

// Entry is one cached query outcome. A not-found outcome is cached with
// NotFound set and Reason naming which kind it was.
type Entry struct {
	Results  []ranker.Result `json:"results"`
	NotFound bool            `json:"not_found,omitempty"`
	Reason   string          `json:"reason,omitempty"`
}

type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

type QueryCache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a cache over backend. m may be nil.
func New(backend Backend, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		backend: backend,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

var _ Backend = (*pkgredis.Client)(nil)

// Get looks up the outcome for terms. Backend failures count as misses.
func (c *QueryCache) Get(ctx context.Context, terms []string, k int, generation uint64) (Entry, bool) {
	key := Key(terms, k, generation)
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return Entry{}, false
	}
	c.hit()
	return e, true
}

func (c *QueryCache) Set(ctx context.Context, terms []string, k int, generation uint64, e Entry) {
	key := Key(terms, k, generation)
	data, err := json.Marshal(e)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached entry or runs compute, sharing a single
// computation between concurrent callers with the same key. Errors from
// compute are returned and not cached.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	terms []string,
	k int,
	generation uint64,
	compute func() (Entry, error),
) (Entry, bool, error) {
	if e, ok := c.Get(ctx, terms, k, generation); ok {
		return e, true, nil
	}
	key := Key(terms, k, generation)
	val, err, _ := c.group.Do(key, func() (any, error) {
		e, err := compute()
		if err != nil {
			return Entry{}, err
		}
		c.Set(ctx, terms, k, generation, e)
		return e, nil
	})
	if err != nil {
		return Entry{}, false, err
	}
	return val.(Entry), false, nil
}

// Invalidate drops every cached query.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.backend.DeletePrefix(ctx, keyPrefix)
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() Stats {
	s := Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// Key derives the cache key. Terms are joined with a separator no
// processor emits, so distinct term sequences never collide.
func Key(terms []string, k int, generation uint64) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(terms, "\x00")))
	h.Write([]byte{0xff})
	h.Write([]byte(strconv.Itoa(k)))
	sum := h.Sum(nil)
	return fmt.Sprintf("%sg%d:%x", keyPrefix, generation, sum[:16])
}
