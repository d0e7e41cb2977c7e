package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/kafka"
)

// AggregatedStats is the analytics service's view of search traffic since
// it started.
type AggregatedStats struct {
	TotalSearches    int64            `json:"total_searches"`
	NotFound         int64            `json:"not_found"`
	NotFoundRate     float64          `json:"not_found_rate"`
	NotFoundReasons  map[string]int64 `json:"not_found_reasons"`
	CacheHits        int64            `json:"cache_hits"`
	CacheHitRate     float64          `json:"cache_hit_rate"`
	AvgLatencyMs     float64          `json:"avg_latency_ms"`
	P50LatencyMs     float64          `json:"p50_latency_ms"`
	P95LatencyMs     float64          `json:"p95_latency_ms"`
	P99LatencyMs     float64          `json:"p99_latency_ms"`
	TopQueries       []QueryCount     `json:"top_queries"`
	TopNotFound      []QueryCount     `json:"top_not_found_queries"`
	TopResults       []QueryCount     `json:"top_results"`
	IndexBuilds      int64            `json:"index_builds"`
	LastIndex        *IndexEvent      `json:"last_index,omitempty"`
	QueriesPerMinute float64          `json:"queries_per_minute"`
	CapturedAt       time.Time        `json:"captured_at"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds events into running totals. Latency percentiles are
// computed over the most recent window events.
type Aggregator struct {
	mu            sync.RWMutex
	totalSearches int64
	notFound      int64
	reasons       map[string]int64
	cacheHits     int64
	latencies     []float64
	next          int
	filled        bool
	queryCounts   map[string]int64
	notFoundCount map[string]int64
	resultCounts  map[string]int64
	indexBuilds   int64
	lastIndex     *IndexEvent
	topN          int
	startTime     time.Time
	now           func() time.Time

	logger *slog.Logger
}

func NewAggregator(window, topN int) *Aggregator {
	if window <= 0 {
		window = 10000
	}
	if topN <= 0 {
		topN = 10
	}
	return &Aggregator{
		reasons:       make(map[string]int64),
		latencies:     make([]float64, window),
		queryCounts:   make(map[string]int64),
		notFoundCount: make(map[string]int64),
		resultCounts:  make(map[string]int64),
		topN:          topN,
		startTime:     time.Now(),
		now:           time.Now,
		logger:        slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent returns a Kafka handler feeding a. Undecodable messages are
// logged and skipped so they do not block the partition.
func HandleEvent(a *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		if err := a.Record(value); err != nil {
			a.logger.Error("skipping analytics event", "key", string(key), "error", err)
		}
		return nil
	}
}

// Record decodes one encoded event and folds it in.
func (a *Aggregator) Record(value []byte) error {
	var env envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return fmt.Errorf("decoding event envelope: %w", err)
	}
	switch env.Type {
	case EventSearch:
		ev, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			return err
		}
		a.RecordSearch(ev)
	case EventIndexBuild:
		ev, err := kafka.DecodeJSON[IndexEvent](value)
		if err != nil {
			return err
		}
		a.RecordIndex(ev)
	default:
		return fmt.Errorf("unknown event type %q", env.Type)
	}
	return nil
}

func (a *Aggregator) RecordSearch(ev SearchEvent) {
	query := normalize(ev.Query)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalSearches++
	if ev.CacheHit {
		a.cacheHits++
	}
	a.latencies[a.next] = ev.LatencyMs
	a.next++
	if a.next == len(a.latencies) {
		a.next = 0
		a.filled = true
	}
	a.queryCounts[query]++
	if ev.NotFound {
		a.notFound++
		reason := ev.Reason
		if reason == "" {
			reason = "not_found"
		}
		a.reasons[reason]++
		a.notFoundCount[query]++
	}
	if ev.TopResult != "" {
		a.resultCounts[ev.TopResult]++
	}
}

func (a *Aggregator) RecordIndex(ev IndexEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.indexBuilds++
	if a.lastIndex == nil || !ev.Timestamp.Before(a.lastIndex.Timestamp) {
		a.lastIndex = &ev
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:   a.totalSearches,
		NotFound:        a.notFound,
		NotFoundReasons: make(map[string]int64, len(a.reasons)),
		CacheHits:       a.cacheHits,
		IndexBuilds:     a.indexBuilds,
		CapturedAt:      a.now().UTC(),
	}
	for r, n := range a.reasons {
		stats.NotFoundReasons[r] = n
	}
	if a.lastIndex != nil {
		last := *a.lastIndex
		stats.LastIndex = &last
	}
	if a.totalSearches > 0 {
		stats.NotFoundRate = float64(a.notFound) / float64(a.totalSearches)
		stats.CacheHitRate = float64(a.cacheHits) / float64(a.totalSearches)
	}

	n := a.next
	if a.filled {
		n = len(a.latencies)
	}
	if n > 0 {
		sorted := make([]float64, n)
		copy(sorted, a.latencies[:n])
		sort.Float64s(sorted)
		var sum float64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = sum / float64(n)
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}

	stats.TopQueries = topN(a.queryCounts, a.topN)
	stats.TopNotFound = topN(a.notFoundCount, a.topN)
	stats.TopResults = topN(a.resultCounts, a.topN)
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(a.totalSearches) / elapsed
	}
	return stats
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []float64, pct int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (pct*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

// topN orders by count descending then query ascending.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

func normalize(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
