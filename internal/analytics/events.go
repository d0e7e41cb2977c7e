// Package analytics records what users search for and how the index
// answers. The search service publishes events through a Collector; the
// analytics service consumes them into an Aggregator.
package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventIndexBuild EventType = "index_build"
)

// SearchEvent describes one answered query.
type SearchEvent struct {
	Type       EventType `json:"type"`
	Query      string    `json:"query"`
	Terms      []string  `json:"terms,omitempty"`
	K          int       `json:"k"`
	Returned   int       `json:"returned"`
	TopResult  string    `json:"top_result,omitempty"`
	NotFound   bool      `json:"not_found"`
	Reason     string    `json:"reason,omitempty"`
	CacheHit   bool      `json:"cache_hit"`
	LatencyMs  float64   `json:"latency_ms"`
	Generation uint64    `json:"generation"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

// IndexEvent describes one index swap.
type IndexEvent struct {
	Type       EventType `json:"type"`
	Generation uint64    `json:"generation"`
	Documents  int       `json:"documents"`
	Vocabulary int       `json:"vocabulary"`
	Origin     string    `json:"origin"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// envelope is decoded first to route a message by its type.
type envelope struct {
	Type EventType `json:"type"`
}
