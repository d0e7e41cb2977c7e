package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/indexer/snapshot"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/appsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/tracing"
)

//go:generate mockgen -source=engine.go -destination=mock_source_test.go -package=indexer

// Source enumerates the documents to index as name -> raw text.
type Source interface {
	Documents(ctx context.Context) (map[string]string, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (map[string]string, error)

func (f SourceFunc) Documents(ctx context.Context) (map[string]string, error) { return f(ctx) }

// Stats describes the live index.
type Stats struct {
	Ready      bool      `json:"ready"`
	Generation uint64    `json:"generation"`
	Documents  int       `json:"documents"`
	Vocabulary int       `json:"vocabulary"`
	Processor  string    `json:"processor"`
	Origin     string    `json:"origin,omitempty"`
	BuiltAt    time.Time `json:"built_at,omitzero"`
}

// Engine owns the live index. Builds produce a fresh immutable index that
// replaces the previous one atomically; queries in flight keep using the
// index they started with.
type Engine struct {
	live    atomic.Pointer[live]
	buildMu sync.Mutex

	mu      sync.RWMutex
	origin  string
	builtAt time.Time

	cfg      config.IndexerConfig
	proc     tokenizer.Processor
	procName string
	metrics  *metrics.Metrics
	tracing  bool
	logger   *slog.Logger
}

// live pairs an index with the generation it was published under so the
// two are always read together.
type live struct {
	idx *index.Index
	gen uint64
}

type Option func(*Engine)

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTracing logs a span tree for every build.
func WithTracing(enabled bool) Option {
	return func(e *Engine) { e.tracing = enabled }
}

func NewEngine(cfg config.IndexerConfig, tcfg config.TokenizerConfig, opts ...Option) (*Engine, error) {
	proc, err := tokenizer.New(tcfg)
	if err != nil {
		return nil, fmt.Errorf("creating text processor: %w", err)
	}
	e := &Engine{
		cfg:      cfg,
		proc:     proc,
		procName: tokenizer.Describe(tcfg),
		logger:   slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Build fetches every document from src, builds a new index and swaps it
// in. Concurrent builds are serialized.
func (e *Engine) Build(ctx context.Context, src Source) (Stats, error) {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	ctx, span := tracing.StartSpan(ctx, "index.build")
	defer e.finishSpan(span)

	fetchCtx, fetchSpan := tracing.StartChildSpan(ctx, "fetch_documents")
	texts, err := src.Documents(fetchCtx)
	e.observePhase("fetch", fetchSpan.End())
	if err != nil {
		e.observeBuild("store", err)
		return Stats{}, fmt.Errorf("fetching documents: %w", err)
	}
	fetchSpan.SetAttr("documents", len(texts))

	buildCtx, buildSpan := tracing.StartChildSpan(ctx, "vectorize")
	idx, err := index.BuildFromText(buildCtx, texts, e.proc, e.cfg.Workers)
	e.observePhase("vectorize", buildSpan.End())
	if err != nil {
		e.observeBuild("store", err)
		return Stats{}, fmt.Errorf("building index: %w", err)
	}
	buildSpan.SetAttr("vocabulary", idx.VocabularySize())

	gen := e.swap(idx, "build")
	e.observeBuild("store", nil)
	e.logger.Info("index built",
		"documents", idx.Len(),
		"vocabulary", idx.VocabularySize(),
		"generation", gen,
		"duration_ms", time.Since(span.StartTime).Milliseconds(),
	)
	return e.Stats(), nil
}

// Load replaces the live index with the snapshot at path. The snapshot must
// have been built with the same text processor as this engine.
func (e *Engine) Load(path string) (Stats, error) {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	start := time.Now()
	snap, meta, err := snapshot.Read(path)
	if err != nil {
		e.observeBuild("snapshot", err)
		return Stats{}, fmt.Errorf("reading snapshot %s: %w", path, err)
	}
	if meta.Processor != e.procName {
		err := fmt.Errorf("snapshot %s was built with processor %q, engine uses %q: %w",
			path, meta.Processor, e.procName, apperrors.ErrInvalidArgument)
		e.observeBuild("snapshot", err)
		return Stats{}, err
	}
	idx, err := index.FromSnapshot(snap, e.proc)
	if err != nil {
		e.observeBuild("snapshot", err)
		return Stats{}, fmt.Errorf("restoring snapshot %s: %w", path, err)
	}
	e.observePhase("load", time.Since(start))

	gen := e.swap(idx, "snapshot:"+path)
	e.observeBuild("snapshot", nil)
	e.logger.Info("index loaded from snapshot",
		"path", path,
		"documents", idx.Len(),
		"vocabulary", idx.VocabularySize(),
		"created_at", meta.CreatedAt,
		"generation", gen,
	)
	return e.Stats(), nil
}

// Save writes the live index to path.
func (e *Engine) Save(path string) (snapshot.Meta, error) {
	idx, _ := e.Live()
	if idx == nil {
		return snapshot.Meta{}, apperrors.ErrIndexNotReady
	}
	meta, err := snapshot.Write(path, idx.Snapshot(), e.procName)
	if err != nil {
		return snapshot.Meta{}, fmt.Errorf("writing snapshot %s: %w", path, err)
	}
	e.logger.Info("snapshot written",
		"path", path,
		"documents", meta.Documents,
		"vocabulary", meta.Terms,
	)
	return meta, nil
}

// Query ranks the live index against text. See index.Index.Query for the
// result contract.
func (e *Engine) Query(ctx context.Context, text string, k int) ([]ranker.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx, _ := e.Live()
	if idx == nil {
		return nil, apperrors.ErrIndexNotReady
	}
	return idx.Query(text, k)
}

// Terms runs the engine's text processor, the one every live index was
// built with.
func (e *Engine) Terms(text string) []string {
	return e.proc.Process(text)
}

// Current returns the live index, or nil before the first build or load.
func (e *Engine) Current() *index.Index {
	idx, _ := e.Live()
	return idx
}

// Live returns the live index together with its generation.
func (e *Engine) Live() (*index.Index, uint64) {
	l := e.live.Load()
	if l == nil {
		return nil, 0
	}
	return l.idx, l.gen
}

// Generation increases by one on every swap and is 0 before the first.
func (e *Engine) Generation() uint64 {
	_, gen := e.Live()
	return gen
}

func (e *Engine) ProcessorName() string {
	return e.procName
}

func (e *Engine) Stats() Stats {
	idx, gen := e.Live()
	s := Stats{
		Generation: gen,
		Processor:  e.procName,
	}
	if idx == nil {
		return s
	}
	s.Ready = true
	s.Documents = idx.Len()
	s.Vocabulary = idx.VocabularySize()
	e.mu.RLock()
	s.Origin = e.origin
	s.BuiltAt = e.builtAt
	e.mu.RUnlock()
	return s
}

func (e *Engine) swap(idx *index.Index, origin string) uint64 {
	e.mu.Lock()
	e.origin = origin
	e.builtAt = time.Now()
	e.mu.Unlock()
	// swaps are serialized by buildMu
	_, prev := e.Live()
	gen := prev + 1
	e.live.Store(&live{idx: idx, gen: gen})

	if e.metrics != nil {
		e.metrics.IndexDocuments.Set(float64(idx.Len()))
		e.metrics.IndexVocabularySize.Set(float64(idx.VocabularySize()))
		e.metrics.IndexGeneration.Set(float64(gen))
	}
	return gen
}

func (e *Engine) observePhase(phase string, d time.Duration) {
	if e.metrics != nil {
		e.metrics.IndexBuildDuration.WithLabelValues(phase).Observe(d.Seconds())
	}
}

func (e *Engine) observeBuild(source string, err error) {
	if err != nil {
		e.logger.Error("index build failed", "source", source, "error", err)
	}
	if e.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	e.metrics.IndexBuildsTotal.WithLabelValues(source, status).Inc()
}

func (e *Engine) finishSpan(span *tracing.Span) {
	span.End()
	if e.tracing {
		span.Log(e.logger)
	}
}
