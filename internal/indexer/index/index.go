// Package index holds the immutable TF-IDF index built from a fixed document
// collection and answers cosine similarity queries against it.
//
// An Index records the text processor it was built with and runs query text
// through that same processor. Querying with terms produced by a different
// processor gives meaningless scores.
package index

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/indexer/vocab"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/indexer/weight"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/appsearch/pkg/errors"
)

// Index is safe for concurrent queries. It has no mutation API; rebuilding
// means constructing a new Index.
type Index struct {
	vocab  *vocab.Vocabulary
	idf    weight.IDFTable
	docs   []weight.DocVector
	byName map[string]int
	proc   tokenizer.Processor
}

// Build indexes already tokenized documents keyed by name.
func Build(docs map[string][]string, proc tokenizer.Processor) *Index {
	idx, names := prepare(docs, proc)
	for i, name := range names {
		idx.docs[i] = idx.vectorize(name, docs[name])
	}
	return idx
}

// BuildFromText runs proc over every text and builds the index, tokenizing
// and vectorizing documents on up to workers goroutines. The vocabulary is
// complete before any document vector is computed.
func BuildFromText(ctx context.Context, texts map[string]string, proc tokenizer.Processor, workers int) (*Index, error) {
	if proc == nil {
		return nil, fmt.Errorf("building index: nil text processor: %w", apperrors.ErrInvalidArgument)
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	names := make([]string, 0, len(texts))
	for name := range texts {
		names = append(names, name)
	}
	sort.Strings(names)

	terms := make([][]string, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			terms[i] = proc.Process(texts[name])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("tokenizing documents: %w", err)
	}

	docs := make(map[string][]string, len(names))
	for i, name := range names {
		docs[name] = terms[i]
	}
	idx, _ := prepare(docs, proc)

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			idx.docs[i] = idx.vectorize(name, terms[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("vectorizing documents: %w", err)
	}
	return idx, nil
}

// prepare builds the vocabulary and IDF table and allocates one slot per
// document in name order.
func prepare(docs map[string][]string, proc tokenizer.Processor) (*Index, []string) {
	v, postings := vocab.Build(docs)
	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, name)
	}
	sort.Strings(names)

	byName := make(map[string]int, len(names))
	for i, name := range names {
		byName[name] = i
	}
	return &Index{
		vocab:  v,
		idf:    weight.ComputeIDF(v, postings, len(docs)),
		docs:   make([]weight.DocVector, len(names)),
		byName: byName,
		proc:   proc,
	}, names
}

func (idx *Index) vectorize(name string, terms []string) weight.DocVector {
	values, norm := weight.Vectorize(terms, idx.vocab, idx.idf)
	return weight.DocVector{Name: name, Values: values, Norm: norm}
}

// Query returns the top k documents most similar to text.
//
// k == 0 yields an empty result for any text. When text yields no usable
// weight the error wraps apperrors.ErrNotFound: ErrEmptyQuery if the
// processor produced no terms, ErrNoMatch otherwise.
func (idx *Index) Query(text string, k int) ([]ranker.Result, error) {
	if k < 0 {
		return nil, fmt.Errorf("k=%d: %w", k, apperrors.ErrInvalidArgument)
	}
	if k == 0 {
		return []ranker.Result{}, nil
	}
	if idx.proc == nil {
		return nil, fmt.Errorf("index has no text processor: %w", apperrors.ErrIndexNotReady)
	}
	return idx.QueryTerms(idx.proc.Process(text), k)
}

// QueryTerms is Query for terms that were already processed.
func (idx *Index) QueryTerms(terms []string, k int) ([]ranker.Result, error) {
	if k < 0 {
		return nil, fmt.Errorf("k=%d: %w", k, apperrors.ErrInvalidArgument)
	}
	if k == 0 {
		return []ranker.Result{}, nil
	}
	if len(terms) == 0 {
		return nil, apperrors.ErrEmptyQuery
	}
	q, norm := weight.Vectorize(terms, idx.vocab, idx.idf)
	if norm == 0 {
		return nil, apperrors.ErrNoMatch
	}
	return ranker.Rank(q, norm, idx.docs, k), nil
}

func (idx *Index) Len() int { return len(idx.docs) }

func (idx *Index) VocabularySize() int { return idx.vocab.Len() }

func (idx *Index) Processor() tokenizer.Processor { return idx.proc }

func (idx *Index) IDF(term string) (float64, bool) {
	i, ok := idx.vocab.Index(term)
	if !ok {
		return 0, false
	}
	return idx.idf[i], true
}

// Vector returns the stored vector of the named document. The returned
// value shares memory with the index and must not be modified.
func (idx *Index) Vector(name string) (weight.DocVector, bool) {
	i, ok := idx.byName[name]
	if !ok {
		return weight.DocVector{}, false
	}
	return idx.docs[i], true
}

// Documents returns the indexed document names in sorted order.
func (idx *Index) Documents() []string {
	names := make([]string, len(idx.docs))
	for i, d := range idx.docs {
		names[i] = d.Name
	}
	return names
}

// Snapshot is the complete persisted state of an Index, minus its processor.
type Snapshot struct {
	Terms     []string
	IDF       []float64
	Documents []weight.DocVector
}

func (idx *Index) Snapshot() Snapshot {
	return Snapshot{
		Terms:     idx.vocab.Terms(),
		IDF:       append([]float64(nil), idx.idf...),
		Documents: idx.docs,
	}
}

// normTolerance bounds the drift accepted between a stored norm and the
// norm recomputed from the stored values.
const normTolerance = 1e-9

// FromSnapshot restores an Index. proc must be the processor the snapshot
// was built with.
func FromSnapshot(snap Snapshot, proc tokenizer.Processor) (*Index, error) {
	v, err := vocab.NewVocabulary(snap.Terms)
	if err != nil {
		return nil, fmt.Errorf("restoring vocabulary: %v: %w", err, apperrors.ErrSnapshotCorrupt)
	}
	if len(snap.IDF) != v.Len() {
		return nil, fmt.Errorf("idf table has %d entries for %d terms: %w",
			len(snap.IDF), v.Len(), apperrors.ErrSnapshotCorrupt)
	}
	for i, w := range snap.IDF {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("idf[%s] = %v: %w", v.Term(i), w, apperrors.ErrSnapshotCorrupt)
		}
	}

	idx := &Index{
		vocab:  v,
		idf:    append(weight.IDFTable(nil), snap.IDF...),
		docs:   make([]weight.DocVector, len(snap.Documents)),
		byName: make(map[string]int, len(snap.Documents)),
		proc:   proc,
	}
	copy(idx.docs, snap.Documents)
	sort.Slice(idx.docs, func(i, j int) bool { return idx.docs[i].Name < idx.docs[j].Name })

	for i, d := range idx.docs {
		if _, dup := idx.byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate document %q: %w", d.Name, apperrors.ErrSnapshotCorrupt)
		}
		if len(d.Values) != v.Len() {
			return nil, fmt.Errorf("document %q has %d values for %d terms: %w",
				d.Name, len(d.Values), v.Len(), apperrors.ErrSnapshotCorrupt)
		}
		if math.Abs(weight.Norm(d.Values)-d.Norm) > normTolerance*math.Max(1, d.Norm) {
			return nil, fmt.Errorf("document %q norm mismatch: %w", d.Name, apperrors.ErrSnapshotCorrupt)
		}
		idx.byName[d.Name] = i
	}
	return idx, nil
}
