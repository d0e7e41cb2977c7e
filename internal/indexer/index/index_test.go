package index

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/indexer/weight"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/appsearch/pkg/errors"
)

var exampleTexts = map[string]string{
	"A": "cat dog cat",
	"B": "dog bird",
	"C": "cat cat cat",
}

var listingTexts = map[string]string{
	"Photo Editor Pro":    "Edit photos with filters, crop pictures and share albums",
	"Camera Plus":         "Take photos and record video with a powerful camera",
	"Budget Tracker":      "Track expenses, plan a monthly budget and save money",
	"Expense Manager":     "Manage expenses and bills, export reports",
	"Music Player":        "Play music offline, build playlists, equalizer",
	"Podcast Hub":         "Stream podcasts and music episodes offline",
	"Recipe Box":          "Cook recipes, plan meals and make shopping lists",
	"Empty Listing":       "",
	"Stopwords Only Page": "the and of with",
}

func buildExample(t *testing.T) *Index {
	t.Helper()
	idx, err := BuildFromText(context.Background(), exampleTexts, tokenizer.Whitespace, 2)
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

func standard() tokenizer.Processor {
	return tokenizer.NewAnalyzer(tokenizer.Options{Lowercase: true, Stopwords: true, Stem: true, MinLength: 2})
}

func TestWorkedExample(t *testing.T) {
	idx := buildExample(t)

	wantIDF := map[string]float64{"cat": math.Log(1.5), "dog": math.Log(1.5), "bird": math.Log(3)}
	for term, want := range wantIDF {
		got, ok := idx.IDF(term)
		if !ok || math.Abs(got-want) > 1e-12 {
			t.Errorf("IDF(%s) = %v, %v; want %v", term, got, ok, want)
		}
	}
	if idx.VocabularySize() != 3 || idx.Len() != 3 {
		t.Fatalf("vocabulary %d, documents %d; want 3, 3", idx.VocabularySize(), idx.Len())
	}

	got, err := idx.Query("cat", 2)
	if err != nil {
		t.Fatal(err)
	}
	want := []ranker.Result{
		{Name: "C", Score: 1},
		{Name: "A", Score: 1 / math.Sqrt(1.25)},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Diff: (-want +got)\n%s", diff)
	}
}

func TestQueryNotFound(t *testing.T) {
	idx := buildExample(t)
	cases := []struct {
		text string
		want error
	}{
		{"", apperrors.ErrEmptyQuery},
		{"   ", apperrors.ErrEmptyQuery},
		{"fish", apperrors.ErrNoMatch},
		{"fish whale", apperrors.ErrNoMatch},
	}
	for _, tc := range cases {
		for _, k := range []int{1, 3, 100} {
			res, err := idx.Query(tc.text, k)
			if !errors.Is(err, tc.want) {
				t.Errorf("Query(%q, %d) err = %v; want %v", tc.text, k, err, tc.want)
			}
			if !errors.Is(err, apperrors.ErrNotFound) {
				t.Errorf("Query(%q, %d) err = %v does not wrap ErrNotFound", tc.text, k, err)
			}
			if res != nil {
				t.Errorf("Query(%q, %d) = %v; want nil", tc.text, k, res)
			}
		}
	}
}

func TestQueryUbiquitousTermIsNoMatch(t *testing.T) {
	idx := Build(map[string][]string{"a": {"app"}, "b": {"app", "game"}}, tokenizer.Whitespace)
	if _, err := idx.Query("app", 5); !errors.Is(err, apperrors.ErrNoMatch) {
		t.Errorf("err = %v; want ErrNoMatch", err)
	}
}

func TestQueryZeroK(t *testing.T) {
	idx := buildExample(t)
	for _, text := range []string{"", "cat", "fish", "cat dog bird"} {
		res, err := idx.Query(text, 0)
		if err != nil {
			t.Errorf("Query(%q, 0) err = %v", text, err)
		}
		if res == nil || len(res) != 0 {
			t.Errorf("Query(%q, 0) = %#v; want empty non-nil", text, res)
		}
	}
}

func TestQueryNegativeK(t *testing.T) {
	idx := buildExample(t)
	if _, err := idx.Query("cat", -1); !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Errorf("err = %v; want ErrInvalidArgument", err)
	}
}

func TestQueryLargeK(t *testing.T) {
	idx := buildExample(t)
	res, err := idx.Query("dog", 50)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"A", "B"}, names(res)); diff != "" {
		t.Errorf("Diff: (-want +got)\n%s", diff)
	}
}

func TestQueryEmptyIndex(t *testing.T) {
	idx := Build(nil, tokenizer.Whitespace)
	if _, err := idx.Query("cat", 3); !errors.Is(err, apperrors.ErrNoMatch) {
		t.Errorf("err = %v; want ErrNoMatch", err)
	}
	if _, err := idx.Query("", 3); !errors.Is(err, apperrors.ErrEmptyQuery) {
		t.Errorf("err = %v; want ErrEmptyQuery", err)
	}
}

func TestNormRoundTrip(t *testing.T) {
	idx, err := BuildFromText(context.Background(), listingTexts, standard(), 4)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range idx.Documents() {
		d, ok := idx.Vector(name)
		if !ok {
			t.Fatalf("Vector(%q) missing", name)
		}
		if len(d.Values) != idx.VocabularySize() {
			t.Errorf("%q: %d values for %d terms", name, len(d.Values), idx.VocabularySize())
		}
		if math.Abs(weight.Norm(d.Values)-d.Norm) > 1e-12 {
			t.Errorf("%q: cached norm %v != %v", name, d.Norm, weight.Norm(d.Values))
		}
	}
}

func TestIDFNonNegative(t *testing.T) {
	texts := map[string]string{
		"a": "free app photo",
		"b": "free app music",
		"c": "free app",
	}
	idx, err := BuildFromText(context.Background(), texts, tokenizer.Whitespace, 1)
	if err != nil {
		t.Fatal(err)
	}
	for _, term := range []string{"free", "app", "photo", "music"} {
		w, _ := idx.IDF(term)
		if w < 0 {
			t.Errorf("idf[%s] = %v < 0", term, w)
		}
		inEvery := term == "free" || term == "app"
		if (w == 0) != inEvery {
			t.Errorf("idf[%s] = %v; in every document: %v", term, w, inEvery)
		}
	}
}

func TestSelfQueryRanksFirst(t *testing.T) {
	proc := standard()
	idx, err := BuildFromText(context.Background(), listingTexts, proc, 3)
	if err != nil {
		t.Fatal(err)
	}
	for name, text := range listingTexts {
		d, _ := idx.Vector(name)
		if d.Norm == 0 {
			continue
		}
		res, err := idx.Query(text, 3)
		if err != nil {
			t.Fatalf("Query(%q): %v", name, err)
		}
		var self float64
		for _, r := range res {
			if r.Name == name {
				self = r.Score
			}
		}
		if self == 0 || math.Abs(res[0].Score-self) > 1e-12 {
			t.Errorf("%q: self score %v, top %v (%s)", name, self, res[0].Score, res[0].Name)
		}
	}
}

func TestZeroNormDocumentsExcluded(t *testing.T) {
	idx, err := BuildFromText(context.Background(), listingTexts, standard(), 2)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"Empty Listing", "Stopwords Only Page"} {
		d, ok := idx.Vector(name)
		if !ok || d.Norm != 0 {
			t.Fatalf("%q: norm %v, ok %v; want indexed with zero norm", name, d.Norm, ok)
		}
	}
	res, err := idx.Query("photos music budget recipes", 100)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range res {
		if r.Score <= 0 {
			t.Errorf("non-positive score returned: %+v", r)
		}
		if r.Name == "Empty Listing" || r.Name == "Stopwords Only Page" {
			t.Errorf("zero-norm document ranked: %+v", r)
		}
	}
}

func TestDeterministicAcrossBuilds(t *testing.T) {
	proc := standard()
	queries := []string{"photo", "music offline", "plan", "expenses budget money", "share"}
	first, err := BuildFromText(context.Background(), listingTexts, proc, 8)
	if err != nil {
		t.Fatal(err)
	}
	second, err := BuildFromText(context.Background(), listingTexts, proc, 1)
	if err != nil {
		t.Fatal(err)
	}
	for _, q := range queries {
		a, errA := first.Query(q, 5)
		b, errB := second.Query(q, 5)
		if (errA == nil) != (errB == nil) {
			t.Errorf("%q: errors differ: %v vs %v", q, errA, errB)
		}
		if diff := cmp.Diff(a, b); diff != "" {
			t.Errorf("%q: Diff: (-first +second)\n%s", q, diff)
		}
	}
}

func TestBuildMatchesBuildFromText(t *testing.T) {
	docs := make(map[string][]string, len(exampleTexts))
	for name, text := range exampleTexts {
		docs[name] = tokenizer.Whitespace.Process(text)
	}
	a := Build(docs, tokenizer.Whitespace)
	b := buildExample(t)
	if diff := cmp.Diff(a.Snapshot(), b.Snapshot()); diff != "" {
		t.Errorf("Diff: (-Build +BuildFromText)\n%s", diff)
	}
}

func TestBuildFromTextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := BuildFromText(ctx, listingTexts, standard(), 2); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v; want context.Canceled", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	idx, err := BuildFromText(context.Background(), listingTexts, standard(), 2)
	if err != nil {
		t.Fatal(err)
	}
	restored, err := FromSnapshot(idx.Snapshot(), idx.Processor())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(idx.Snapshot(), restored.Snapshot()); diff != "" {
		t.Errorf("Diff: (-want +got)\n%s", diff)
	}
	a, _ := idx.Query("music", 5)
	b, _ := restored.Query("music", 5)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("query Diff: (-want +got)\n%s", diff)
	}
}

func TestFromSnapshotRejectsCorrupt(t *testing.T) {
	idx := buildExample(t)
	cases := map[string]func(*Snapshot){
		"idf length":     func(s *Snapshot) { s.IDF = s.IDF[:1] },
		"negative idf":   func(s *Snapshot) { s.IDF[0] = -1 },
		"duplicate term": func(s *Snapshot) { s.Terms[1] = s.Terms[0] },
		"vector length":  func(s *Snapshot) { s.Documents[0].Values = s.Documents[0].Values[:2] },
		"norm mismatch":  func(s *Snapshot) { s.Documents[0].Norm += 1 },
		"duplicate doc":  func(s *Snapshot) { s.Documents[1].Name = s.Documents[0].Name },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			snap := deepCopy(idx.Snapshot())
			mutate(&snap)
			if _, err := FromSnapshot(snap, tokenizer.Whitespace); !errors.Is(err, apperrors.ErrSnapshotCorrupt) {
				t.Errorf("err = %v; want ErrSnapshotCorrupt", err)
			}
		})
	}
}

func deepCopy(s Snapshot) Snapshot {
	out := Snapshot{
		Terms:     append([]string(nil), s.Terms...),
		IDF:       append([]float64(nil), s.IDF...),
		Documents: make([]weight.DocVector, len(s.Documents)),
	}
	for i, d := range s.Documents {
		d.Values = append(weight.Vector(nil), d.Values...)
		out.Documents[i] = d
	}
	return out
}

func names(res []ranker.Result) []string {
	out := make([]string, len(res))
	for i, r := range res {
		out[i] = r.Name
	}
	return out
}
