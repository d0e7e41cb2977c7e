package vocab

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuild(t *testing.T) {
	docs := map[string][]string{
		"A": {"cat", "dog", "cat"},
		"B": {"dog", "bird"},
		"C": {"cat", "cat", "cat"},
		"D": {},
	}
	v, postings := Build(docs)

	if diff := cmp.Diff([]string{"bird", "cat", "dog"}, v.Terms()); diff != "" {
		t.Errorf("terms Diff: (-want +got)\n%s", diff)
	}
	want := PostingList{
		"bird": {"B"},
		"cat":  {"A", "C"},
		"dog":  {"A", "B"},
	}
	if diff := cmp.Diff(want, postings); diff != "" {
		t.Errorf("postings Diff: (-want +got)\n%s", diff)
	}
	for i, term := range v.Terms() {
		got, ok := v.Index(term)
		if !ok || got != i {
			t.Errorf("Index(%q) = %d, %v; want %d", term, got, ok, i)
		}
		if v.Term(i) != term {
			t.Errorf("Term(%d) = %q; want %q", i, v.Term(i), term)
		}
	}
	if _, ok := v.Index("fish"); ok {
		t.Error("Index(fish) reported present")
	}
	if postings.DocFreq("cat") != 2 || postings.DocFreq("fish") != 0 {
		t.Errorf("DocFreq mismatch: cat=%d fish=%d", postings.DocFreq("cat"), postings.DocFreq("fish"))
	}
}

func TestBuildEmpty(t *testing.T) {
	v, postings := Build(nil)
	if v.Len() != 0 || len(postings) != 0 {
		t.Fatalf("expected empty vocabulary, got %d terms, %d postings", v.Len(), len(postings))
	}
}

func TestBuildStableAcrossRuns(t *testing.T) {
	docs := map[string][]string{
		"x": {"zeta", "alpha", "mu"},
		"y": {"beta", "alpha"},
		"z": {"omega"},
	}
	first, _ := Build(docs)
	for i := 0; i < 20; i++ {
		again, _ := Build(docs)
		if diff := cmp.Diff(first.Terms(), again.Terms()); diff != "" {
			t.Fatalf("build %d: Diff: %s", i, diff)
		}
	}
}

func TestNewVocabulary(t *testing.T) {
	v, err := NewVocabulary([]string{"b", "a"})
	if err != nil {
		t.Fatal(err)
	}
	if i, _ := v.Index("a"); i != 1 {
		t.Errorf("Index(a) = %d; want 1", i)
	}
	if _, err := NewVocabulary([]string{"a", "a"}); err == nil {
		t.Error("expected duplicate term error")
	}
}
