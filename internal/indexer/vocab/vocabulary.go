// Package vocab assigns dense indices to the distinct terms of a corpus and
// records which documents contain each term.
package vocab

import (
	"fmt"
	"sort"
)

// Vocabulary maps each distinct term to a stable index in [0, Len()).
// Indices follow lexicographic term order, so two builds over the same
// corpus agree.
type Vocabulary struct {
	terms []string
	index map[string]int
}

// PostingList maps a term to the sorted names of documents containing it.
type PostingList map[string][]string

// NewVocabulary rebuilds a vocabulary from terms already in index order.
func NewVocabulary(terms []string) (*Vocabulary, error) {
	v := &Vocabulary{
		terms: make([]string, len(terms)),
		index: make(map[string]int, len(terms)),
	}
	copy(v.terms, terms)
	for i, t := range terms {
		if _, dup := v.index[t]; dup {
			return nil, fmt.Errorf("duplicate term %q at index %d", t, i)
		}
		v.index[t] = i
	}
	return v, nil
}

// Build collects the vocabulary and posting lists for docs, keyed by
// document name. Repeated terms within one document count once.
func Build(docs map[string][]string) (*Vocabulary, PostingList) {
	postings := make(PostingList)
	for name, terms := range docs {
		seen := make(map[string]struct{}, len(terms))
		for _, t := range terms {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			postings[t] = append(postings[t], name)
		}
	}

	terms := make([]string, 0, len(postings))
	for t, names := range postings {
		sort.Strings(names)
		terms = append(terms, t)
	}
	sort.Strings(terms)

	v := &Vocabulary{terms: terms, index: make(map[string]int, len(terms))}
	for i, t := range terms {
		v.index[t] = i
	}
	return v, postings
}

func (v *Vocabulary) Len() int { return len(v.terms) }

func (v *Vocabulary) Index(term string) (int, bool) {
	i, ok := v.index[term]
	return i, ok
}

func (v *Vocabulary) Term(i int) string { return v.terms[i] }

// Terms returns a copy of the terms in index order.
func (v *Vocabulary) Terms() []string {
	out := make([]string, len(v.terms))
	copy(out, v.terms)
	return out
}

// DocFreq is the number of documents containing term.
func (p PostingList) DocFreq(term string) int { return len(p[term]) }
