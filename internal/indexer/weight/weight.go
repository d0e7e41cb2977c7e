// Package weight turns term sequences into TF-IDF vectors over a fixed
// vocabulary.
package weight

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/indexer/vocab"
)

// Vector holds one weight per vocabulary index.
type Vector []float64

// IDFTable holds idf[t] = ln(N/df(t)) aligned to vocabulary indices.
type IDFTable []float64

// DocVector is the stored representation of one indexed document.
type DocVector struct {
	Name   string
	Values Vector
	Norm   float64
}

// ComputeIDF derives inverse document frequencies for every vocabulary term.
// Every term has df >= 1, so all weights are >= 0 and exactly 0 for a term
// present in every document.
func ComputeIDF(v *vocab.Vocabulary, postings vocab.PostingList, totalDocs int) IDFTable {
	idf := make(IDFTable, v.Len())
	for i := range idf {
		df := postings.DocFreq(v.Term(i))
		if df == 0 || totalDocs == 0 {
			continue
		}
		idf[i] = math.Log(float64(totalDocs) / float64(df))
	}
	return idf
}

// Vectorize builds the max-TF normalized TF-IDF vector for terms.
// Terms outside the vocabulary are ignored and do not count toward the
// maximum term frequency.
func Vectorize(terms []string, v *vocab.Vocabulary, idf IDFTable) (Vector, float64) {
	vec := make(Vector, v.Len())
	counts := make(map[int]int, len(terms))
	maxCount := 0
	for _, t := range terms {
		i, ok := v.Index(t)
		if !ok {
			continue
		}
		counts[i]++
		if counts[i] > maxCount {
			maxCount = counts[i]
		}
	}
	if maxCount == 0 {
		maxCount = 1
	}
	for i, c := range counts {
		vec[i] = float64(c) / float64(maxCount) * idf[i]
	}
	return vec, Norm(vec)
}

func Norm(v Vector) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Dot panics if the vectors differ in length.
func Dot(a, b Vector) float64 {
	if len(a) != len(b) {
		panic("weight: dot product of vectors with different lengths")
	}
	var sum float64
	for i, x := range a {
		if x == 0 {
			continue
		}
		sum += x * b[i]
	}
	return sum
}

// Cosine returns the cosine similarity given precomputed norms, or 0 when
// either norm is zero.
func Cosine(a Vector, aNorm float64, b Vector, bNorm float64) float64 {
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	return Dot(a, b) / (aNorm * bNorm)
}

// IsZero reports whether every component is exactly zero.
func (v Vector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
