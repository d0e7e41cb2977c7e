package ranker

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/indexer/weight"
)

type Result struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Rank scores every document by cosine similarity against query and returns
// at most limit results with a positive score. Documents with a zero norm
// are never scored. Results are ordered by score descending, then name
// ascending.
func Rank(query weight.Vector, queryNorm float64, docs []weight.DocVector, limit int) []Result {
	if limit <= 0 || queryNorm == 0 {
		return []Result{}
	}
	result := make([]Result, 0, len(docs))
	for _, d := range docs {
		if d.Norm == 0 {
			continue
		}
		score := weight.Cosine(query, queryNorm, d.Values, d.Norm)
		if score <= 0 {
			continue
		}
		result = append(result, Result{Name: d.Name, Score: score})
	}
	sort.Slice(result, func(i, j int) bool {
		return Less(result[i], result[j])
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result
}

// Less orders by score descending, breaking ties by name.
func Less(a, b Result) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Name < b.Name
}
