package search

import (
	"slices"

	"github.com/jonwraymond/biasdaily/content"
)

// Result pairs a bias with its relevance score and the fields that matched.
type Result struct {
	Bias content.Bias `json:"bias"`

	// Score is the sum of the weights of every matching field.
	// Empty queries score every bias at exactly 1.
	Score float64 `json:"score"`

	// MatchedFields lists the fields that contributed to Score, in
	// title, summary, why, counter, category order.
	MatchedFields []string `json:"matchedFields"`
}

// Matched reports whether field contributed to the score.
func (r Result) Matched(field string) bool {
	return slices.Contains(r.MatchedFields, field)
}

// Results is a slice of Result with helper methods.
type Results []Result

// IDs returns just the bias IDs from the results.
func (r Results) IDs() []string {
	ids := make([]string, len(r))
	for i, result := range r {
		ids[i] = result.Bias.ID
	}
	return ids
}

// Biases returns just the biases from the results.
func (r Results) Biases() []content.Bias {
	biases := make([]content.Bias, len(r))
	for i, result := range r {
		biases[i] = result.Bias
	}
	return biases
}

// FilterByCategory returns results in the given category.
func (r Results) FilterByCategory(cat content.Category) Results {
	var filtered Results
	for _, result := range r {
		if result.Bias.Category == cat {
			filtered = append(filtered, result)
		}
	}
	return filtered
}

// FilterByMinScore returns results with score >= minScore.
func (r Results) FilterByMinScore(minScore float64) Results {
	var filtered Results
	for _, result := range r {
		if result.Score >= minScore {
			filtered = append(filtered, result)
		}
	}
	return filtered
}

// Limit returns at most n results. n <= 0 returns r unchanged.
func (r Results) Limit(n int) Results {
	if n <= 0 || n >= len(r) {
		return r
	}
	return r[:n]
}
