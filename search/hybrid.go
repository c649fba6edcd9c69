package search

import (
	"context"
	"errors"
	"slices"

	"github.com/jonwraymond/biasdaily/content"
)

// DefaultAlpha weighs the substring ranker and the full-text index equally.
const DefaultAlpha = 0.5

// ErrInvalidHybridConfig is returned when Alpha is outside [0, 1].
var ErrInvalidHybridConfig = errors.New("hybrid alpha must be between 0 and 1")

// HybridOptions configures a HybridSearcher.
type HybridOptions struct {
	// Weights are shared by both strategies. Zero fields use defaults.
	Weights Weights

	// Alpha is the substring ranker's share of the combined score. The
	// full-text share is 1-Alpha.
	// Default: DefaultAlpha (a zero value uses the default).
	Alpha float64
}

// HybridSearcher blends Ranker and FullTextSearcher scores. Each
// strategy's scores are scaled to [0, 1] by its best hit before being
// combined, so the two scales never dominate each other.
type HybridSearcher struct {
	ranker   *Ranker
	fulltext *FullTextSearcher
	alpha    float64
}

// NewHybridSearcher creates a hybrid searcher.
func NewHybridSearcher(opts HybridOptions) (*HybridSearcher, error) {
	alpha := opts.Alpha
	if alpha == 0 {
		alpha = DefaultAlpha
	}
	if alpha < 0 || alpha > 1 {
		return nil, ErrInvalidHybridConfig
	}

	ranker, err := NewRanker(Options{Weights: opts.Weights})
	if err != nil {
		return nil, err
	}
	fts, err := NewFullTextSearcher(FullTextConfig{Weights: opts.Weights})
	if err != nil {
		return nil, err
	}
	return &HybridSearcher{ranker: ranker, fulltext: fts, alpha: alpha}, nil
}

// Alpha returns the substring ranker's share of the score.
func (h *HybridSearcher) Alpha() float64 { return h.alpha }

// Rank implements Searcher. A bias matched by either strategy is
// returned; MatchedFields is the union of both.
func (h *HybridSearcher) Rank(ctx context.Context, query string, limit int, biases []content.Bias) (Results, error) {
	lexical, err := h.ranker.Rank(ctx, query, 0, biases)
	if err != nil {
		return nil, err
	}
	stemmed, err := h.fulltext.Rank(ctx, query, 0, biases)
	if err != nil {
		return nil, err
	}

	position := make(map[string]int, len(biases))
	for i, b := range biases {
		if _, ok := position[b.ID]; !ok {
			position[b.ID] = i
		}
	}

	type scored struct {
		result Result
		pos    int
	}
	merged := make(map[string]*scored, len(lexical)+len(stemmed))
	add := func(results Results, share float64) {
		best := maxScore(results)
		if best == 0 {
			return
		}
		for _, r := range results {
			s, ok := merged[r.Bias.ID]
			if !ok {
				s = &scored{result: Result{Bias: r.Bias, MatchedFields: []string{}}, pos: position[r.Bias.ID]}
				merged[r.Bias.ID] = s
			}
			s.result.Score += share * r.Score / best
			s.result.MatchedFields = unionFields(s.result.MatchedFields, r.MatchedFields)
		}
	}
	add(lexical, h.alpha)
	add(stemmed, 1-h.alpha)

	all := make([]*scored, 0, len(merged))
	for _, s := range merged {
		if s.result.Score > 0 {
			all = append(all, s)
		}
	}
	slices.SortFunc(all, func(a, b *scored) int {
		switch {
		case a.result.Score > b.result.Score:
			return -1
		case a.result.Score < b.result.Score:
			return 1
		}
		return a.pos - b.pos
	})

	results := make(Results, len(all))
	for i, s := range all {
		results[i] = s.result
	}
	return results.Limit(limit), nil
}

// Close releases the full-text index.
func (h *HybridSearcher) Close() error {
	return h.fulltext.Close()
}

func maxScore(results Results) float64 {
	var best float64
	for _, r := range results {
		best = max(best, r.Score)
	}
	return best
}

// unionFields merges two field lists in canonical field order.
func unionFields(a, b []string) []string {
	out := make([]string, 0, len(fieldOrder))
	for _, f := range fieldOrder {
		if slices.Contains(a, f) || slices.Contains(b, f) {
			out = append(out, f)
		}
	}
	return out
}
