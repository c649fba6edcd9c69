package search

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	blevesearch "github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/jonwraymond/biasdaily/content"
)

// FullTextConfig configures a FullTextSearcher.
type FullTextConfig struct {
	// Weights become per-field query boosts. Zero fields use defaults.
	Weights Weights

	// Analyzer names the bleve analyzer for all fields.
	// Default: the English analyzer (stemming, stop words).
	Analyzer string
}

// FullTextSearcher ranks biases with tokenized BM25 scoring over an
// in-memory bleve index. Unlike Ranker it matches stemmed terms, so
// "anchor" finds "Anchoring Bias".
//
// The index is cached and rebuilt only when the fingerprint of the bias
// slice changes. FullTextSearcher is safe for concurrent use.
type FullTextSearcher struct {
	weights  Weights
	analyzer string

	mu          sync.RWMutex
	index       bleve.Index
	fingerprint string
	positions   map[string]int
}

// NewFullTextSearcher creates a searcher with the given config.
func NewFullTextSearcher(cfg FullTextConfig) (*FullTextSearcher, error) {
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	analyzer := cfg.Analyzer
	if analyzer == "" {
		analyzer = en.AnalyzerName
	}
	return &FullTextSearcher{
		weights:  cfg.Weights.withDefaults(),
		analyzer: analyzer,
	}, nil
}

// Rank implements Searcher. A limit <= 0 returns every match.
func (s *FullTextSearcher) Rank(ctx context.Context, queryText string, limit int, biases []content.Bias) (Results, error) {
	if len(biases) == 0 {
		return Results{}, nil
	}

	q := strings.TrimSpace(strings.ToValidUTF8(queryText, ""))
	if q == "" {
		unique := uniqueByID(biases)
		results := make(Results, len(unique))
		for i, b := range unique {
			results[i] = Result{Bias: b, Score: 1, MatchedFields: []string{}}
		}
		return results.Limit(limit), nil
	}

	size := len(biases)
	if limit > 0 && limit < size {
		size = limit
	}

	req := bleve.NewSearchRequestOptions(s.buildQuery(q), size, 0, false)
	req.IncludeLocations = true

	res, positions, err := s.searchIndex(ctx, req, biases)
	if err != nil {
		return nil, err
	}

	results := make(Results, 0, len(res.Hits))
	order := make(map[string]int, len(res.Hits))
	for _, hit := range res.Hits {
		pos, ok := positions[hit.ID]
		if !ok {
			continue
		}
		order[hit.ID] = pos
		results = append(results, Result{
			Bias:          biases[pos],
			Score:         hit.Score,
			MatchedFields: matchedFieldsFromLocations(hit.Locations),
		})
	}

	slices.SortStableFunc(results, func(a, b Result) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return order[a.Bias.ID] - order[b.Bias.ID]
	})
	return results, nil
}

// Close releases the cached index.
func (s *FullTextSearcher) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	s.fingerprint = ""
	s.positions = nil
	return err
}

// searchIndex runs req against an index built from biases, rebuilding the
// cached index first when the fingerprint no longer matches.
func (s *FullTextSearcher) searchIndex(ctx context.Context, req *bleve.SearchRequest, biases []content.Bias) (*bleve.SearchResult, map[string]int, error) {
	fp := computeFingerprint(biases)

	for {
		s.mu.RLock()
		if s.index != nil && s.fingerprint == fp {
			res, err := s.index.SearchInContext(ctx, req)
			positions := s.positions
			s.mu.RUnlock()
			if err != nil {
				return nil, nil, fmt.Errorf("full-text search: %w", err)
			}
			return res, positions, nil
		}
		s.mu.RUnlock()

		if err := s.rebuild(fp, biases); err != nil {
			return nil, nil, err
		}
	}
}

func (s *FullTextSearcher) rebuild(fp string, biases []content.Bias) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have rebuilt while we waited.
	if s.index != nil && s.fingerprint == fp {
		return nil
	}

	idx, positions, err := s.buildIndex(biases)
	if err != nil {
		return err
	}
	if s.index != nil {
		_ = s.index.Close()
	}
	s.index = idx
	s.positions = positions
	s.fingerprint = fp
	return nil
}

func (s *FullTextSearcher) buildIndex(biases []content.Bias) (bleve.Index, map[string]int, error) {
	m := bleve.NewIndexMapping()
	m.DefaultAnalyzer = s.analyzer

	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		return nil, nil, fmt.Errorf("create full-text index: %w", err)
	}

	positions := make(map[string]int, len(biases))
	batch := idx.NewBatch()
	for i, b := range biases {
		if _, dup := positions[b.ID]; dup {
			continue
		}
		positions[b.ID] = i
		doc := map[string]any{
			FieldTitle:    b.Title,
			FieldSummary:  b.Summary,
			FieldWhy:      b.Why,
			FieldCounter:  b.Counter,
			FieldCategory: b.Category.Label(),
		}
		if err := batch.Index(b.ID, doc); err != nil {
			_ = idx.Close()
			return nil, nil, fmt.Errorf("index bias %s: %w", b.ID, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return nil, nil, fmt.Errorf("index biases: %w", err)
	}
	return idx, positions, nil
}

func (s *FullTextSearcher) buildQuery(q string) query.Query {
	fields := []struct {
		name  string
		boost float64
	}{
		{FieldTitle, s.weights.Title},
		{FieldSummary, s.weights.Summary},
		{FieldWhy, s.weights.Why},
		{FieldCounter, s.weights.Counter},
		{FieldCategory, s.weights.Category},
	}

	disjuncts := make([]query.Query, 0, len(fields))
	for _, f := range fields {
		mq := bleve.NewMatchQuery(q)
		mq.SetField(f.name)
		mq.SetBoost(f.boost)
		disjuncts = append(disjuncts, mq)
	}
	return bleve.NewDisjunctionQuery(disjuncts...)
}

var fieldOrder = []string{FieldTitle, FieldSummary, FieldWhy, FieldCounter, FieldCategory}

func matchedFieldsFromLocations(locations blevesearch.FieldTermLocationMap) []string {
	matched := make([]string, 0, len(locations))
	for _, f := range fieldOrder {
		if _, ok := locations[f]; ok {
			matched = append(matched, f)
		}
	}
	return matched
}
