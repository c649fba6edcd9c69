package search

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/jonwraymond/biasdaily/content"
)

// Field names reported in Result.MatchedFields.
const (
	FieldTitle    = "title"
	FieldSummary  = "summary"
	FieldWhy      = "why"
	FieldCounter  = "counter"
	FieldCategory = "category"
)

// Default field weights. Only their relative order is meaningful.
const (
	DefaultTitleWeight    = 3.0
	DefaultSummaryWeight  = 2.0
	DefaultWhyWeight      = 1.0
	DefaultCounterWeight  = 1.0
	DefaultCategoryWeight = 0.5
)

// ErrInvalidWeights is returned when a weight is negative.
var ErrInvalidWeights = errors.New("search weights must not be negative")

// Weights sets the contribution of each field to a record's score.
// Zero fields fall back to the defaults.
type Weights struct {
	Title    float64
	Summary  float64
	Why      float64
	Counter  float64
	Category float64
}

// DefaultWeights returns title > summary > why = counter > category.
func DefaultWeights() Weights {
	return Weights{
		Title:    DefaultTitleWeight,
		Summary:  DefaultSummaryWeight,
		Why:      DefaultWhyWeight,
		Counter:  DefaultCounterWeight,
		Category: DefaultCategoryWeight,
	}
}

// Validate rejects negative weights.
func (w Weights) Validate() error {
	for _, v := range []float64{w.Title, w.Summary, w.Why, w.Counter, w.Category} {
		if v < 0 {
			return ErrInvalidWeights
		}
	}
	return nil
}

func (w Weights) withDefaults() Weights {
	d := DefaultWeights()
	if w.Title == 0 {
		w.Title = d.Title
	}
	if w.Summary == 0 {
		w.Summary = d.Summary
	}
	if w.Why == 0 {
		w.Why = d.Why
	}
	if w.Counter == 0 {
		w.Counter = d.Counter
	}
	if w.Category == 0 {
		w.Category = d.Category
	}
	return w
}

// Marker is the delimiter pair wrapped around highlighted matches.
type Marker struct {
	Open  string
	Close string
}

// DefaultMarker wraps matches in an HTML mark element.
func DefaultMarker() Marker {
	return Marker{Open: "<mark>", Close: "</mark>"}
}

// Options configures a Ranker.
type Options struct {
	// Weights overrides the per-field weights. Zero fields use defaults.
	Weights Weights

	// Marker overrides the highlight delimiters. An empty Marker uses
	// DefaultMarker.
	Marker Marker
}

// Searcher ranks biases against a query. Implementations must return
// results ordered by descending score with ties in input order. IDs
// identify records: when several share an ID only the first is ranked.
type Searcher interface {
	Rank(ctx context.Context, query string, limit int, biases []content.Bias) (Results, error)
}

// Ranker scores biases by case-insensitive substring matches across
// their fields. It holds no per-call state and is safe for concurrent use.
type Ranker struct {
	weights Weights
	marker  Marker
}

// NewRanker creates a ranker with the given options.
func NewRanker(opts Options) (*Ranker, error) {
	if err := opts.Weights.Validate(); err != nil {
		return nil, err
	}
	marker := opts.Marker
	if marker.Open == "" && marker.Close == "" {
		marker = DefaultMarker()
	}
	return &Ranker{
		weights: opts.Weights.withDefaults(),
		marker:  marker,
	}, nil
}

var defaultRanker = &Ranker{weights: DefaultWeights(), marker: DefaultMarker()}

// Search ranks biases with the default weights.
func Search(biases []content.Bias, query string) Results {
	return defaultRanker.Search(biases, query)
}

// Highlight wraps matches of query in text with the default marker.
func Highlight(text, query string) string {
	return defaultRanker.Highlight(text, query)
}

// Weights returns the effective weights.
func (r *Ranker) Weights() Weights {
	return r.weights
}

// Search returns the biases matching query, highest score first.
//
// An empty or whitespace-only query matches everything: each bias is
// returned with score 1 in input order. Otherwise a bias is included only
// when at least one field contains the query, and its score is the sum of
// the weights of every matching field.
func (r *Ranker) Search(biases []content.Bias, query string) Results {
	biases = uniqueByID(biases)
	q := normalizeQuery(query)
	if q == "" {
		results := make(Results, len(biases))
		for i, b := range biases {
			results[i] = Result{Bias: b, Score: 1, MatchedFields: []string{}}
		}
		return results
	}

	results := make(Results, 0, len(biases))
	for _, b := range biases {
		if res, ok := r.score(b, q); ok {
			results = append(results, res)
		}
	}

	slices.SortStableFunc(results, func(a, b Result) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	return results
}

// Rank implements Searcher. A limit <= 0 returns every match.
func (r *Ranker) Rank(ctx context.Context, query string, limit int, biases []content.Bias) (Results, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.Search(biases, query).Limit(limit), nil
}

// uniqueByID drops every record whose ID already appeared earlier.
// The input is returned as is when all IDs are distinct.
func uniqueByID(biases []content.Bias) []content.Bias {
	seen := make(map[string]struct{}, len(biases))
	for i, b := range biases {
		if _, dup := seen[b.ID]; !dup {
			seen[b.ID] = struct{}{}
			continue
		}
		out := slices.Clone(biases[:i])
		for _, b := range biases[i+1:] {
			if _, dup := seen[b.ID]; !dup {
				seen[b.ID] = struct{}{}
				out = append(out, b)
			}
		}
		return out
	}
	return biases
}

func (r *Ranker) score(b content.Bias, q string) (Result, bool) {
	fields := []struct {
		name   string
		text   string
		weight float64
	}{
		{FieldTitle, b.Title, r.weights.Title},
		{FieldSummary, b.Summary, r.weights.Summary},
		{FieldWhy, b.Why, r.weights.Why},
		{FieldCounter, b.Counter, r.weights.Counter},
		{FieldCategory, b.Category.Label(), r.weights.Category},
	}

	var total float64
	var matched []string
	for _, f := range fields {
		if f.weight <= 0 || f.text == "" {
			continue
		}
		if containsFold(normalizeField(f.text), q) {
			total += f.weight
			matched = append(matched, f.name)
		}
	}
	if total <= 0 {
		return Result{}, false
	}
	return Result{Bias: b, Score: total, MatchedFields: matched}, true
}

// Highlight wraps every non-overlapping case-insensitive occurrence of
// query in text with the ranker's marker. Matched text keeps its original
// casing and everything else is returned byte for byte. The query is
// literal text, never a pattern.
func (r *Ranker) Highlight(text, query string) string {
	q := normalizeQuery(query)
	if q == "" || text == "" {
		return text
	}

	// Match on the NFC form, the same one Search uses, and copy whole
	// normalization segments of the original text.
	idx := newNFCIndex(text)
	var b strings.Builder
	found := false
	last, pos := 0, 0
	for pos < len(idx.text) {
		start, end := indexFold(idx.text[pos:], q)
		if start < 0 {
			break
		}
		found = true
		from, to, next := idx.span(pos+start, pos+end)
		from = max(from, last)
		b.WriteString(text[last:from])
		b.WriteString(r.marker.Open)
		b.WriteString(text[from:to])
		b.WriteString(r.marker.Close)
		last, pos = to, next
	}
	if !found {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}
