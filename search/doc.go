// Package search ranks cognitive-bias records against free-text queries.
//
// It exists to:
//   - Give list views a deterministic, dependency-light ranking
//   - Highlight matched text for display
//   - Offer a tokenized full-text alternative when stemming is wanted
//
// # Usage
//
// The package-level [Search] and [Highlight] use default weights and the
// <mark> marker:
//
//	results := search.Search(biases, "confirmation")
//	for _, r := range results {
//	    fmt.Println(r.Bias.Title, r.Score, r.MatchedFields)
//	}
//	html := search.Highlight("Confirmation Bias", "confirm")
//	// <mark>Confirm</mark>ation Bias
//
// # Scoring
//
// A bias scores the sum of the weights of every field that contains the
// query as a case-insensitive substring:
//
//	title (3) > summary (2) > why, counter (1) > category label (0.5)
//
// [Weights] overrides these; only their relative order is meaningful.
// Biases scoring zero are dropped. Results are sorted by score
// descending with ties kept in input order.
//
// Empty or whitespace-only queries return every bias with score 1 in input
// order, so an untouched search box shows the whole catalog.
//
// Queries are literal text. Characters such as "(", "*" or "\" carry no
// pattern meaning.
//
// # Full-Text Search
//
// [FullTextSearcher] implements the same [Searcher] interface on top of an
// in-memory bleve index with BM25 scoring and English stemming:
//
//	fts, err := search.NewFullTextSearcher(search.FullTextConfig{})
//	if err != nil {
//	    return err
//	}
//	defer fts.Close()
//	results, err := fts.Rank(ctx, "anchor", 10, biases)
//
// # Thread Safety
//
// [Ranker] is stateless and safe for concurrent use. FullTextSearcher uses
// an internal RWMutex and rebuilds its cached index only when the
// fingerprint of the bias slice changes.
package search
