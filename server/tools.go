package server

import (
	"context"
	"fmt"

	"github.com/jonwraymond/biasdaily/content"
	"github.com/jonwraymond/biasdaily/progress"
	"github.com/jonwraymond/biasdaily/search"
)

// Built-in tool names.
const (
	ToolSearchBiases   = "search_biases"
	ToolHighlight      = "highlight"
	ToolDailyBias      = "daily_bias"
	ToolGetBias        = "get_bias"
	ToolListCategories = "list_categories"
	ToolRecommendBias  = "recommend_bias"
	ToolViewBias       = "view_bias"
	ToolToggleFavorite = "toggle_favorite"
	ToolProgressStats  = "progress_stats"
)

// SearchHit is one entry in a search_biases result.
type SearchHit struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Category      content.Category `json:"category"`
	Summary       string           `json:"summary"`
	Score         float64          `json:"score"`
	MatchedFields []string         `json:"matchedFields"`
	Highlighted   string           `json:"highlightedTitle"`
}

// BiasDetail is the get_bias result.
type BiasDetail struct {
	Bias     content.Bias           `json:"bias"`
	Label    string                 `json:"categoryLabel"`
	Favorite bool                   `json:"favorite"`
	Progress *progress.BiasProgress `json:"progress,omitempty"`
}

func (s *Server) registerBuiltins() error {
	ns := WithNamespace(s.config.Namespace)
	str := func(desc string) map[string]any {
		return map[string]any{"type": "string", "description": desc}
	}
	idSchema := objectSchema(map[string]any{"id": str("Bias ID")}, "id")

	builtins := []struct {
		name, desc string
		schema     map[string]any
		handler    ToolHandler
		tags       []string
	}{
		{
			ToolSearchBiases,
			"Search cognitive biases by title, summary, rationale, counter-strategy and category. An empty query lists every bias.",
			objectSchema(map[string]any{
				"query":    str("Search text, matched case-insensitively as a substring"),
				"limit":    map[string]any{"type": "integer", "minimum": 0, "description": "Maximum results, 0 for all"},
				"category": str("Restrict results to one category ID"),
			}),
			s.searchBiases,
			[]string{"search"},
		},
		{
			ToolHighlight,
			"Wrap every case-insensitive occurrence of query in text with <mark> tags.",
			objectSchema(map[string]any{"text": str("Text to mark up"), "query": str("Text to find")}, "text"),
			s.highlight,
			[]string{"search"},
		},
		{
			ToolDailyBias,
			"Return the bias of the day for the learner.",
			objectSchema(map[string]any{}),
			s.dailyBias,
			[]string{"daily"},
		},
		{
			ToolGetBias,
			"Return one bias with its favorite flag and viewing progress.",
			idSchema,
			s.getBias,
			[]string{"catalog"},
		},
		{
			ToolListCategories,
			"List bias categories with labels and counts.",
			objectSchema(map[string]any{}),
			s.listCategories,
			[]string{"catalog"},
		},
		{
			ToolRecommendBias,
			"Suggest an unviewed bias from the least explored category.",
			objectSchema(map[string]any{}),
			s.recommendBias,
			[]string{"daily"},
		},
		{
			ToolViewBias,
			"Record that the learner read a bias and update the streak.",
			idSchema,
			s.viewBias,
			[]string{"progress"},
		},
		{
			ToolToggleFavorite,
			"Star or unstar a bias.",
			idSchema,
			s.toggleFavorite,
			[]string{"progress"},
		},
		{
			ToolProgressStats,
			"Summarize biases read, mastered and the visit streak.",
			objectSchema(map[string]any{}),
			s.progressStats,
			[]string{"progress"},
		},
	}

	for _, b := range builtins {
		if err := s.RegisterFunc(b.name, b.desc, b.schema, b.handler, ns, WithTags(b.tags...)); err != nil {
			return fmt.Errorf("register %s: %w", b.name, err)
		}
	}
	return nil
}

func (s *Server) searchBiases(ctx context.Context, args map[string]any) (any, error) {
	query, err := stringArg(args, "query", false)
	if err != nil {
		return nil, err
	}
	limit, err := intArg(args, "limit")
	if err != nil {
		return nil, err
	}
	category, err := stringArg(args, "category", false)
	if err != nil {
		return nil, err
	}

	var cat content.Category
	if category != "" {
		if cat, err = content.ParseCategory(category); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
	}

	// Filter before limiting so a category search still fills the page.
	results, err := s.app.Search(ctx, query, -1)
	if err != nil {
		return nil, err
	}
	if cat != "" {
		results = results.FilterByCategory(cat)
	}
	if limit > 0 {
		results = results.Limit(limit)
	}
	return map[string]any{"results": s.toHits(results, query)}, nil
}

func (s *Server) toHits(results search.Results, query string) []SearchHit {
	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, SearchHit{
			ID:            r.Bias.ID,
			Title:         r.Bias.Title,
			Category:      r.Bias.Category,
			Summary:       r.Bias.Summary,
			Score:         r.Score,
			MatchedFields: r.MatchedFields,
			Highlighted:   s.app.Highlight(r.Bias.Title, query),
		})
	}
	return hits
}

func (s *Server) highlight(_ context.Context, args map[string]any) (any, error) {
	text, err := stringArg(args, "text", true)
	if err != nil {
		return nil, err
	}
	query, err := stringArg(args, "query", false)
	if err != nil {
		return nil, err
	}
	return map[string]any{"text": s.app.Highlight(text, query)}, nil
}

func (s *Server) dailyBias(ctx context.Context, _ map[string]any) (any, error) {
	return s.app.Today(ctx)
}

func (s *Server) getBias(ctx context.Context, args map[string]any) (any, error) {
	id, err := stringArg(args, "id", true)
	if err != nil {
		return nil, err
	}
	b, err := s.app.Bias(id)
	if err != nil {
		return nil, err
	}
	fav, err := s.app.Store().IsFavorite(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := BiasDetail{Bias: b, Label: b.Category.Label(), Favorite: fav}
	if p, ok, err := s.app.Store().Progress(ctx, id); err != nil {
		return nil, err
	} else if ok {
		detail.Progress = &p
	}
	return detail, nil
}

func (s *Server) listCategories(_ context.Context, _ map[string]any) (any, error) {
	return map[string]any{"categories": s.app.Categories()}, nil
}

func (s *Server) recommendBias(ctx context.Context, _ map[string]any) (any, error) {
	b, ok, err := s.app.Recommend(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]any{"found": false}, nil
	}
	return map[string]any{"found": true, "bias": b}, nil
}

func (s *Server) viewBias(ctx context.Context, args map[string]any) (any, error) {
	id, err := stringArg(args, "id", true)
	if err != nil {
		return nil, err
	}
	return s.app.View(ctx, id)
}

func (s *Server) toggleFavorite(ctx context.Context, args map[string]any) (any, error) {
	id, err := stringArg(args, "id", true)
	if err != nil {
		return nil, err
	}
	fav, err := s.app.ToggleFavorite(ctx, id)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": id, "favorite": fav}, nil
}

func (s *Server) progressStats(ctx context.Context, _ map[string]any) (any, error) {
	return s.app.Stats(ctx)
}
