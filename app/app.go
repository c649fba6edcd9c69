package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/jonwraymond/biasdaily/content"
	"github.com/jonwraymond/biasdaily/daily"
	"github.com/jonwraymond/biasdaily/progress"
	"github.com/jonwraymond/biasdaily/search"
	"github.com/jonwraymond/biasdaily/validation"
)

// Mode selects the search strategy.
type Mode string

const (
	// ModeRanker uses the weighted substring ranker.
	ModeRanker Mode = "ranker"

	// ModeFullText uses the bleve index.
	ModeFullText Mode = "fulltext"

	// ModeHybrid blends the ranker and the bleve index.
	ModeHybrid Mode = "hybrid"
)

// Error values for app operations.
var (
	ErrNotFound    = content.ErrNotFound
	ErrInvalidMode = errors.New("invalid search mode")
)

// Options configures an App.
type Options struct {
	// Catalog holds the biases. If nil, one is built from the embedded
	// core dataset.
	Catalog *content.Catalog

	// Store persists learner state. If nil, an in-memory store is used.
	Store *progress.Store

	// Searcher overrides the strategy chosen by Mode.
	Searcher search.Searcher

	// Mode picks the search strategy when Searcher is nil.
	// Default: ModeRanker.
	Mode Mode

	// Weights tunes every strategy. Zero fields use the defaults.
	Weights search.Weights

	// Alpha is the ranker's share of the score in ModeHybrid.
	// Default: search.DefaultAlpha.
	Alpha float64

	// Location decides the calendar day. If nil, the timezone in the
	// learner's settings is used.
	Location *time.Location

	// Now supplies the current time. Default: time.Now.
	Now func() time.Time

	// Logger receives operational logs. Default: zap.NewNop().
	Logger *zap.Logger

	// DefaultLimit caps Search when the caller passes a zero limit.
	// Zero means no cap.
	DefaultLimit int
}

// App is the facade over catalog, search, daily selection and progress.
type App struct {
	catalog  *content.Catalog
	store    *progress.Store
	searcher search.Searcher
	ranker   *search.Ranker
	mode     Mode
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
	limit    int

	unsubscribe func()
}

// New creates an App and loads the learner's saved biases into the
// catalog.
func New(ctx context.Context, opts Options) (*App, error) {
	a := &App{
		catalog: opts.Catalog,
		store:   opts.Store,
		loc:     opts.Location,
		now:     opts.Now,
		logger:  opts.Logger,
		limit:   opts.DefaultLimit,
		mode:    opts.Mode,
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	if a.mode == "" {
		a.mode = ModeRanker
	}

	if a.catalog == nil {
		core, err := content.LoadCore()
		if err != nil {
			return nil, err
		}
		if a.catalog, err = content.NewCatalog(core); err != nil {
			return nil, err
		}
	}
	if a.store == nil {
		a.store = progress.NewStore(progress.Options{Now: a.now})
	}

	ranker, err := search.NewRanker(search.Options{Weights: opts.Weights})
	if err != nil {
		return nil, err
	}
	a.ranker = ranker

	switch {
	case opts.Searcher != nil:
		a.searcher = opts.Searcher
	case a.mode == ModeRanker:
		a.searcher = ranker
	case a.mode == ModeFullText:
		fts, err := search.NewFullTextSearcher(search.FullTextConfig{Weights: opts.Weights})
		if err != nil {
			return nil, err
		}
		a.searcher = fts
	case a.mode == ModeHybrid:
		hs, err := search.NewHybridSearcher(search.HybridOptions{Weights: opts.Weights, Alpha: opts.Alpha})
		if err != nil {
			return nil, err
		}
		a.searcher = hs
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, a.mode)
	}

	if err := a.loadUserBiases(ctx); err != nil {
		a.closeSearcher()
		return nil, err
	}

	a.unsubscribe = a.catalog.OnChange(func(ev content.ChangeEvent) {
		a.logger.Debug("catalog changed",
			zap.String("type", string(ev.Type)),
			zap.String("bias_id", ev.BiasID),
			zap.Uint64("version", ev.Version),
		)
	})

	a.logger.Info("app ready",
		zap.Int("biases", a.catalog.Len()),
		zap.String("search_mode", string(a.mode)),
	)
	return a, nil
}

func (a *App) loadUserBiases(ctx context.Context) error {
	saved, err := a.store.UserBiases(ctx)
	if err != nil {
		return err
	}
	for _, b := range saved {
		if err := a.catalog.PutUser(b); err != nil {
			// A corrupt record must not block startup.
			a.logger.Warn("skipping saved bias", zap.String("bias_id", b.ID), zap.Error(err))
		}
	}
	return nil
}

// Close releases the search index and the store.
func (a *App) Close() error {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	err := a.closeSearcher()
	if serr := a.store.Close(); serr != nil && err == nil {
		err = serr
	}
	return err
}

func (a *App) closeSearcher() error {
	if c, ok := a.searcher.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Mode returns the active search strategy.
func (a *App) Mode() Mode { return a.mode }

// Catalog returns the underlying catalog.
func (a *App) Catalog() *content.Catalog { return a.catalog }

// Store returns the underlying progress store.
func (a *App) Store() *progress.Store { return a.store }

// ============================================================================
// Search
// ============================================================================

// Search sanitizes query and ranks every bias in the catalog. A zero limit
// uses the configured default and a negative limit returns everything.
func (a *App) Search(ctx context.Context, query string, limit int) (search.Results, error) {
	if limit == 0 {
		limit = a.limit
	}
	q := validation.SearchQuery(query)
	results, err := a.searcher.Rank(ctx, q, limit, a.catalog.All())
	if err != nil {
		return nil, err
	}
	a.logger.Debug("search",
		zap.String("query", q),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// Highlight wraps occurrences of the sanitized query in text.
func (a *App) Highlight(text, query string) string {
	return a.ranker.Highlight(text, validation.SearchQuery(query))
}

// ============================================================================
// Biases
// ============================================================================

// Bias returns the bias with id.
func (a *App) Bias(id string) (content.Bias, error) {
	return a.catalog.Get(id)
}

// CategorySummary describes one category and how many biases it holds.
type CategorySummary struct {
	Category content.Category `json:"category"`
	Label    string           `json:"label"`
	Count    int              `json:"count"`
}

// Categories lists every category in display order with its bias count.
func (a *App) Categories() []CategorySummary {
	out := make([]CategorySummary, 0, len(content.Categories()))
	for _, c := range content.Categories() {
		out = append(out, CategorySummary{
			Category: c,
			Label:    c.Label(),
			Count:    len(a.catalog.ByCategory(c)),
		})
	}
	return out
}

// AddUserBias validates in, saves it and adds it to the catalog.
func (a *App) AddUserBias(ctx context.Context, in validation.UserBiasInput) (content.Bias, error) {
	b, err := validation.NewUserBias(in, a.now())
	if err != nil {
		return content.Bias{}, err
	}
	if err := a.store.PutUserBias(ctx, b); err != nil {
		return content.Bias{}, err
	}
	if err := a.catalog.PutUser(b); err != nil {
		return content.Bias{}, err
	}
	a.logger.Info("user bias added", zap.String("bias_id", b.ID))
	return b, nil
}

// UpdateUserBias replaces the content of a user bias.
func (a *App) UpdateUserBias(ctx context.Context, id string, in validation.UserBiasInput) (content.Bias, error) {
	existing, err := a.catalog.Get(id)
	if err != nil {
		return content.Bias{}, err
	}
	b, err := validation.UpdateUserBias(existing, in, a.now())
	if err != nil {
		return content.Bias{}, err
	}
	if err := a.store.PutUserBias(ctx, b); err != nil {
		return content.Bias{}, err
	}
	if err := a.catalog.PutUser(b); err != nil {
		return content.Bias{}, err
	}
	return b, nil
}

// DeleteUserBias removes a user bias with its favorite and progress.
// Core biases cannot be deleted.
func (a *App) DeleteUserBias(ctx context.Context, id string) error {
	b, err := a.catalog.Get(id)
	if err != nil {
		return err
	}
	if !b.IsUser() {
		return fmt.Errorf("%w: %s", content.ErrReadOnly, id)
	}
	if err := a.store.DeleteUserBias(ctx, id); err != nil {
		return err
	}
	if err := a.catalog.DeleteUser(id); err != nil {
		return err
	}
	a.logger.Info("user bias deleted", zap.String("bias_id", id))
	return nil
}

// ============================================================================
// Daily
// ============================================================================

// Daily is the bias chosen for a calendar date.
type Daily struct {
	Date   string       `json:"date"`
	Bias   content.Bias `json:"bias"`
	Cached bool         `json:"cached"`
}

// Today returns the bias of the day. The first call on a date chooses a
// bias from the learner's history and caches it; later calls on the same
// date return the cached choice while that bias still exists.
func (a *App) Today(ctx context.Context) (Daily, error) {
	settings, err := a.store.Settings(ctx)
	if err != nil {
		return Daily{}, err
	}
	date := daily.Today(a.now(), a.location(settings))

	if id, ok, err := a.store.CachedDaily(ctx, date); err != nil {
		return Daily{}, err
	} else if ok {
		if b, err := a.catalog.Get(id); err == nil {
			return Daily{Date: date, Bias: b, Cached: true}, nil
		}
		a.logger.Debug("cached daily bias missing", zap.String("date", date), zap.String("bias_id", id))
	}

	pool := a.catalog.Core()
	if settings.MixUserBiasesInDaily {
		pool = a.catalog.All()
	}
	history, err := a.store.AllProgress(ctx)
	if err != nil {
		return Daily{}, err
	}

	b, err := daily.Personalized(pool, history, date, a.now())
	if err != nil {
		return Daily{}, err
	}
	if err := a.store.SetCachedDaily(ctx, date, b.ID); err != nil {
		// Selection is deterministic, so a failed write only costs a
		// recomputation.
		a.logger.Warn("caching daily bias", zap.String("date", date), zap.Error(err))
	}
	return Daily{Date: date, Bias: b}, nil
}

// Recommend suggests an unviewed bias from the least explored category.
// It reports false when every bias has been viewed.
func (a *App) Recommend(ctx context.Context) (content.Bias, bool, error) {
	history, err := a.store.AllProgress(ctx)
	if err != nil {
		return content.Bias{}, false, err
	}
	b, ok := daily.BalancedRecommendation(a.catalog.All(), history)
	return b, ok, nil
}

// CategoryDistribution counts viewed biases per category.
func (a *App) CategoryDistribution(ctx context.Context) (map[content.Category]int, error) {
	history, err := a.store.AllProgress(ctx)
	if err != nil {
		return nil, err
	}
	return daily.CategoryDistribution(a.catalog.All(), history), nil
}

func (a *App) location(settings progress.Settings) *time.Location {
	if a.loc != nil {
		return a.loc
	}
	return settings.Location()
}

// ============================================================================
// Progress
// ============================================================================

// View records that the learner read id and counts today toward the
// streak.
func (a *App) View(ctx context.Context, id string) (progress.BiasProgress, error) {
	if _, err := a.catalog.Get(id); err != nil {
		return progress.BiasProgress{}, err
	}
	p, err := a.store.MarkViewed(ctx, id)
	if err != nil {
		return progress.BiasProgress{}, err
	}
	settings, err := a.store.Settings(ctx)
	if err != nil {
		return p, err
	}
	if _, err := a.store.UpdateStreak(ctx, daily.Today(a.now(), a.location(settings))); err != nil {
		return p, err
	}
	return p, nil
}

// ToggleFavorite flips the favorite state of id and returns the new state.
func (a *App) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	if _, err := a.catalog.Get(id); err != nil {
		return false, err
	}
	return a.store.ToggleFavorite(ctx, id)
}

// Favorites returns favorite biases in the order they were added.
// Favorites whose bias no longer exists are skipped.
func (a *App) Favorites(ctx context.Context) ([]content.Bias, error) {
	favs, err := a.store.Favorites(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]content.Bias, 0, len(favs))
	for _, f := range favs {
		if b, err := a.catalog.Get(f.BiasID); err == nil {
			out = append(out, b)
		}
	}
	return out, nil
}

// ToggleMastered flips the mastered flag of id and returns the new state.
func (a *App) ToggleMastered(ctx context.Context, id string) (bool, error) {
	if _, err := a.catalog.Get(id); err != nil {
		return false, err
	}
	return a.store.ToggleMastered(ctx, id)
}

// Stats summarizes the learner's progress.
func (a *App) Stats(ctx context.Context) (progress.Stats, error) {
	return a.store.Stats(ctx)
}

// Settings returns the learner's settings.
func (a *App) Settings(ctx context.Context) (progress.Settings, error) {
	return a.store.Settings(ctx)
}

// SaveSettings replaces the learner's settings.
func (a *App) SaveSettings(ctx context.Context, s progress.Settings) error {
	return a.store.SaveSettings(ctx, s)
}

// Export snapshots the learner's state.
func (a *App) Export(ctx context.Context) (progress.Export, error) {
	return a.store.ExportAll(ctx)
}

// Import merges exp into the store and the catalog.
func (a *App) Import(ctx context.Context, exp progress.Export) error {
	if err := a.store.ImportAll(ctx, exp); err != nil {
		return err
	}
	return a.loadUserBiases(ctx)
}
