package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonwraymond/biasdaily/content"
	"github.com/jonwraymond/biasdaily/progress"
	"github.com/jonwraymond/biasdaily/validation"
)

var fixedNow = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

func newTestApp(t *testing.T, opts Options) *App {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	a, err := New(context.Background(), opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func userInput(title string) validation.UserBiasInput {
	return validation.UserBiasInput{
		Title:    title,
		Category: "misc",
		Summary:  "A bias the learner noticed in their own work.",
	}
}

// ============================================================================
// Construction
// ============================================================================

func TestNew_DefaultOptions(t *testing.T) {
	a := newTestApp(t, Options{})

	if a.Mode() != ModeRanker {
		t.Errorf("Mode() = %q, want %q", a.Mode(), ModeRanker)
	}
	if a.Catalog().Len() == 0 {
		t.Error("expected core biases to be loaded")
	}
	if a.Store() == nil {
		t.Error("expected store to be initialized")
	}
}

func TestNew_InvalidMode(t *testing.T) {
	_, err := New(context.Background(), Options{Mode: "fuzzy"})
	if !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("error = %v, want ErrInvalidMode", err)
	}
}

func TestNew_LoadsSavedUserBiases(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	kv, err := progress.OpenBolt(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	first := newTestApp(t, Options{Store: progress.NewStore(progress.Options{KV: kv})})
	b, err := first.AddUserBias(ctx, userInput("Demo Day Optimism"))
	if err != nil {
		t.Fatalf("AddUserBias() error = %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	kv, err = progress.OpenBolt(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	second := newTestApp(t, Options{Store: progress.NewStore(progress.Options{KV: kv})})
	got, err := second.Bias(b.ID)
	if err != nil {
		t.Fatalf("Bias() error = %v", err)
	}
	if got.Title != "Demo Day Optimism" || !got.IsUser() {
		t.Errorf("got %+v", got)
	}
}

// ============================================================================
// Search
// ============================================================================

func TestApp_Search(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, Options{})

	results, err := a.Search(ctx, "<b>anchor</b>", 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) == 0 || results[0].Bias.ID != "anchoring" {
		t.Fatalf("Search() top = %v, want anchoring", results.IDs())
	}
	if !results[0].Matched("title") {
		t.Errorf("MatchedFields = %v, want title", results[0].MatchedFields)
	}

	all, err := a.Search(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != a.Catalog().Len() {
		t.Errorf("empty query returned %d, want %d", len(all), a.Catalog().Len())
	}

	limited, _ := a.Search(ctx, "", 3)
	if len(limited) != 3 {
		t.Errorf("limit 3 returned %d", len(limited))
	}
}

func TestApp_SearchDefaultLimit(t *testing.T) {
	a := newTestApp(t, Options{DefaultLimit: 2})
	results, err := a.Search(context.Background(), "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}
}

func TestApp_SearchFullText(t *testing.T) {
	a := newTestApp(t, Options{Mode: ModeFullText})

	results, err := a.Search(context.Background(), "anchoring", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	found := false
	for _, id := range results.IDs() {
		if id == "anchoring" {
			found = true
		}
	}
	if !found {
		t.Errorf("fulltext results %v missing anchoring", results.IDs())
	}
}

func TestApp_SearchHybrid(t *testing.T) {
	a := newTestApp(t, Options{Mode: ModeHybrid, Alpha: 0.5})
	if a.Mode() != ModeHybrid {
		t.Fatalf("Mode() = %q", a.Mode())
	}

	results, err := a.Search(context.Background(), "anchor", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) == 0 || results[0].Bias.ID != "anchoring" {
		t.Fatalf("hybrid results = %v, want anchoring first", results.IDs())
	}
}

func TestApp_SearchIncludesUserBiases(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, Options{})

	if _, err := a.AddUserBias(ctx, userInput("Zebra Striping Illusion")); err != nil {
		t.Fatal(err)
	}
	results, _ := a.Search(ctx, "zebra", 0)
	if len(results) != 1 || !results[0].Bias.IsUser() {
		t.Errorf("results = %v", results.IDs())
	}
}

func TestApp_Highlight(t *testing.T) {
	a := newTestApp(t, Options{})
	got := a.Highlight("Halo Effect", "  halo ")
	if got != "<mark>Halo</mark> Effect" {
		t.Errorf("Highlight() = %q", got)
	}
}

// ============================================================================
// Daily
// ============================================================================

func TestApp_TodayIsCached(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, Options{})

	first, err := a.Today(ctx)
	if err != nil {
		t.Fatalf("Today() error = %v", err)
	}
	if first.Date != "2026-10-16" {
		t.Errorf("Date = %q", first.Date)
	}
	if first.Cached {
		t.Error("first call should not be cached")
	}

	// Viewing changes the history, but the day's choice is fixed.
	if _, err := a.View(ctx, first.Bias.ID); err != nil {
		t.Fatal(err)
	}
	second, err := a.Today(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached || second.Bias.ID != first.Bias.ID {
		t.Errorf("second = %+v, want cached %s", second, first.Bias.ID)
	}
}

func TestApp_TodayUsesLocation(t *testing.T) {
	late := time.Date(2026, 10, 16, 23, 0, 0, 0, time.UTC)
	a := newTestApp(t, Options{
		Now:      func() time.Time { return late },
		Location: time.FixedZone("JST", 9*3600),
	})
	d, err := a.Today(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if d.Date != "2026-10-17" {
		t.Errorf("Date = %q, want 2026-10-17", d.Date)
	}
}

func TestApp_TodayCoreOnly(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, Options{})

	for i := range 20 {
		if _, err := a.AddUserBias(ctx, userInput("User Bias "+string(rune('A'+i)))); err != nil {
			t.Fatal(err)
		}
	}
	s := progress.DefaultSettings()
	s.MixUserBiasesInDaily = false
	if err := a.SaveSettings(ctx, s); err != nil {
		t.Fatal(err)
	}

	d, err := a.Today(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if d.Bias.IsUser() {
		t.Errorf("picked user bias %s with mixing disabled", d.Bias.ID)
	}
}

func TestApp_TodayRecomputesWhenCachedBiasGone(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, Options{})

	b, err := a.AddUserBias(ctx, userInput("Ephemeral Bias"))
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Store().SetCachedDaily(ctx, "2026-10-16", b.ID); err != nil {
		t.Fatal(err)
	}
	if err := a.DeleteUserBias(ctx, b.ID); err != nil {
		t.Fatal(err)
	}

	d, err := a.Today(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if d.Cached || d.Bias.ID == b.ID {
		t.Errorf("got %+v, want a fresh pick", d)
	}
}

func TestApp_Recommend(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, Options{})

	b, ok, err := a.Recommend(ctx)
	if err != nil || !ok {
		t.Fatalf("Recommend() = %v, %v", ok, err)
	}
	if b.Category != content.CategoryDecision {
		t.Errorf("with no history, want first category; got %s", b.Category)
	}

	for _, bias := range a.Catalog().ByCategory(content.CategoryDecision) {
		if _, err := a.View(ctx, bias.ID); err != nil {
			t.Fatal(err)
		}
	}
	b, ok, _ = a.Recommend(ctx)
	if !ok || b.Category == content.CategoryDecision {
		t.Errorf("Recommend() = %s (%s), want another category", b.ID, b.Category)
	}

	dist, err := a.CategoryDistribution(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if dist[content.CategoryDecision] != len(a.Catalog().ByCategory(content.CategoryDecision)) {
		t.Errorf("distribution = %v", dist)
	}
}

// ============================================================================
// Progress
// ============================================================================

func TestApp_View(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, Options{})

	if _, err := a.View(ctx, "no-such-bias"); !errors.Is(err, ErrNotFound) {
		t.Errorf("View(unknown) error = %v, want ErrNotFound", err)
	}

	p, err := a.View(ctx, "halo-effect")
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	if p.ViewCount != 1 {
		t.Errorf("ViewCount = %d", p.ViewCount)
	}

	stats, err := a.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalBiasesRead != 1 || stats.CurrentStreak != 1 || stats.LastViewedDate != "2026-10-16" {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestApp_Favorites(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, Options{})

	if _, err := a.ToggleFavorite(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ToggleFavorite(unknown) error = %v", err)
	}

	on, err := a.ToggleFavorite(ctx, "framing-effect")
	if err != nil || !on {
		t.Fatalf("ToggleFavorite() = %v, %v", on, err)
	}
	favs, err := a.Favorites(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(favs) != 1 || favs[0].ID != "framing-effect" {
		t.Errorf("Favorites() = %+v", favs)
	}

	on, _ = a.ToggleFavorite(ctx, "framing-effect")
	if on {
		t.Error("second toggle should unfavorite")
	}
}

func TestApp_FavoritesSkipMissing(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, Options{})

	if err := a.Store().AddFavorite(ctx, "retired-bias"); err != nil {
		t.Fatal(err)
	}
	favs, err := a.Favorites(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(favs) != 0 {
		t.Errorf("Favorites() = %+v, want none", favs)
	}
}

func TestApp_ToggleMastered(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, Options{})

	m, err := a.ToggleMastered(ctx, "planning-fallacy")
	if err != nil || !m {
		t.Fatalf("ToggleMastered() = %v, %v", m, err)
	}
	stats, _ := a.Stats(ctx)
	if stats.MasteredCount != 1 {
		t.Errorf("MasteredCount = %d", stats.MasteredCount)
	}
}

// ============================================================================
// User biases
// ============================================================================

func TestApp_UserBiasLifecycle(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, Options{})
	before := a.Catalog().Len()

	b, err := a.AddUserBias(ctx, userInput("Inbox Zero Illusion"))
	if err != nil {
		t.Fatalf("AddUserBias() error = %v", err)
	}
	if a.Catalog().Len() != before+1 {
		t.Errorf("catalog size = %d", a.Catalog().Len())
	}

	updated, err := a.UpdateUserBias(ctx, b.ID, userInput("Inbox Zero Mirage"))
	if err != nil {
		t.Fatalf("UpdateUserBias() error = %v", err)
	}
	if updated.Title != "Inbox Zero Mirage" || updated.ID != b.ID {
		t.Errorf("updated = %+v", updated)
	}

	if _, err := a.View(ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	if err := a.DeleteUserBias(ctx, b.ID); err != nil {
		t.Fatalf("DeleteUserBias() error = %v", err)
	}
	if _, err := a.Bias(b.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Bias() after delete error = %v", err)
	}
	if _, ok, _ := a.Store().Progress(ctx, b.ID); ok {
		t.Error("progress should be removed with the bias")
	}
}

func TestApp_AddUserBiasInvalid(t *testing.T) {
	a := newTestApp(t, Options{})
	in := userInput("ok title")
	in.Summary = "short"
	if _, err := a.AddUserBias(context.Background(), in); !errors.Is(err, validation.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestApp_DeleteCoreBias(t *testing.T) {
	a := newTestApp(t, Options{})
	err := a.DeleteUserBias(context.Background(), "anchoring")
	if !errors.Is(err, content.ErrReadOnly) {
		t.Errorf("error = %v, want ErrReadOnly", err)
	}
	if _, err := a.UpdateUserBias(context.Background(), "anchoring", userInput("Hijacked")); !errors.Is(err, content.ErrReadOnly) {
		t.Errorf("update error = %v, want ErrReadOnly", err)
	}
}

func TestApp_Categories(t *testing.T) {
	a := newTestApp(t, Options{})

	cats := a.Categories()
	if len(cats) != len(content.Categories()) {
		t.Fatalf("len = %d", len(cats))
	}
	total := 0
	for _, c := range cats {
		if c.Label == "" {
			t.Errorf("%s has no label", c.Category)
		}
		total += c.Count
	}
	if total != a.Catalog().Len() {
		t.Errorf("counts sum to %d, want %d", total, a.Catalog().Len())
	}
}

func TestApp_ExportImport(t *testing.T) {
	ctx := context.Background()
	src := newTestApp(t, Options{})

	b, err := src.AddUserBias(ctx, userInput("Portable Bias"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := src.ToggleFavorite(ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	exp, err := src.Export(ctx)
	if err != nil {
		t.Fatal(err)
	}

	dst := newTestApp(t, Options{})
	if err := dst.Import(ctx, exp); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	favs, err := dst.Favorites(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(favs) != 1 || favs[0].ID != b.ID {
		t.Errorf("Favorites() after import = %+v", favs)
	}
}
