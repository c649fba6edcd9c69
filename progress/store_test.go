package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/biasdaily/content"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)}
	s := NewStore(Options{Now: clock.Now})
	t.Cleanup(func() { _ = s.Close() })
	return s, clock
}

// ============================================================================
// Favorites
// ============================================================================

func TestStore_Favorites(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)

	favs, err := s.Favorites(ctx)
	require.NoError(t, err)
	assert.Empty(t, favs)

	require.NoError(t, s.AddFavorite(ctx, "halo-effect"))
	clock.Advance(time.Minute)
	require.NoError(t, s.AddFavorite(ctx, "anchoring"))

	favs, err = s.Favorites(ctx)
	require.NoError(t, err)
	require.Len(t, favs, 2)
	assert.Equal(t, "halo-effect", favs[0].BiasID, "ordered by time added")
	assert.Equal(t, "anchoring", favs[1].BiasID)

	// Re-adding keeps the original timestamp.
	first := favs[0].AddedAt
	clock.Advance(time.Hour)
	require.NoError(t, s.AddFavorite(ctx, "halo-effect"))
	favs, _ = s.Favorites(ctx)
	assert.Equal(t, first, favs[0].AddedAt)

	ok, err := s.IsFavorite(ctx, "anchoring")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.RemoveFavorite(ctx, "anchoring"))
	ok, _ = s.IsFavorite(ctx, "anchoring")
	assert.False(t, ok)

	assert.ErrorIs(t, s.AddFavorite(ctx, ""), ErrInvalidKey)
}

func TestStore_ToggleFavorite(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	on, err := s.ToggleFavorite(ctx, "framing-effect")
	require.NoError(t, err)
	assert.True(t, on)

	on, err = s.ToggleFavorite(ctx, "framing-effect")
	require.NoError(t, err)
	assert.False(t, on)

	favs, _ := s.Favorites(ctx)
	assert.Empty(t, favs)
}

// ============================================================================
// Settings
// ============================================================================

func TestStore_SettingsDefaults(t *testing.T) {
	s, _ := newTestStore(t)

	got, err := s.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), got)
	assert.Equal(t, "system", got.Theme)
	assert.Equal(t, 0.9, got.VoiceRate)
	assert.True(t, got.MixUserBiasesInDaily)
}

func TestStore_SettingsMergeOverDefaults(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	s := NewStore(Options{KV: kv})

	// A document written by an older version lacks newer fields.
	require.NoError(t, kv.Put(ctx, BucketSettings, settingsKey, []byte(`{"theme":"dark","voiceEnabled":false}`)))

	got, err := s.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dark", got.Theme)
	assert.False(t, got.VoiceEnabled)
	assert.Equal(t, "gradient", got.BackgroundStyle)
	assert.Equal(t, 1.0, got.VoicePitch)
	assert.Equal(t, "UTC", got.Timezone)
}

func TestStore_SaveSettings(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	in := DefaultSettings()
	in.Theme = "light"
	in.Timezone = "Europe/Berlin"
	require.NoError(t, s.SaveSettings(ctx, in))

	got, err := s.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, got)

	in.VoiceRate = -1
	assert.ErrorIs(t, s.SaveSettings(ctx, in), ErrInvalidInput)
}

func TestSettings_Location(t *testing.T) {
	assert.Equal(t, time.UTC, Settings{}.Location())
	assert.Equal(t, time.UTC, Settings{Timezone: "Not/AZone"}.Location())
	assert.Equal(t, "UTC", DefaultSettings().Location().String())
}

// ============================================================================
// Daily cache
// ============================================================================

func TestStore_CachedDaily(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, ok, err := s.CachedDaily(ctx, "2026-10-16")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetCachedDaily(ctx, "2026-10-16", "anchoring"))
	id, ok, err := s.CachedDaily(ctx, "2026-10-16")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "anchoring", id)

	assert.ErrorIs(t, s.SetCachedDaily(ctx, "16/10/2026", "x"), ErrInvalidDate)
}

// ============================================================================
// Progress
// ============================================================================

func TestStore_MarkViewed(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)

	p, err := s.MarkViewed(ctx, "anchoring")
	require.NoError(t, err)
	assert.Equal(t, 1, p.ViewCount)
	assert.False(t, p.Mastered)
	assert.Equal(t, clock.Now().UnixMilli(), p.ViewedAt)

	clock.Advance(time.Hour)
	p, err = s.MarkViewed(ctx, "anchoring")
	require.NoError(t, err)
	assert.Equal(t, 2, p.ViewCount)
	assert.Equal(t, clock.Now().UnixMilli(), p.ViewedAt)

	got, ok, err := s.Progress(ctx, "anchoring")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, p, got)

	_, ok, err = s.Progress(ctx, "never-seen")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_MarkViewedConcurrent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	var wg sync.WaitGroup
	for range 25 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.MarkViewed(ctx, "halo-effect")
		}()
	}
	wg.Wait()

	p, _, err := s.Progress(ctx, "halo-effect")
	require.NoError(t, err)
	assert.Equal(t, 25, p.ViewCount)
}

func TestStore_ToggleMastered(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	mastered, err := s.ToggleMastered(ctx, "sunk-cost-fallacy")
	require.NoError(t, err)
	assert.True(t, mastered)

	p, ok, _ := s.Progress(ctx, "sunk-cost-fallacy")
	require.True(t, ok)
	assert.Equal(t, 0, p.ViewCount)

	_, err = s.MarkViewed(ctx, "sunk-cost-fallacy")
	require.NoError(t, err)
	mastered, err = s.ToggleMastered(ctx, "sunk-cost-fallacy")
	require.NoError(t, err)
	assert.False(t, mastered)

	p, _, _ = s.Progress(ctx, "sunk-cost-fallacy")
	assert.Equal(t, 1, p.ViewCount, "toggling keeps the view count")
}

// ============================================================================
// Streak
// ============================================================================

func TestAdvanceStreak(t *testing.T) {
	tests := []struct {
		name  string
		in    Streak
		today string
		want  Streak
	}{
		{
			name:  "first visit",
			in:    Streak{},
			today: "2026-10-16",
			want:  Streak{CurrentStreak: 1, LongestStreak: 1, LastVisitDate: "2026-10-16", TotalDaysVisited: 1},
		},
		{
			name:  "same day",
			in:    Streak{CurrentStreak: 3, LongestStreak: 5, LastVisitDate: "2026-10-16", TotalDaysVisited: 9},
			today: "2026-10-16",
			want:  Streak{CurrentStreak: 3, LongestStreak: 5, LastVisitDate: "2026-10-16", TotalDaysVisited: 9},
		},
		{
			name:  "consecutive day",
			in:    Streak{CurrentStreak: 3, LongestStreak: 5, LastVisitDate: "2026-10-15", TotalDaysVisited: 9},
			today: "2026-10-16",
			want:  Streak{CurrentStreak: 4, LongestStreak: 5, LastVisitDate: "2026-10-16", TotalDaysVisited: 10},
		},
		{
			name:  "new longest",
			in:    Streak{CurrentStreak: 5, LongestStreak: 5, LastVisitDate: "2026-10-15", TotalDaysVisited: 9},
			today: "2026-10-16",
			want:  Streak{CurrentStreak: 6, LongestStreak: 6, LastVisitDate: "2026-10-16", TotalDaysVisited: 10},
		},
		{
			name:  "gap resets current",
			in:    Streak{CurrentStreak: 4, LongestStreak: 7, LastVisitDate: "2026-10-10", TotalDaysVisited: 20},
			today: "2026-10-16",
			want:  Streak{CurrentStreak: 1, LongestStreak: 7, LastVisitDate: "2026-10-16", TotalDaysVisited: 21},
		},
		{
			name:  "across month boundary",
			in:    Streak{CurrentStreak: 1, LongestStreak: 1, LastVisitDate: "2026-02-28", TotalDaysVisited: 1},
			today: "2026-03-01",
			want:  Streak{CurrentStreak: 2, LongestStreak: 2, LastVisitDate: "2026-03-01", TotalDaysVisited: 2},
		},
		{
			name:  "across year boundary",
			in:    Streak{CurrentStreak: 2, LongestStreak: 2, LastVisitDate: "2025-12-31", TotalDaysVisited: 2},
			today: "2026-01-01",
			want:  Streak{CurrentStreak: 3, LongestStreak: 3, LastVisitDate: "2026-01-01", TotalDaysVisited: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AdvanceStreak(tt.in, tt.today))
		})
	}
}

func TestStore_UpdateStreak(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	st, err := s.Streak(ctx)
	require.NoError(t, err)
	assert.Equal(t, Streak{}, st)

	for _, day := range []string{"2026-10-14", "2026-10-15", "2026-10-15", "2026-10-16"} {
		st, err = s.UpdateStreak(ctx, day)
		require.NoError(t, err)
	}
	assert.Equal(t, Streak{CurrentStreak: 3, LongestStreak: 3, LastVisitDate: "2026-10-16", TotalDaysVisited: 3}, st)

	stored, err := s.Streak(ctx)
	require.NoError(t, err)
	assert.Equal(t, st, stored)

	_, err = s.UpdateStreak(ctx, "yesterday")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

// ============================================================================
// Stats
// ============================================================================

func TestStore_Stats(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)

	_, _ = s.MarkViewed(ctx, "anchoring")
	clock.Advance(24 * time.Hour)
	_, _ = s.MarkViewed(ctx, "halo-effect")
	_, _ = s.ToggleMastered(ctx, "halo-effect")
	_, _ = s.ToggleMastered(ctx, "never-viewed")
	_, _ = s.UpdateStreak(ctx, "2026-10-17")

	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalBiasesRead)
	assert.Equal(t, 2, stats.MasteredCount)
	assert.Equal(t, 1, stats.CurrentStreak)
	assert.Equal(t, "2026-10-17", stats.LastViewedDate)
}

// ============================================================================
// User biases and export / import
// ============================================================================

func userBias(id string) content.Bias {
	return content.Bias{
		ID:       id,
		Title:    "Meeting Fatigue",
		Category: content.CategorySocial,
		Summary:  "Agreeing to end the meeting sooner.",
		Source:   content.SourceUser,
	}
}

func TestStore_UserBiases(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.PutUserBias(ctx, userBias("user-1")))
	require.NoError(t, s.AddFavorite(ctx, "user-1"))
	_, _ = s.MarkViewed(ctx, "user-1")

	got, err := s.UserBiases(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "user-1", got[0].ID)

	core := userBias("anchoring")
	core.Source = content.SourceCore
	assert.True(t, errors.Is(s.PutUserBias(ctx, core), content.ErrReadOnly))

	require.NoError(t, s.DeleteUserBias(ctx, "user-1"))
	got, _ = s.UserBiases(ctx)
	assert.Empty(t, got)
	fav, _ := s.IsFavorite(ctx, "user-1")
	assert.False(t, fav)
	_, ok, _ := s.Progress(ctx, "user-1")
	assert.False(t, ok)
}

func TestStore_ExportImport(t *testing.T) {
	ctx := context.Background()
	src, _ := newTestStore(t)

	require.NoError(t, src.PutUserBias(ctx, userBias("user-1")))
	require.NoError(t, src.AddFavorite(ctx, "anchoring"))
	_, _ = src.MarkViewed(ctx, "anchoring")
	_, _ = src.UpdateStreak(ctx, "2026-10-16")
	settings := DefaultSettings()
	settings.Theme = "dark"
	require.NoError(t, src.SaveSettings(ctx, settings))

	exp, err := src.ExportAll(ctx)
	require.NoError(t, err)
	assert.Len(t, exp.UserBiases, 1)
	assert.Len(t, exp.Favorites, 1)
	assert.Len(t, exp.Progress, 1)
	require.NotNil(t, exp.Streak)
	require.NotNil(t, exp.Settings)
	assert.NotZero(t, exp.ExportedAt)

	dst, _ := newTestStore(t)
	require.NoError(t, dst.ImportAll(ctx, exp))

	again, err := dst.ExportAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, exp.UserBiases, again.UserBiases)
	assert.Equal(t, exp.Favorites, again.Favorites)
	assert.Equal(t, exp.Progress, again.Progress)
	assert.Equal(t, *exp.Streak, *again.Streak)
	assert.Equal(t, "dark", again.Settings.Theme)
}

func TestStore_ImportRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	bad := userBias("user-2")
	bad.Category = "astrology"
	err := s.ImportAll(ctx, Export{UserBiases: []content.Bias{bad}})
	assert.ErrorIs(t, err, content.ErrInvalidBias)

	core := userBias("anchoring")
	core.Source = content.SourceCore
	err = s.ImportAll(ctx, Export{UserBiases: []content.Bias{core}})
	assert.ErrorIs(t, err, content.ErrReadOnly)
}

func TestStore_ExportEmptyHasNoStreak(t *testing.T) {
	s, _ := newTestStore(t)
	exp, err := s.ExportAll(context.Background())
	require.NoError(t, err)
	assert.Nil(t, exp.Streak)
	assert.Empty(t, exp.Favorites)
	assert.Equal(t, DefaultSettings(), *exp.Settings)
}

func TestStore_Today(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 16, 23, 30, 0, 0, time.UTC)}
	tokyo := time.FixedZone("JST", 9*3600)
	s := NewStore(Options{Now: clock.Now, Location: tokyo})
	assert.Equal(t, "2026-10-17", s.Today())
}
