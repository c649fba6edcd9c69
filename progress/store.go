package progress

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jonwraymond/biasdaily/content"
)

const (
	settingsKey = "user-settings"
	streakKey   = "user-streak"
)

// Options configures a Store.
type Options struct {
	// KV holds the data. Default: a fresh MemoryKV.
	KV KV

	// Now supplies the current time. Default: time.Now.
	Now func() time.Time

	// Location is used to derive calendar dates from timestamps.
	// Default: UTC.
	Location *time.Location
}

// Store provides typed access to learner state over a KV.
//
// Read-modify-write operations (MarkViewed, ToggleMastered, ToggleFavorite,
// UpdateStreak) are serialized so concurrent callers do not lose updates.
type Store struct {
	kv  KV
	now func() time.Time
	loc *time.Location

	mu sync.Mutex
}

// NewStore creates a Store.
func NewStore(opts Options) *Store {
	if opts.KV == nil {
		opts.KV = NewMemoryKV()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Store{kv: opts.KV, now: opts.Now, loc: opts.Location}
}

// Close closes the underlying KV.
func (s *Store) Close() error {
	return s.kv.Close()
}

// Today returns the current calendar date in the store's location.
func (s *Store) Today() string {
	return s.now().In(s.loc).Format(DateLayout)
}

// ============================================================================
// User biases
// ============================================================================

// UserBiases returns every stored user-authored bias.
func (s *Store) UserBiases(ctx context.Context) ([]content.Bias, error) {
	out, err := listJSON[content.Bias](ctx, s.kv, BucketUserBiases)
	if err != nil {
		return nil, fmt.Errorf("failed to load user biases: %w", err)
	}
	return out, nil
}

// PutUserBias inserts or replaces a user-authored bias.
func (s *Store) PutUserBias(ctx context.Context, b content.Bias) error {
	if !b.IsUser() {
		return fmt.Errorf("failed to save user bias: %w: %s", content.ErrReadOnly, b.ID)
	}
	if err := putJSON(ctx, s.kv, BucketUserBiases, b.ID, b); err != nil {
		return fmt.Errorf("failed to save user bias: %w", err)
	}
	return nil
}

// DeleteUserBias removes a user-authored bias. Its favorite and progress
// records are removed too.
func (s *Store) DeleteUserBias(ctx context.Context, id string) error {
	for _, bucket := range []string{BucketUserBiases, BucketFavorites, BucketProgress} {
		if err := s.kv.Delete(ctx, bucket, id); err != nil {
			return fmt.Errorf("failed to delete user bias: %w", err)
		}
	}
	return nil
}

// ============================================================================
// Favorites
// ============================================================================

// Favorites returns favorites ordered by the time they were added.
func (s *Store) Favorites(ctx context.Context) ([]Favorite, error) {
	out, err := listJSON[Favorite](ctx, s.kv, BucketFavorites)
	if err != nil {
		return nil, fmt.Errorf("failed to load favorites: %w", err)
	}
	slices.SortStableFunc(out, func(a, b Favorite) int {
		return cmp.Or(cmp.Compare(a.AddedAt, b.AddedAt), cmp.Compare(a.BiasID, b.BiasID))
	})
	return out, nil
}

// AddFavorite stars id. Adding an existing favorite keeps its original
// timestamp.
func (s *Store) AddFavorite(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addFavoriteLocked(ctx, id)
}

func (s *Store) addFavoriteLocked(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("failed to add favorite: %w", ErrInvalidKey)
	}
	if ok, err := s.IsFavorite(ctx, id); err != nil {
		return err
	} else if ok {
		return nil
	}
	fav := Favorite{BiasID: id, AddedAt: s.now().UnixMilli()}
	if err := putJSON(ctx, s.kv, BucketFavorites, id, fav); err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}
	return nil
}

// RemoveFavorite unstars id.
func (s *Store) RemoveFavorite(ctx context.Context, id string) error {
	if err := s.kv.Delete(ctx, BucketFavorites, id); err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	return nil
}

// IsFavorite reports whether id is starred.
func (s *Store) IsFavorite(ctx context.Context, id string) (bool, error) {
	_, err := s.kv.Get(ctx, BucketFavorites, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("failed to check favorite: %w", err)
	}
}

// ToggleFavorite flips the favorite state of id and returns the new state.
func (s *Store) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fav, err := s.IsFavorite(ctx, id)
	if err != nil {
		return false, err
	}
	if fav {
		return false, s.RemoveFavorite(ctx, id)
	}
	return true, s.addFavoriteLocked(ctx, id)
}

// ============================================================================
// Settings
// ============================================================================

// Settings returns stored settings merged over DefaultSettings. Fields
// absent from the stored document keep their defaults.
func (s *Store) Settings(ctx context.Context) (Settings, error) {
	settings := DefaultSettings()
	raw, err := s.kv.Get(ctx, BucketSettings, settingsKey)
	switch {
	case errors.Is(err, ErrNotFound):
		return settings, nil
	case err != nil:
		return settings, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := json.Unmarshal(raw, &settings); err != nil {
		return DefaultSettings(), fmt.Errorf("failed to load settings: %w", err)
	}
	return settings, nil
}

// SaveSettings replaces the stored settings.
func (s *Store) SaveSettings(ctx context.Context, settings Settings) error {
	if settings.VoiceRate < 0 || settings.VoicePitch < 0 {
		return fmt.Errorf("failed to save settings: %w: negative voice rate or pitch", ErrInvalidInput)
	}
	if err := putJSON(ctx, s.kv, BucketSettings, settingsKey, settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// ============================================================================
// Daily cache
// ============================================================================

type cachedDaily struct {
	Date   string `json:"date"`
	BiasID string `json:"biasId"`
}

// CachedDaily returns the bias ID previously chosen for date.
func (s *Store) CachedDaily(ctx context.Context, date string) (string, bool, error) {
	var c cachedDaily
	err := getJSON(ctx, s.kv, BucketCache, date, &c)
	switch {
	case errors.Is(err, ErrNotFound):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("failed to load daily cache: %w", err)
	}
	return c.BiasID, true, nil
}

// SetCachedDaily records the bias chosen for date.
func (s *Store) SetCachedDaily(ctx context.Context, date, biasID string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("failed to save daily cache: %w: %q", ErrInvalidDate, date)
	}
	if err := putJSON(ctx, s.kv, BucketCache, date, cachedDaily{Date: date, BiasID: biasID}); err != nil {
		return fmt.Errorf("failed to save daily cache: %w", err)
	}
	return nil
}

// ============================================================================
// Progress
// ============================================================================

// Progress returns the record for id, reporting false if it was never
// viewed.
func (s *Store) Progress(ctx context.Context, id string) (BiasProgress, bool, error) {
	var p BiasProgress
	err := getJSON(ctx, s.kv, BucketProgress, id, &p)
	switch {
	case errors.Is(err, ErrNotFound):
		return BiasProgress{}, false, nil
	case err != nil:
		return BiasProgress{}, false, fmt.Errorf("failed to load progress: %w", err)
	}
	return p, true, nil
}

// AllProgress returns every progress record ordered by bias ID.
func (s *Store) AllProgress(ctx context.Context) ([]BiasProgress, error) {
	out, err := listJSON[BiasProgress](ctx, s.kv, BucketProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}
	return out, nil
}

// MarkViewed records a view of id, creating the record on first view.
func (s *Store) MarkViewed(ctx context.Context, id string) (BiasProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok, err := s.Progress(ctx, id)
	if err != nil {
		return BiasProgress{}, err
	}
	if !ok {
		p = BiasProgress{BiasID: id}
	}
	p.ViewedAt = s.now().UnixMilli()
	p.ViewCount++

	if err := putJSON(ctx, s.kv, BucketProgress, id, p); err != nil {
		return BiasProgress{}, fmt.Errorf("failed to mark bias as viewed: %w", err)
	}
	return p, nil
}

// ToggleMastered flips the mastered flag of id and returns the new state.
// A bias that was never viewed gets a record with a zero view count.
func (s *Store) ToggleMastered(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok, err := s.Progress(ctx, id)
	if err != nil {
		return false, err
	}
	if !ok {
		p = BiasProgress{BiasID: id, ViewedAt: s.now().UnixMilli()}
	}
	p.Mastered = !p.Mastered

	if err := putJSON(ctx, s.kv, BucketProgress, id, p); err != nil {
		return false, fmt.Errorf("failed to toggle mastered: %w", err)
	}
	return p.Mastered, nil
}

// ============================================================================
// Streak
// ============================================================================

// Streak returns the stored streak, or a zero streak before the first
// visit.
func (s *Store) Streak(ctx context.Context) (Streak, error) {
	var st Streak
	err := getJSON(ctx, s.kv, BucketStreak, streakKey, &st)
	switch {
	case errors.Is(err, ErrNotFound):
		return Streak{}, nil
	case err != nil:
		return Streak{}, fmt.Errorf("failed to load streak: %w", err)
	}
	return st, nil
}

// UpdateStreak records a visit on today (YYYY-MM-DD) and returns the
// resulting streak. Repeated visits on the same day change nothing.
func (s *Store) UpdateStreak(ctx context.Context, today string) (Streak, error) {
	if _, err := time.Parse(DateLayout, today); err != nil {
		return Streak{}, fmt.Errorf("failed to update streak: %w: %q", ErrInvalidDate, today)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.Streak(ctx)
	if err != nil {
		return Streak{}, err
	}
	next := AdvanceStreak(st, today)
	if next == st {
		return st, nil
	}
	if err := putJSON(ctx, s.kv, BucketStreak, streakKey, next); err != nil {
		return Streak{}, fmt.Errorf("failed to update streak: %w", err)
	}
	return next, nil
}

// AdvanceStreak applies a visit on today to st. today must be a valid
// YYYY-MM-DD date.
func AdvanceStreak(st Streak, today string) Streak {
	switch st.LastVisitDate {
	case today:
		return st
	case "":
		return Streak{CurrentStreak: 1, LongestStreak: 1, LastVisitDate: today, TotalDaysVisited: 1}
	case previousDay(today):
		st.CurrentStreak++
		st.LongestStreak = max(st.LongestStreak, st.CurrentStreak)
	default:
		st.CurrentStreak = 1
		st.LongestStreak = max(st.LongestStreak, 1)
	}
	st.LastVisitDate = today
	st.TotalDaysVisited++
	return st
}

// previousDay works on calendar dates so DST shifts cannot skip a day.
func previousDay(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format(DateLayout)
}

// ============================================================================
// Stats
// ============================================================================

// Stats summarizes progress and streak.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	all, err := s.AllProgress(ctx)
	if err != nil {
		return Stats{}, err
	}
	st, err := s.Streak(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		TotalBiasesRead: 0,
		CurrentStreak:   st.CurrentStreak,
		LongestStreak:   st.LongestStreak,
	}
	var last int64
	for _, p := range all {
		if p.ViewCount > 0 {
			stats.TotalBiasesRead++
		}
		if p.Mastered {
			stats.MasteredCount++
		}
		if p.ViewCount > 0 && p.ViewedAt > last {
			last = p.ViewedAt
		}
	}
	if last > 0 {
		stats.LastViewedDate = time.UnixMilli(last).In(s.loc).Format(DateLayout)
	}
	return stats, nil
}

// ============================================================================
// Export / import
// ============================================================================

// ExportAll snapshots user biases, favorites, settings, progress and
// streak.
func (s *Store) ExportAll(ctx context.Context) (Export, error) {
	var (
		exp Export
		err error
	)
	if exp.UserBiases, err = s.UserBiases(ctx); err != nil {
		return Export{}, err
	}
	if exp.Favorites, err = s.Favorites(ctx); err != nil {
		return Export{}, err
	}
	if exp.Progress, err = s.AllProgress(ctx); err != nil {
		return Export{}, err
	}
	settings, err := s.Settings(ctx)
	if err != nil {
		return Export{}, err
	}
	exp.Settings = &settings

	st, err := s.Streak(ctx)
	if err != nil {
		return Export{}, err
	}
	if st.LastVisitDate != "" {
		exp.Streak = &st
	}
	exp.ExportedAt = s.now().UnixMilli()
	return exp, nil
}

// ImportAll merges exp into the store. Records with the same key are
// replaced; other records are left in place. Core biases in
// exp.UserBiases are rejected.
func (s *Store) ImportAll(ctx context.Context, exp Export) error {
	for _, b := range exp.UserBiases {
		if b.Source == "" {
			b.Source = content.SourceUser
		}
		if err := b.Validate(); err != nil {
			return fmt.Errorf("failed to import data: %w", err)
		}
		if err := s.PutUserBias(ctx, b); err != nil {
			return fmt.Errorf("failed to import data: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range exp.Favorites {
		if err := putJSON(ctx, s.kv, BucketFavorites, f.BiasID, f); err != nil {
			return fmt.Errorf("failed to import data: %w", err)
		}
	}
	for _, p := range exp.Progress {
		if err := putJSON(ctx, s.kv, BucketProgress, p.BiasID, p); err != nil {
			return fmt.Errorf("failed to import data: %w", err)
		}
	}
	if exp.Settings != nil {
		if err := putJSON(ctx, s.kv, BucketSettings, settingsKey, *exp.Settings); err != nil {
			return fmt.Errorf("failed to import data: %w", err)
		}
	}
	if exp.Streak != nil {
		if err := putJSON(ctx, s.kv, BucketStreak, streakKey, *exp.Streak); err != nil {
			return fmt.Errorf("failed to import data: %w", err)
		}
	}
	return nil
}

// ============================================================================
// JSON helpers
// ============================================================================

func getJSON(ctx context.Context, kv KV, bucket, key string, v any) error {
	raw, err := kv.Get(ctx, bucket, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func putJSON(ctx context.Context, kv KV, bucket, key string, v any) error {
	if key == "" {
		return ErrInvalidKey
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return kv.Put(ctx, bucket, key, raw)
}

func listJSON[T any](ctx context.Context, kv KV, bucket string) ([]T, error) {
	raws, err := kv.List(ctx, bucket)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
