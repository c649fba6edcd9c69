// Package progress persists a learner's local state: favorites, viewing
// progress, streaks, settings, user-authored biases and the cached daily
// pick.
//
// All state lives in a [KV] store organized in buckets, one per record
// kind. Two implementations are provided:
//
//   - [MemoryKV]: in-process maps, for tests and ephemeral sessions
//   - [BoltKV]: a single bbolt file on disk
//
// Values are stored as JSON so exports and imports are plain documents.
//
// # Usage
//
//	kv, err := progress.OpenBolt("biasdaily.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := progress.NewStore(progress.Options{KV: kv})
//	defer store.Close()
//
//	p, err := store.MarkViewed(ctx, "anchoring")
//	streak, err := store.UpdateStreak(ctx, "2026-10-16")
//
// # Errors
//
// Missing records are not errors: getters return zero values or defaults.
// Storage failures are wrapped with the failing operation, for example
// "failed to load favorites: ...", and keep the underlying error for
// errors.Is.
package progress
