package progress

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// Bucket names used by Store.
const (
	BucketUserBiases = "userBiases"
	BucketFavorites  = "favorites"
	BucketSettings   = "settings"
	BucketCache      = "cache"
	BucketProgress   = "progress"
	BucketStreak     = "streak"
)

// Buckets lists every bucket Store writes to.
func Buckets() []string {
	return []string{
		BucketUserBiases,
		BucketFavorites,
		BucketSettings,
		BucketCache,
		BucketProgress,
		BucketStreak,
	}
}

// KV is a bucketed byte store.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Context: methods honor cancellation before touching storage.
//   - Errors: Get returns ErrNotFound for a missing key. Delete of a
//     missing key is not an error.
//   - Ordering: List returns values sorted by key.
//   - Ownership: returned slices belong to the caller.
type KV interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, value []byte) error
	Delete(ctx context.Context, bucket, key string) error
	List(ctx context.Context, bucket string) ([][]byte, error)
	Close() error
}

// MemoryKV is an in-memory KV.
type MemoryKV struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte
	closed  bool
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{buckets: make(map[string]map[string][]byte)}
}

// Get implements KV.
func (m *MemoryKV) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	v, ok := m.buckets[bucket][key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

// Put implements KV.
func (m *MemoryKV) Put(ctx context.Context, bucket, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return ErrInvalidKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	b, ok := m.buckets[bucket]
	if !ok {
		b = make(map[string][]byte)
		m.buckets[bucket] = b
	}
	b[key] = slices.Clone(value)
	return nil
}

// Delete implements KV.
func (m *MemoryKV) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	delete(m.buckets[bucket], key)
	return nil
}

// List implements KV.
func (m *MemoryKV) List(ctx context.Context, bucket string) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	b := m.buckets[bucket]
	out := make([][]byte, 0, len(b))
	for _, k := range slices.Sorted(maps.Keys(b)) {
		out = append(out, slices.Clone(b[k]))
	}
	return out, nil
}

// Close marks the store closed. Further calls return ErrStoreClosed.
func (m *MemoryKV) Close() error {
	m.mu.Lock()
	m.closed = true
	m.buckets = nil
	m.mu.Unlock()
	return nil
}
