package progress

import (
	"context"
	"fmt"
	"slices"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltOptions configures OpenBolt.
type BoltOptions struct {
	// Timeout bounds how long Open waits for the file lock.
	// Default: 1s.
	Timeout time.Duration

	// ReadOnly opens the database without write access.
	ReadOnly bool
}

// BoltKV is a KV backed by a single bbolt file.
type BoltKV struct {
	db *bolt.DB
}

// OpenBolt opens or creates the database at path and ensures every bucket
// in Buckets exists.
func OpenBolt(path string, opts *BoltOptions) (*BoltKV, error) {
	var o BoltOptions
	if opts != nil {
		o = *opts
	}
	if o.Timeout <= 0 {
		o.Timeout = time.Second
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: o.Timeout, ReadOnly: o.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if !o.ReadOnly {
		err = db.Update(func(tx *bolt.Tx) error {
			for _, name := range Buckets() {
				if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
					return fmt.Errorf("create bucket %s: %w", name, err)
				}
			}
			return nil
		})
		if err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &BoltKV{db: db}, nil
}

// Path returns the database file path.
func (b *BoltKV) Path() string { return b.db.Path() }

// Get implements KV.
func (b *BoltKV) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket([]byte(bucket))
		if bk == nil {
			return ErrNotFound
		}
		v := bk.Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// v is only valid inside the transaction.
		out = slices.Clone(v)
		return nil
	})
	return out, err
}

// Put implements KV.
func (b *BoltKV) Put(ctx context.Context, bucket, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return ErrInvalidKey
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bk, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return bk.Put([]byte(key), value)
	})
}

// Delete implements KV.
func (b *BoltKV) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket([]byte(bucket))
		if bk == nil {
			return nil
		}
		return bk.Delete([]byte(key))
	})
}

// List implements KV.
func (b *BoltKV) List(ctx context.Context, bucket string) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out [][]byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket([]byte(bucket))
		if bk == nil {
			return nil
		}
		return bk.ForEach(func(_, v []byte) error {
			out = append(out, slices.Clone(v))
			return nil
		})
	})
	if out == nil && err == nil {
		out = [][]byte{}
	}
	return out, err
}

// Close releases the database file.
func (b *BoltKV) Close() error {
	return b.db.Close()
}
