// Package store is a small two-tier key/value layer used for
// short-lived request damping (duplicate submission nonces, cached
// confirmation responses). Settlement correctness never depends on
// which tier served a read; the database stays the source of truth.
package store

import (
	"context"
	"time"
)

type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
