package cache

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by stores for absent keys.
	ErrNotFound = errors.New("cache: key not found")
	// ErrQuotaExceeded is returned by stores that refuse a write for lack of space.
	ErrQuotaExceeded = errors.New("cache: quota exceeded")
)

// Store is the raw key/value storage behind a Cache. Implementations must be
// safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	// Keys lists every key starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
