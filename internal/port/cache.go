package port

import "context"

// Cache is a key/value store with time-to-live eviction. Implementations
// swallow backend failures: a broken backend behaves as an always-miss cache.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
	Close() error
}

// Recorder appends structured trace records. Record never fails the caller.
type Recorder interface {
	Record(record map[string]any)
}
