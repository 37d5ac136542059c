// Package store provides the whole-blob persistence contract shared by the
// telemetry log, the override set, and selector statistics. Collections are
// read and rewritten wholesale under fixed keys — no partial updates — which
// matches the storage surface browser embedders expose.
package store

import "context"

// Store is a whole-blob key/value store. Get returns (nil, nil) for a
// missing key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Fixed collection keys.
const (
	KeyExtractionEvents = "extraction_events"
	KeyUserOverrides    = "user_overrides"
	KeySelectorStats    = "selector_stats"
)
