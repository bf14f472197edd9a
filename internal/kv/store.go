// Package kv is the local key-value store answers and paragraph sets are
// persisted in. Writes are last-write-wins; there is no conflict detection.
package kv

import "context"

type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Scan returns every entry whose key starts with prefix.
	Scan(ctx context.Context, prefix string) (map[string]string, error)
}
