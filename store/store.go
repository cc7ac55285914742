// Package store defines the durable key-value store the client keeps its session and
// response cache in. Each Store value is one namespace: Clear empties that namespace
// only.
package store

import (
	"context"
	"time"
)

// Namespaces used by the client.
const (
	NamespaceSession = "session"
	NamespaceCache   = "cache"
)

// Store is a context-aware key-value store. A ttl of zero means the entry never
// expires; expiry is enforced by the store, not by its callers.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
