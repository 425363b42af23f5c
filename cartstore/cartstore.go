// Package cartstore provides the durable key-value storage the cart record is
// persisted to.
package cartstore

import (
	"context"
)

// ICartStore is the durable store the engine persists the cart record to.
type ICartStore interface {
	// Initialize waits until the backend is reachable.
	Initialize(ctx context.Context) error

	// Get returns the value stored under key. found is false when nothing has
	// been stored yet.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	Ping(ctx context.Context) bool
}
