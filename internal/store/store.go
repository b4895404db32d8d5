// Package store provides the pluggable key/value substrate under the
// presence core: a process-local backend and a shared NATS-backed backend
// with per-key TTL, interchangeable behind one contract.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned when a key doesn't exist in the store.
var ErrKeyNotFound = errors.New("key not found")

// Store is the contract both backends implement. All implementations must be
// safe for concurrent use. A ttl of zero means the value never expires; the
// local backend ignores ttl entirely (entries live until removed), which is
// a documented asymmetry, not a bug: the shared backend's TTL exists purely
// as a crash-recovery safety net.
type Store interface {
	// SetAdd adds member to the set at key. Adding twice has no extra
	// effect. On the shared backend the write refreshes the member's TTL.
	SetAdd(ctx context.Context, key, member string) error

	// SetRemove removes member from the set at key. No error if absent.
	SetRemove(ctx context.Context, key, member string) error

	// SetMembers returns the current members of the set at key.
	// An empty set yields an empty slice, not an error.
	SetMembers(ctx context.Context, key string) ([]string, error)

	// Put stores value at key. A positive ttl bounds the entry's lifetime
	// on backends that support expiry; each Put refreshes it.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves the value at key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. No error if the key doesn't exist.
	Delete(ctx context.Context, key string) error
}
