package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackendDown = errors.New("backend down")

// brokenStore fails every operation, standing in for an unreachable shared
// backend.
type brokenStore struct{}

func (brokenStore) SetAdd(context.Context, string, string) error    { return errBackendDown }
func (brokenStore) SetRemove(context.Context, string, string) error { return errBackendDown }
func (brokenStore) SetMembers(context.Context, string) ([]string, error) {
	return nil, errBackendDown
}
func (brokenStore) Put(context.Context, string, []byte, time.Duration) error {
	return errBackendDown
}
func (brokenStore) Get(context.Context, string) ([]byte, error) { return nil, errBackendDown }
func (brokenStore) Delete(context.Context, string) error        { return errBackendDown }

func TestFailoverUsesFallbackWhenSharedFails(t *testing.T) {
	ctx := context.Background()
	local := NewLocal()
	f := NewFailover(brokenStore{}, local)

	require.NoError(t, f.SetAdd(ctx, "s", "a"))
	members, err := f.SetMembers(ctx, "s")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a"}, members)

	require.NoError(t, f.Put(ctx, "k", []byte("v"), time.Minute))
	got, err := f.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, f.SetRemove(ctx, "s", "a"))
	require.NoError(t, f.Delete(ctx, "k"))
	_, err = f.Get(ctx, "k")
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestFailoverPrefersShared(t *testing.T) {
	ctx := context.Background()
	shared := NewLocal()
	fallback := NewLocal()
	f := NewFailover(shared, fallback)

	require.NoError(t, f.Put(ctx, "k", []byte("shared"), 0))

	// The value must have landed in the shared backend, not the fallback.
	got, err := shared.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("shared"), got)
	_, err = fallback.Get(ctx, "k")
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestFailoverPassesThroughNotFound(t *testing.T) {
	ctx := context.Background()
	shared := NewLocal()
	fallback := NewLocal()
	f := NewFailover(shared, fallback)

	// A healthy shared backend answering "no such key" is a result, not a
	// failure; the fallback must not be consulted.
	require.NoError(t, fallback.Put(ctx, "k", []byte("stale"), 0))
	_, err := f.Get(ctx, "k")
	require.ErrorIs(t, err, ErrKeyNotFound)
}
