package store

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// Failover wraps a shared backend and falls back to a local one whenever the
// shared store errors. Call sites hold a single Store and never learn which
// backend actually served them.
//
// ErrKeyNotFound is a result, not a backend failure, and is passed through.
type Failover struct {
	shared   Store
	fallback Store
}

func NewFailover(shared, fallback Store) *Failover {
	return &Failover{shared: shared, fallback: fallback}
}

func (f *Failover) SetAdd(ctx context.Context, key, member string) error {
	if err := f.shared.SetAdd(ctx, key, member); err != nil {
		f.report("SetAdd", key, err)
		return f.fallback.SetAdd(ctx, key, member)
	}
	return nil
}

func (f *Failover) SetRemove(ctx context.Context, key, member string) error {
	if err := f.shared.SetRemove(ctx, key, member); err != nil {
		f.report("SetRemove", key, err)
		return f.fallback.SetRemove(ctx, key, member)
	}
	return nil
}

func (f *Failover) SetMembers(ctx context.Context, key string) ([]string, error) {
	members, err := f.shared.SetMembers(ctx, key)
	if err != nil {
		f.report("SetMembers", key, err)
		return f.fallback.SetMembers(ctx, key)
	}
	return members, nil
}

func (f *Failover) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := f.shared.Put(ctx, key, value, ttl); err != nil {
		f.report("Put", key, err)
		return f.fallback.Put(ctx, key, value, ttl)
	}
	return nil
}

func (f *Failover) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := f.shared.Get(ctx, key)
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		f.report("Get", key, err)
		return f.fallback.Get(ctx, key)
	}
	return value, err
}

func (f *Failover) Delete(ctx context.Context, key string) error {
	if err := f.shared.Delete(ctx, key); err != nil {
		f.report("Delete", key, err)
		return f.fallback.Delete(ctx, key)
	}
	return nil
}

func (f *Failover) report(op, key string, err error) {
	log.Warn().Str("module", "store.failover").Str("op", op).Str("key", key).Err(err).Msg("shared store failed, using local fallback")
}
