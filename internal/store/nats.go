package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATS is the shared backend, built on two JetStream KV buckets: one with a
// bucket-level TTL for session sets and activity timestamps (every Put
// refreshes the entry), and one without expiry for durable values. Sets are
// emulated as "<key>.<member>" entries so each member carries its own TTL.
type NATS struct {
	nc      *nats.Conn
	ttlKV   nats.KeyValue
	plainKV nats.KeyValue
}

// DialNATS connects and provisions both buckets. The ttl applies to every
// entry of the TTL bucket; 5 minutes bounds staleness after a crash that
// never emitted disconnect events.
func DialNATS(url, bucket string, ttl time.Duration) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("pulse-state-store"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Str("module", "store.nats").Err(err).Msg("disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("module", "store.nats").Str("url", nc.ConnectedUrl()).Msg("reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	ttlKV, err := js.CreateKeyValue(&nats.KeyValueConfig{
		Bucket:  bucket + "_TTL",
		History: 1,
		TTL:     ttl,
		Storage: nats.MemoryStorage,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create ttl bucket: %w", err)
	}
	plainKV, err := js.CreateKeyValue(&nats.KeyValueConfig{
		Bucket:  bucket,
		History: 1,
		Storage: nats.MemoryStorage,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	log.Info().Str("module", "store.nats").Str("bucket", bucket).Dur("ttl", ttl).Msg("kv buckets ready")
	return &NATS{nc: nc, ttlKV: ttlKV, plainKV: plainKV}, nil
}

func (n *NATS) Close() {
	n.nc.Close()
}

func (n *NATS) SetAdd(_ context.Context, key, member string) error {
	_, err := n.ttlKV.Put(key+"."+member, []byte{1})
	return err
}

func (n *NATS) SetRemove(_ context.Context, key, member string) error {
	err := n.ttlKV.Purge(key + "." + member)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil
	}
	return err
}

// SetMembers lists only the "<key>.*" subtree, so the cost scales with this
// set's own members, not the whole bucket.
func (n *NATS) SetMembers(_ context.Context, key string) ([]string, error) {
	watcher, err := n.ttlKV.WatchFiltered([]string{key + ".>"}, nats.IgnoreDeletes(), nats.MetaOnly())
	if errors.Is(err, nats.ErrNoKeysFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer watcher.Stop()

	prefix := key + "."
	out := make([]string, 0, 4)
	for entry := range watcher.Updates() {
		if entry == nil {
			break
		}
		out = append(out, strings.TrimPrefix(entry.Key(), prefix))
	}
	return out, nil
}

func (n *NATS) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	kv := n.plainKV
	if ttl > 0 {
		kv = n.ttlKV
	}
	_, err := kv.Put(key, value)
	return err
}

func (n *NATS) Get(_ context.Context, key string) ([]byte, error) {
	entry, err := n.plainKV.Get(key)
	if errors.Is(err, nats.ErrKeyNotFound) {
		entry, err = n.ttlKV.Get(key)
	}
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry.Value(), nil
}

func (n *NATS) Delete(_ context.Context, key string) error {
	if err := n.plainKV.Purge(key); err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return err
	}
	if err := n.ttlKV.Purge(key); err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return err
	}
	return nil
}
