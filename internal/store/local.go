package store

import (
	"context"
	"sync"
	"time"
)

// Local is the in-process backend: plain maps under a RWMutex, no expiry.
// If the process dies without emitting disconnect events, entries stay until
// restart; single-instance deployments accept that.
type Local struct {
	mu     sync.RWMutex
	values map[string][]byte
	sets   map[string]map[string]struct{}
}

func NewLocal() *Local {
	return &Local{
		values: make(map[string][]byte),
		sets:   make(map[string]map[string]struct{}),
	}
}

func (l *Local) SetAdd(_ context.Context, key, member string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sets[key] == nil {
		l.sets[key] = make(map[string]struct{})
	}
	l.sets[key][member] = struct{}{}
	return nil
}

func (l *Local) SetRemove(_ context.Context, key, member string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if members, ok := l.sets[key]; ok {
		delete(members, member)
		if len(members) == 0 {
			delete(l.sets, key)
		}
	}
	return nil
}

func (l *Local) SetMembers(_ context.Context, key string) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	members := l.sets[key]
	out := make([]string, 0, len(members))
	for m := range members {
		out = append(out, m)
	}
	return out, nil
}

// Put stores a copy of value. The ttl is ignored: the local backend has no
// expiry mechanism.
func (l *Local) Put(_ context.Context, key string, value []byte, _ time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.values[key] = stored
	return nil
}

// Get returns a copy of the value to prevent external modification.
func (l *Local) Get(_ context.Context, key string) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	value, ok := l.values[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (l *Local) Delete(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.values, key)
	delete(l.sets, key)
	return nil
}
