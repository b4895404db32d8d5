// Package directory provides an in-memory core.Directory implementation.
// The real social graph lives in the CRUD subsystem behind the interface;
// this stand-in serves dev runs and tests.
package directory

import (
	"context"
	"sync"

	"github.com/dkeye/Pulse/internal/core"
	"github.com/dkeye/Pulse/internal/domain"
)

type Memory struct {
	mu         sync.RWMutex
	byID       map[domain.UserID]*domain.User
	byUsername map[string]*domain.User
	friends    map[domain.UserID][]domain.UserID
	servers    map[domain.UserID][]domain.ServerID
	members    map[domain.ServerID][]domain.UserID
}

func NewMemory() *Memory {
	return &Memory{
		byID:       make(map[domain.UserID]*domain.User),
		byUsername: make(map[string]*domain.User),
		friends:    make(map[domain.UserID][]domain.UserID),
		servers:    make(map[domain.UserID][]domain.ServerID),
		members:    make(map[domain.ServerID][]domain.UserID),
	}
}

// AddUser registers an identity. Existing entries are replaced.
func (m *Memory) AddUser(u *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.byID[u.ID] = &cp
	m.byUsername[u.Username] = &cp
}

// SetFriends replaces the user's friend list.
func (m *Memory) SetFriends(id domain.UserID, friends []domain.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.friends[id] = append([]domain.UserID(nil), friends...)
}

// AddServerMember records membership in both directions.
func (m *Memory) AddServerMember(server domain.ServerID, user domain.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers[user] = append(m.servers[user], server)
	m.members[server] = append(m.members[server], user)
}

func (m *Memory) ResolveUser(_ context.Context, id domain.UserID) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) ResolveUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byUsername[username]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) FriendIDs(_ context.Context, id domain.UserID) ([]domain.UserID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.UserID(nil), m.friends[id]...), nil
}

func (m *Memory) ServerMembershipIDs(_ context.Context, id domain.UserID) ([]domain.ServerID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.ServerID(nil), m.servers[id]...), nil
}

func (m *Memory) ServerMemberIDs(_ context.Context, id domain.ServerID) ([]domain.UserID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.UserID(nil), m.members[id]...), nil
}
