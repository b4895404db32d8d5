package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pulse/internal/domain"
)

// SessionTable is the session → identity side table. Transport disconnect
// notifications are not guaranteed to carry a resolved identity, so every
// connect records one here and the disconnect path falls back to it.
type SessionTable struct {
	mu    sync.RWMutex
	users map[domain.SessionID]*domain.User
}

func NewSessionTable() *SessionTable {
	return &SessionTable{users: make(map[domain.SessionID]*domain.User)}
}

// Bind associates a live session with its resolved identity. Rebinding the
// same session overwrites.
func (s *SessionTable) Bind(sid domain.SessionID, user *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[sid] = user
	log.Debug().Str("module", "app.sessions").Str("sid", string(sid)).Str("user", string(user.ID)).Msg("session bound")
}

// Resolve returns the identity bound to the session, if any.
func (s *SessionTable) Resolve(sid domain.SessionID) (*domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[sid]
	return u, ok
}

// Unbind drops the entry. Safe to call for unknown sessions.
func (s *SessionTable) Unbind(sid domain.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, sid)
}
