package core

import (
	"context"
	"errors"

	"github.com/dkeye/Pulse/internal/domain"
)

var (
	// ErrUserNotFound is returned by Directory lookups for unknown users.
	// Caller-initiated operations surface it; event-driven paths treat the
	// condition as a no-op instead.
	ErrUserNotFound = errors.New("user not found")
)

// Broadcaster is the outbound fan-out capability. Both operations are
// best-effort: a returned error means this one destination was not reached
// and callers log and continue, never roll back state.
// The underlying transport is an external collaborator.
type Broadcaster interface {
	// PublishToTopic delivers payload to every subscriber of topic.
	PublishToTopic(ctx context.Context, topic string, payload any) error
	// SendToUser delivers payload point-to-point to one user's destination.
	SendToUser(ctx context.Context, userID domain.UserID, destination string, payload any) error
}

// Directory exposes the slices of the persistent world this core consumes:
// resolvable identities, friend lists and server memberships. Everything
// behind it (CRUD, permissions, the friend graph itself) is out of scope.
type Directory interface {
	ResolveUser(ctx context.Context, id domain.UserID) (*domain.User, error)
	ResolveUsername(ctx context.Context, username string) (*domain.User, error)
	FriendIDs(ctx context.Context, id domain.UserID) ([]domain.UserID, error)
	ServerMembershipIDs(ctx context.Context, id domain.UserID) ([]domain.ServerID, error)
	ServerMemberIDs(ctx context.Context, id domain.ServerID) ([]domain.UserID, error)
}
