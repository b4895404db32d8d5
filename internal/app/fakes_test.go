package app

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/dkeye/Pulse/internal/core"
	"github.com/dkeye/Pulse/internal/domain"
)

// recordedPublish captures one fan-out attempt for assertions.
type recordedPublish struct {
	Topic   string
	UserID  domain.UserID
	Dest    string
	Payload any
}

// recordingBroadcaster collects every publish and can be told to fail
// specific destinations, to verify that one failing destination never
// blocks the rest.
type recordingBroadcaster struct {
	mu        sync.Mutex
	published []recordedPublish
	sent      []recordedPublish
	failTopic map[string]bool
	failUser  map[domain.UserID]bool
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{
		failTopic: make(map[string]bool),
		failUser:  make(map[domain.UserID]bool),
	}
}

func (b *recordingBroadcaster) PublishToTopic(_ context.Context, topic string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failTopic[topic] {
		return errors.New("topic unreachable")
	}
	b.published = append(b.published, recordedPublish{Topic: topic, Payload: payload})
	return nil
}

func (b *recordingBroadcaster) SendToUser(_ context.Context, userID domain.UserID, dest string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failUser[userID] {
		return errors.New("user unreachable")
	}
	b.sent = append(b.sent, recordedPublish{UserID: userID, Dest: dest, Payload: payload})
	return nil
}

func (b *recordingBroadcaster) topicEvents(topic string) []any {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []any
	for _, p := range b.published {
		if p.Topic == topic {
			out = append(out, p.Payload)
		}
	}
	return out
}

func (b *recordingBroadcaster) sentTo(userID domain.UserID) []any {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []any
	for _, p := range b.sent {
		if p.UserID == userID {
			out = append(out, p.Payload)
		}
	}
	return out
}

// fakeDirectory is a static social graph.
type fakeDirectory struct {
	users   map[domain.UserID]*domain.User
	friends map[domain.UserID][]domain.UserID
	servers map[domain.UserID][]domain.ServerID
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		users:   make(map[domain.UserID]*domain.User),
		friends: make(map[domain.UserID][]domain.UserID),
		servers: make(map[domain.UserID][]domain.ServerID),
	}
}

func (d *fakeDirectory) addUser(id domain.UserID, username string) *domain.User {
	u := &domain.User{ID: id, Username: username}
	d.users[id] = u
	return u
}

func (d *fakeDirectory) ResolveUser(_ context.Context, id domain.UserID) (*domain.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	return u, nil
}

func (d *fakeDirectory) ResolveUsername(_ context.Context, username string) (*domain.User, error) {
	for _, u := range d.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, core.ErrUserNotFound
}

func (d *fakeDirectory) FriendIDs(_ context.Context, id domain.UserID) ([]domain.UserID, error) {
	return d.friends[id], nil
}

func (d *fakeDirectory) ServerMembershipIDs(_ context.Context, id domain.UserID) ([]domain.ServerID, error) {
	return d.servers[id], nil
}

func (d *fakeDirectory) ServerMemberIDs(_ context.Context, _ domain.ServerID) ([]domain.UserID, error) {
	return nil, nil
}

// fakeClock is a manually advanced clock for sweep tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// timestampMillis encodes a time the way the tracker stores activity keys.
func timestampMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
