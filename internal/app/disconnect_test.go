package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Pulse/internal/core"
	"github.com/dkeye/Pulse/internal/domain"
	"github.com/dkeye/Pulse/internal/store"
)

func newTestCoordinator(t *testing.T) (*DisconnectCoordinator, *recordingBroadcaster, *fakeDirectory) {
	t.Helper()
	b := newRecordingBroadcaster()
	d := newFakeDirectory()
	tracker := NewPresenceTracker(store.NewLocal(), b, d, nil, 5*time.Minute, 10*time.Minute)
	c := &DisconnectCoordinator{
		Sessions:    NewSessionTable(),
		Presence:    tracker,
		Voice:       NewVoiceRoomRegistry(),
		Broadcaster: b,
	}
	return c, b, d
}

func TestSessionClosedResolvesViaSideTable(t *testing.T) {
	ctx := context.Background()
	c, _, d := newTestCoordinator(t)
	user := d.addUser("42", "marcel")

	c.Sessions.Bind("s1", user)
	c.Presence.Connect(ctx, "42", "s1")
	require.Equal(t, domain.StatusOnline, c.Presence.Status(ctx, "42"))

	// The transport attached no identity; the side table must cover it.
	c.OnSessionClosed(ctx, "s1", nil)

	assert.Equal(t, domain.StatusOffline, c.Presence.Status(ctx, "42"))
	_, ok := c.Sessions.Resolve("s1")
	assert.False(t, ok, "side table entry consumed")
}

func TestSessionClosedPrefersAttachedIdentity(t *testing.T) {
	ctx := context.Background()
	c, _, d := newTestCoordinator(t)
	user := d.addUser("42", "marcel")

	c.Presence.Connect(ctx, "42", "s1")
	c.OnSessionClosed(ctx, "s1", user)

	assert.Equal(t, domain.StatusOffline, c.Presence.Status(ctx, "42"))
}

func TestSessionClosedCleansVoiceWithoutIdentity(t *testing.T) {
	ctx := context.Background()
	c, b, _ := newTestCoordinator(t)

	// No side-table entry at all: presence can't be resolved, but the voice
	// reverse index is keyed by session and must still be consumed.
	c.Voice.Join("7", member("5"), "s1")
	c.OnSessionClosed(ctx, "s1", nil)

	assert.Empty(t, c.Voice.Snapshot("7"))

	events := b.topicEvents("/topic/voice/7")
	require.Len(t, events, 2)
	leave, ok := events[0].(core.VoiceEvent)
	require.True(t, ok)
	assert.Equal(t, core.EventUserLeave, leave.Type)
	assert.Equal(t, domain.UserID("5"), leave.UserID)
	roster, ok := events[1].(core.VoiceEvent)
	require.True(t, ok)
	assert.Equal(t, core.EventVoiceUsers, roster.Type)
	assert.Empty(t, roster.Users)
}

func TestSessionClosedTwice(t *testing.T) {
	ctx := context.Background()
	c, b, d := newTestCoordinator(t)
	user := d.addUser("42", "marcel")

	c.Sessions.Bind("s1", user)
	c.Presence.Connect(ctx, "42", "s1")
	c.Voice.Join("7", member("42"), "s1")

	c.OnSessionClosed(ctx, "s1", nil)
	before := len(b.topicEvents("/topic/voice/7"))

	// Replayed close event: all teardown already happened, nothing fires.
	c.OnSessionClosed(ctx, "s1", nil)

	assert.Len(t, b.topicEvents("/topic/voice/7"), before)
	assert.Equal(t, domain.StatusOffline, c.Presence.Status(ctx, "42"))
}

func TestVoiceCleanupSurvivesBroadcastFailure(t *testing.T) {
	ctx := context.Background()
	c, b, _ := newTestCoordinator(t)
	b.failTopic["/topic/voice/7"] = true

	c.Voice.Join("7", member("5"), "s1")
	c.OnSessionClosed(ctx, "s1", nil)

	assert.Empty(t, c.Voice.Snapshot("7"), "publish failure never rolls back the removal")
}
