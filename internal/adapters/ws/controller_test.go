package ws

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Pulse/internal/app"
	"github.com/dkeye/Pulse/internal/core"
	"github.com/dkeye/Pulse/internal/domain"
)

type capturingBroadcaster struct {
	topics   []string
	payloads []any
}

func (b *capturingBroadcaster) PublishToTopic(_ context.Context, topic string, payload any) error {
	b.topics = append(b.topics, topic)
	b.payloads = append(b.payloads, payload)
	return nil
}

func (b *capturingBroadcaster) SendToUser(context.Context, domain.UserID, string, any) error {
	return nil
}

func TestDispatchVoiceJoin(t *testing.T) {
	ctx := context.Background()
	b := &capturingBroadcaster{}
	ctl := &Controller{
		Voice:       app.NewVoiceRoomRegistry(),
		Broadcaster: b,
	}
	user := &domain.User{ID: "5", Username: "nina"}
	conn := &wsConn{send: make(chan []byte, 4)}

	// The peerId is consumed by the peers, not the server; it must not
	// break the join.
	msg := []byte(`{"type":"voice.join","channelId":"7","peerId":"pc-1"}`)
	ctl.dispatch(ctx, "s1", user, conn, msg)

	require.Len(t, ctl.Voice.Snapshot("7"), 1)
	require.Equal(t, []string{"/topic/voice/7", "/topic/voice/7"}, b.topics)
	join, ok := b.payloads[0].(core.VoiceEvent)
	require.True(t, ok)
	assert.Equal(t, core.EventUserJoin, join.Type)
	assert.Equal(t, domain.UserID("5"), join.User.UserID)

	select {
	case data := <-conn.send:
		assert.Contains(t, string(data), core.EventVoiceUsers, "joiner gets the roster on its own socket")
	default:
		t.Fatal("joiner did not receive the roster")
	}
}

func TestDispatchVoiceState(t *testing.T) {
	ctx := context.Background()
	b := &capturingBroadcaster{}
	ctl := &Controller{
		Voice:       app.NewVoiceRoomRegistry(),
		Broadcaster: b,
	}
	user := &domain.User{ID: "5", Username: "nina"}
	conn := &wsConn{send: make(chan []byte, 4)}

	ctl.dispatch(ctx, "s1", user, conn, []byte(`{"type":"voice.join","channelId":"7"}`))
	ctl.dispatch(ctx, "s1", user, conn, []byte(`{"type":"voice.state","channelId":"7","micOn":false,"speaking":true}`))

	last := b.payloads[len(b.payloads)-1]
	evt, ok := last.(core.VoiceStateEvent)
	require.True(t, ok)
	assert.Equal(t, core.EventVoiceStateUpdate, evt.Type)
	assert.False(t, evt.MicOn)
	assert.True(t, evt.Speaking)
}
