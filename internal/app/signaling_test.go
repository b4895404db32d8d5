package app

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Pulse/internal/core"
)

func TestRelayPublishesVerbatim(t *testing.T) {
	ctx := context.Background()
	b := newRecordingBroadcaster()
	relay := NewSignalingRelay(b, nil)

	sdp := json.RawMessage(`"v=0\r\no=- 46117 2 IN IP4 127.0.0.1"`)
	relay.Relay(ctx, core.SignalOffer, "7", "5", "9", sdp)

	events := b.topicEvents("/topic/voice/7/signal")
	require.Len(t, events, 1, "exactly one message on the signaling topic")

	evt, ok := events[0].(core.SignalEvent)
	require.True(t, ok)
	assert.Equal(t, core.SignalOffer, evt.Type)
	assert.Equal(t, sdp, evt.Payload, "payload passes through untouched")
	assert.Equal(t, "7", string(evt.ChannelID))
	assert.Equal(t, "5", string(evt.FromUserID))
	assert.Equal(t, "9", string(evt.ToUserID))
}

func TestRelayIgnoresRoomMembership(t *testing.T) {
	ctx := context.Background()
	b := newRecordingBroadcaster()
	relay := NewSignalingRelay(b, nil)

	// User 9 is in no room anywhere; the relay does not care.
	relay.Relay(ctx, core.SignalICE, "7", "5", "9", json.RawMessage(`{"candidate":"..."}`))
	assert.Len(t, b.topicEvents("/topic/voice/7/signal"), 1)
}

func TestRelaySwallowsPublishFailure(t *testing.T) {
	ctx := context.Background()
	b := newRecordingBroadcaster()
	b.failTopic["/topic/voice/7/signal"] = true
	relay := NewSignalingRelay(b, nil)

	// Must not panic or surface an error; signaling is advisory.
	relay.Relay(ctx, core.SignalAnswer, "7", "5", "9", json.RawMessage(`"sdp"`))
}
