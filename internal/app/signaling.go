package app

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pulse/internal/core"
	"github.com/dkeye/Pulse/internal/domain"
	"github.com/dkeye/Pulse/internal/metrics"
)

// SignalingRelay republishes call-setup payloads (offer/answer/ICE) to the
// room's signaling topic. It is stateless and deliberately trusting: no
// membership check on the recipient, no persistence, no acknowledgement.
// The server routes WebRTC negotiation content, it does not mediate it.
type SignalingRelay struct {
	broadcaster core.Broadcaster
	mx          *metrics.Metrics
}

func NewSignalingRelay(b core.Broadcaster, mx *metrics.Metrics) *SignalingRelay {
	return &SignalingRelay{broadcaster: b, mx: mx}
}

// Relay publishes the payload verbatim to /topic/voice/{channel}/signal.
// A publish failure is logged and swallowed; signaling is advisory and the
// peers retry negotiation on their own.
func (r *SignalingRelay) Relay(ctx context.Context, kind string, channelID domain.ChannelID, from, to domain.UserID, payload json.RawMessage) {
	evt := core.SignalEvent{
		Type:       kind,
		ChannelID:  channelID,
		FromUserID: from,
		ToUserID:   to,
		Payload:    payload,
	}
	if err := r.broadcaster.PublishToTopic(ctx, core.VoiceSignalTopic(channelID), evt); err != nil {
		log.Warn().Str("module", "app.signaling").Str("channel", string(channelID)).Str("kind", kind).Err(err).Msg("signal publish failed")
		return
	}
	if r.mx != nil {
		r.mx.Signals.Add(ctx, 1)
	}
	log.Debug().Str("module", "app.signaling").Str("channel", string(channelID)).Str("kind", kind).Str("from", string(from)).Str("to", string(to)).Msg("signal relayed")
}
