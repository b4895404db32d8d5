package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pulse/internal/core"
	"github.com/dkeye/Pulse/internal/domain"
)

// DisconnectCoordinator handles the single "transport session closed" event
// and drives both teardown paths: presence accounting and voice-room
// removal. The two are independent; absence or failure of one never blocks
// the other. This covers the ungraceful case where no explicit leave or
// logout message ever arrived.
type DisconnectCoordinator struct {
	Sessions    *SessionTable
	Presence    *PresenceTracker
	Voice       *VoiceRoomRegistry
	Broadcaster core.Broadcaster
}

// OnSessionClosed tears down everything the session owned. identity may be
// nil: transports don't reliably attach one to close events, in which case
// the side table populated at connect time resolves it. An unresolvable
// session still gets its voice membership cleaned up, since the voice
// reverse index is keyed by session alone.
func (c *DisconnectCoordinator) OnSessionClosed(ctx context.Context, sid domain.SessionID, identity *domain.User) {
	user := identity
	if user == nil {
		if resolved, ok := c.Sessions.Resolve(sid); ok {
			user = resolved
		}
	}
	c.Sessions.Unbind(sid)

	if user != nil {
		c.Presence.Disconnect(ctx, user.ID, sid)
	} else {
		log.Warn().Str("module", "app.disconnect").Str("sid", string(sid)).Msg("session closed with no resolvable identity")
	}

	membership, remaining, removed := c.Voice.RemoveBySession(sid)
	if !removed {
		return
	}

	topic := core.VoiceTopic(membership.ChannelID)
	leave := core.VoiceEvent{Type: core.EventUserLeave, UserID: membership.UserID}
	if err := c.Broadcaster.PublishToTopic(ctx, topic, leave); err != nil {
		log.Warn().Str("module", "app.disconnect").Str("channel", string(membership.ChannelID)).Err(err).Msg("leave publish failed")
	}
	roster := core.VoiceEvent{Type: core.EventVoiceUsers, Users: remaining}
	if err := c.Broadcaster.PublishToTopic(ctx, topic, roster); err != nil {
		log.Warn().Str("module", "app.disconnect").Str("channel", string(membership.ChannelID)).Err(err).Msg("roster publish failed")
	}
}
