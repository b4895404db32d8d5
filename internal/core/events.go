package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dkeye/Pulse/internal/domain"
)

// Destination names are part of the wire contract with existing clients and
// must stay bit-exact.
const (
	QueuePresence = "/queue/presence"
)

func VoiceTopic(ch domain.ChannelID) string {
	return fmt.Sprintf("/topic/voice/%s", ch)
}

func VoiceSignalTopic(ch domain.ChannelID) string {
	return fmt.Sprintf("/topic/voice/%s/signal", ch)
}

func ServerPresenceTopic(sid domain.ServerID) string {
	return fmt.Sprintf("/topic/server.%s.presence", sid)
}

// Voice room event types.
const (
	EventUserJoin         = "USER_JOIN"
	EventUserLeave        = "USER_LEAVE"
	EventVoiceUsers       = "VOICE_USERS"
	EventVoiceStateUpdate = "VOICE_STATE_UPDATE"
)

// Signal kinds relayed between peers.
const (
	SignalOffer  = "OFFER"
	SignalAnswer = "ANSWER"
	SignalICE    = "ICE"
)

// VoiceEvent is the room-wide envelope published to /topic/voice/{channel}.
// Exactly one of User, UserID, Users or State is set depending on Type.
type VoiceEvent struct {
	Type   string                     `json:"type"`
	User   *domain.VoiceMemberState   `json:"user,omitempty"`
	UserID domain.UserID              `json:"userId,omitempty"`
	Users  []*domain.VoiceMemberState `json:"users,omitempty"`
	State  *domain.VoiceMemberState   `json:"state,omitempty"`
}

// VoiceStateEvent is published when a member's in-room flags change. Flat
// fields, matching what clients already parse.
type VoiceStateEvent struct {
	Type     string        `json:"type"`
	UserID   domain.UserID `json:"userId"`
	MicOn    bool          `json:"micOn"`
	CamOn    bool          `json:"camOn"`
	ScreenOn bool          `json:"screenOn"`
	Speaking bool          `json:"speaking"`
}

// SignalEvent is the relayed call-setup envelope. Payload is passed through
// verbatim: the server routes negotiation content, it never inspects it.
type SignalEvent struct {
	Type       string           `json:"type"`
	ChannelID  domain.ChannelID `json:"channelId"`
	FromUserID domain.UserID    `json:"fromUserId"`
	ToUserID   domain.UserID    `json:"toUserId"`
	Payload    json.RawMessage  `json:"payload"`
}

// PresenceEvent announces a status transition to friends and servers.
type PresenceEvent struct {
	UserID            domain.UserID `json:"userId"`
	Username          string        `json:"username"`
	OldStatus         domain.Status `json:"oldStatus"`
	NewStatus         domain.Status `json:"newStatus"`
	CustomStatus      string        `json:"customStatus,omitempty"`
	CustomStatusEmoji string        `json:"customStatusEmoji,omitempty"`
	Timestamp         time.Time     `json:"timestamp"`
}
