// Package ws is the inbound event transport: one WebSocket per client tab,
// an envelope protocol dispatched by type, and teardown through the
// disconnect coordinator when the read pump exits for any reason.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pulse/internal/app"
	"github.com/dkeye/Pulse/internal/core"
	"github.com/dkeye/Pulse/internal/domain"
	"github.com/dkeye/Pulse/internal/metrics"
)

var ErrBackpressure = errors.New("client send buffer full")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	Presence    *app.PresenceTracker
	Voice       *app.VoiceRoomRegistry
	Relay       *app.SignalingRelay
	Sessions    *app.SessionTable
	Coordinator *app.DisconnectCoordinator
	Directory   core.Directory
	Broadcaster core.Broadcaster
	Mx          *metrics.Metrics

	ReadLimit  int64
	PingPeriod time.Duration
}

type wsConn struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *wsConn) TrySend(data []byte) error {
	select {
	case c.send <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *wsConn) Close() {
	c.once.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
}

// HandleWS upgrades the connection and starts the pumps. The user must be
// resolvable up front: this is an authenticated, caller-initiated path, so
// an unknown identity fails loudly with a 4xx instead of a silent no-op.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	userID := domain.UserID(c.Query("userId"))
	user, err := ctl.Directory.ResolveUser(c.Request.Context(), userID)
	if err != nil {
		log.Warn().Str("module", "adapters.ws").Str("user", string(userID)).Err(err).Msg("identity resolve failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}

	// One session per socket: a user with three tabs holds three sessions.
	sid := domain.SessionID(uuid.NewString())

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Str("module", "adapters.ws").Err(err).Msg("upgrade failed")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := &wsConn{conn: ws, send: make(chan []byte, 32)}

	ctl.Sessions.Bind(sid, user)
	ctl.Presence.Connect(c.Request.Context(), user.ID, sid)
	log.Info().Str("module", "adapters.ws").Str("sid", string(sid)).Str("user", string(user.ID)).Msg("session opened")

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, user, conn)
}

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	ping := time.NewTicker(ctl.PingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Str("module", "adapters.ws").Err(err).Msg("write failed")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, sid domain.SessionID, user *domain.User, c *wsConn) {
	defer func() {
		// Runs on every exit path, including ungraceful drops where no
		// leave or logout message ever arrived.
		ctl.Coordinator.OnSessionClosed(context.WithoutCancel(ctx), sid, user)
		c.Close()
		log.Info().Str("module", "adapters.ws").Str("sid", string(sid)).Msg("session closed")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Str("module", "adapters.ws").Str("sid", string(sid)).Err(err).Msg("read ended")
				return
			}
			ctl.dispatch(ctx, sid, user, c, data)
		}
	}
}

// envelope is the inbound message union; only the fields for the given type
// are populated.
type envelope struct {
	Type string `json:"type"`

	// status
	Status                      string `json:"status,omitempty"`
	CustomStatus                string `json:"customStatus,omitempty"`
	CustomStatusEmoji           string `json:"customStatusEmoji,omitempty"`
	CustomStatusDurationMinutes int    `json:"customStatusDurationMinutes,omitempty"`

	// voice; clients also send a peerId, which is routing metadata for the
	// peers and deliberately not parsed here.
	ChannelID domain.ChannelID `json:"channelId,omitempty"`
	MicOn     *bool            `json:"micOn,omitempty"`
	CamOn     *bool            `json:"camOn,omitempty"`
	ScreenOn  *bool            `json:"screenOn,omitempty"`
	Speaking  *bool            `json:"speaking,omitempty"`

	// signaling
	ToUserID  domain.UserID   `json:"toUserId,omitempty"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

func (ctl *Controller) dispatch(ctx context.Context, sid domain.SessionID, user *domain.User, c *wsConn, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Debug().Str("module", "adapters.ws").Str("sid", string(sid)).Err(err).Msg("bad json")
		return
	}

	switch env.Type {
	case "heartbeat":
		ctl.Presence.Heartbeat(ctx, user.ID)
	case "status":
		if err := ctl.Presence.SetStatus(ctx, user.ID, domain.Status(env.Status), env.CustomStatus, env.CustomStatusEmoji, env.CustomStatusDurationMinutes); err != nil {
			ctl.sendJSON(c, gin.H{"type": "ERROR", "error": err.Error()})
		}
	case "voice.join":
		ctl.handleVoiceJoin(ctx, sid, user, c, env)
	case "voice.leave":
		ctl.handleVoiceLeave(ctx, user, env)
	case "voice.state":
		ctl.handleVoiceState(ctx, user, env)
	case "offer":
		ctl.Relay.Relay(ctx, core.SignalOffer, env.ChannelID, user.ID, env.ToUserID, env.SDP)
	case "answer":
		ctl.Relay.Relay(ctx, core.SignalAnswer, env.ChannelID, user.ID, env.ToUserID, env.SDP)
	case "ice":
		ctl.Relay.Relay(ctx, core.SignalICE, env.ChannelID, user.ID, env.ToUserID, env.Candidate)
	default:
		log.Debug().Str("module", "adapters.ws").Str("type", env.Type).Msg("unknown message type")
	}
}

func (ctl *Controller) handleVoiceJoin(ctx context.Context, sid domain.SessionID, user *domain.User, c *wsConn, env envelope) {
	member := domain.NewVoiceMember(user)
	members := ctl.Voice.Join(env.ChannelID, member, sid)
	if ctl.Mx != nil {
		ctl.Mx.VoiceJoins.Add(ctx, 1)
	}

	topic := core.VoiceTopic(env.ChannelID)
	ctl.publish(ctx, topic, core.VoiceEvent{Type: core.EventUserJoin, User: member})
	ctl.publish(ctx, topic, core.VoiceEvent{Type: core.EventVoiceUsers, Users: members})

	// The joiner also gets the roster directly so it renders before the
	// topic subscription settles.
	ctl.sendJSON(c, core.VoiceEvent{Type: core.EventVoiceUsers, Users: members})
}

func (ctl *Controller) handleVoiceLeave(ctx context.Context, user *domain.User, env envelope) {
	members := ctl.Voice.Leave(env.ChannelID, user.ID)
	if ctl.Mx != nil {
		ctl.Mx.VoiceLeaves.Add(ctx, 1)
	}
	topic := core.VoiceTopic(env.ChannelID)
	ctl.publish(ctx, topic, core.VoiceEvent{Type: core.EventUserLeave, UserID: user.ID})
	ctl.publish(ctx, topic, core.VoiceEvent{Type: core.EventVoiceUsers, Users: members})
}

func (ctl *Controller) handleVoiceState(ctx context.Context, user *domain.User, env envelope) {
	state, ok := ctl.Voice.UpdateState(env.ChannelID, user.ID, app.StateUpdate{
		MicOn:    env.MicOn,
		CamOn:    env.CamOn,
		ScreenOn: env.ScreenOn,
		Speaking: env.Speaking,
	})
	if !ok {
		// Update raced a leave; nothing to announce.
		return
	}
	ctl.publish(ctx, core.VoiceTopic(env.ChannelID), core.VoiceStateEvent{
		Type:     core.EventVoiceStateUpdate,
		UserID:   state.UserID,
		MicOn:    state.MicOn,
		CamOn:    state.CamOn,
		ScreenOn: state.ScreenOn,
		Speaking: state.Speaking,
	})
}

func (ctl *Controller) publish(ctx context.Context, topic string, payload any) {
	if err := ctl.Broadcaster.PublishToTopic(ctx, topic, payload); err != nil {
		log.Warn().Str("module", "adapters.ws").Str("topic", topic).Err(err).Msg("publish failed")
	}
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Warn().Str("module", "adapters.ws").Err(err).Msg("marshal failed")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Debug().Str("module", "adapters.ws").Err(err).Msg("client send dropped")
	}
}
