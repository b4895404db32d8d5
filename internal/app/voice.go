package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pulse/internal/domain"
)

// VoiceRoomRegistry owns ephemeral voice-room membership: a forward map
// channel → user → state and a reverse session index for O(1) teardown when
// a transport session dies. Rooms exist only while they have members; the
// create-on-first-join and delete-on-last-leave transitions happen under one
// lock so concurrent joins and leaves on the same channel can neither lose a
// room nor leak an empty one.
//
// Nothing here survives a restart, which is the intended lifecycle: every
// connection dies with the process and members rejoin.
type VoiceRoomRegistry struct {
	mu        sync.RWMutex
	rooms     map[domain.ChannelID]map[domain.UserID]*domain.VoiceMemberState
	bySession map[domain.SessionID]domain.Membership
}

func NewVoiceRoomRegistry() *VoiceRoomRegistry {
	return &VoiceRoomRegistry{
		rooms:     make(map[domain.ChannelID]map[domain.UserID]*domain.VoiceMemberState),
		bySession: make(map[domain.SessionID]domain.Membership),
	}
}

// Join adds member to the channel's room, creating the room on first join.
// A member with the same user id is replaced in place, never duplicated;
// that is the reconnect path. A non-empty sessionID writes (or overwrites)
// the reverse index entry for disconnect cleanup. Returns the room's full
// member list.
func (r *VoiceRoomRegistry) Join(channelID domain.ChannelID, member *domain.VoiceMemberState, sessionID domain.SessionID) []*domain.VoiceMemberState {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[channelID]
	if !ok {
		room = make(map[domain.UserID]*domain.VoiceMemberState)
		r.rooms[channelID] = room
	}
	room[member.UserID] = member.Clone()
	if sessionID != "" {
		r.bySession[sessionID] = domain.Membership{ChannelID: channelID, UserID: member.UserID}
	}

	log.Info().Str("module", "app.voice").Str("channel", string(channelID)).Str("user", string(member.UserID)).Int("members", len(room)).Msg("member joined")
	return snapshotLocked(room)
}

// Leave removes the user from the channel's room, deleting the room when it
// empties. Leaving a room one is not in is a no-op, not an error. Returns
// the remaining member list.
func (r *VoiceRoomRegistry) Leave(channelID domain.ChannelID, userID domain.UserID) []*domain.VoiceMemberState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(channelID, userID)
}

func (r *VoiceRoomRegistry) leaveLocked(channelID domain.ChannelID, userID domain.UserID) []*domain.VoiceMemberState {
	room, ok := r.rooms[channelID]
	if !ok {
		return []*domain.VoiceMemberState{}
	}
	if _, present := room[userID]; present {
		delete(room, userID)
		log.Info().Str("module", "app.voice").Str("channel", string(channelID)).Str("user", string(userID)).Int("members", len(room)).Msg("member left")
	}
	if len(room) == 0 {
		delete(r.rooms, channelID)
		log.Debug().Str("module", "app.voice").Str("channel", string(channelID)).Msg("room emptied, deleted")
		return []*domain.VoiceMemberState{}
	}
	return snapshotLocked(room)
}

// RemoveBySession consumes the reverse-index entry for sessionID and leaves
// the corresponding room. The entry is deleted first, so a second call for
// the same session finds nothing and reports ok=false; the whole operation
// is idempotent by construction.
func (r *VoiceRoomRegistry) RemoveBySession(sessionID domain.SessionID) (domain.Membership, []*domain.VoiceMemberState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.bySession[sessionID]
	if !ok {
		return domain.Membership{}, nil, false
	}
	delete(r.bySession, sessionID)
	remaining := r.leaveLocked(m.ChannelID, m.UserID)
	log.Info().Str("module", "app.voice").Str("sid", string(sessionID)).Str("channel", string(m.ChannelID)).Str("user", string(m.UserID)).Msg("membership removed by session")
	return m, remaining, true
}

// GetMember returns a copy of the member's state, if present.
func (r *VoiceRoomRegistry) GetMember(channelID domain.ChannelID, userID domain.UserID) (*domain.VoiceMemberState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	member, ok := r.rooms[channelID][userID]
	if !ok {
		return nil, false
	}
	return member.Clone(), true
}

// Snapshot returns the room's member list; an empty slice when the room
// does not exist. Ordering is not significant.
func (r *VoiceRoomRegistry) Snapshot(channelID domain.ChannelID) []*domain.VoiceMemberState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[channelID]
	if !ok {
		return []*domain.VoiceMemberState{}
	}
	return snapshotLocked(room)
}

// StateUpdate carries the optional fields of an UpdateState call; nil means
// leave the field untouched.
type StateUpdate struct {
	MicOn    *bool
	CamOn    *bool
	ScreenOn *bool
	Speaking *bool
}

// UpdateState applies the provided fields to an existing member and returns
// the member's new state. If the member is absent (a state update racing a
// leave) it is a no-op reporting ok=false, never an error.
func (r *VoiceRoomRegistry) UpdateState(channelID domain.ChannelID, userID domain.UserID, upd StateUpdate) (*domain.VoiceMemberState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	member, ok := r.rooms[channelID][userID]
	if !ok {
		return nil, false
	}
	if upd.MicOn != nil {
		member.MicOn = *upd.MicOn
	}
	if upd.CamOn != nil {
		member.CamOn = *upd.CamOn
	}
	if upd.ScreenOn != nil {
		member.ScreenOn = *upd.ScreenOn
	}
	if upd.Speaking != nil {
		member.Speaking = *upd.Speaking
	}
	return member.Clone(), true
}

func snapshotLocked(room map[domain.UserID]*domain.VoiceMemberState) []*domain.VoiceMemberState {
	out := make([]*domain.VoiceMemberState, 0, len(room))
	for _, m := range room {
		out = append(out, m.Clone())
	}
	return out
}
