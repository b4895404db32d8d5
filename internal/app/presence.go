package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pulse/internal/core"
	"github.com/dkeye/Pulse/internal/domain"
	"github.com/dkeye/Pulse/internal/metrics"
	"github.com/dkeye/Pulse/internal/store"
)

var ErrInvalidStatus = errors.New("invalid status")

const (
	sessionsKeyPrefix = "presence.sessions."
	activityKeyPrefix = "presence.activity."
	statusKeyPrefix   = "presence.status."
)

// PresenceTracker owns per-user availability: connection counts, manual
// status, activity timestamps and custom-status expiry. Session sets and
// activity timestamps go through the StateStore (so the shared backend's TTL
// can reap them after a crash); status records live in an in-memory table
// that doubles as the tracked-user index for the sweeps.
//
// Records are never hard-deleted, only reset to OFFLINE when abandoned.
type PresenceTracker struct {
	store       store.Store
	broadcaster core.Broadcaster
	directory   core.Directory
	mx          *metrics.Metrics

	sessionTTL time.Duration
	idleAfter  time.Duration
	now        func() time.Time

	mu        sync.Mutex
	presences map[domain.UserID]*domain.Presence
}

func NewPresenceTracker(st store.Store, b core.Broadcaster, d core.Directory, mx *metrics.Metrics, sessionTTL, idleAfter time.Duration) *PresenceTracker {
	return NewPresenceTrackerWithClock(st, b, d, mx, sessionTTL, idleAfter, func() time.Time { return time.Now().UTC() })
}

// NewPresenceTrackerWithClock injects the clock for time-dependent tests.
func NewPresenceTrackerWithClock(st store.Store, b core.Broadcaster, d core.Directory, mx *metrics.Metrics, sessionTTL, idleAfter time.Duration, now func() time.Time) *PresenceTracker {
	return &PresenceTracker{
		store:       st,
		broadcaster: b,
		directory:   d,
		mx:          mx,
		sessionTTL:  sessionTTL,
		idleAfter:   idleAfter,
		now:         now,
		presences:   make(map[domain.UserID]*domain.Presence),
	}
}

// Connect registers one live transport session for the user. Adding the same
// session twice has no extra effect. An OFFLINE user is promoted to ONLINE; a
// status chosen deliberately in the meantime (DND, INVISIBLE) is left alone.
// The decision reads only the user's own record under the lock, so any number
// of concurrent connects settle on the same state.
func (t *PresenceTracker) Connect(ctx context.Context, userID domain.UserID, sessionID domain.SessionID) {
	if err := t.store.SetAdd(ctx, sessionsKey(userID), string(sessionID)); err != nil {
		log.Error().Str("module", "app.presence").Str("user", string(userID)).Err(err).Msg("session set add failed")
	}
	t.touchActivity(ctx, userID)
	t.ensureSeeded(ctx, userID)

	t.mu.Lock()
	p := t.ensureLocked(userID)
	p.LastActivityAt = t.now()
	old := p.ManualStatus
	if p.ManualStatus == domain.StatusOffline {
		p.ManualStatus = domain.StatusOnline
	}
	changed := p.ManualStatus != old
	snap := p.Clone()
	t.mu.Unlock()

	if t.mx != nil {
		t.mx.Connects.Add(ctx, 1)
	}
	log.Debug().Str("module", "app.presence").Str("user", string(userID)).Str("sid", string(sessionID)).Msg("session connected")
	if changed {
		t.persistStatus(ctx, snap)
		t.broadcastChange(ctx, snap, old)
	}
}

// Disconnect removes one session. When the last session is gone the user
// drops to OFFLINE unless they are INVISIBLE. Safe to call for sessions that
// were already removed.
func (t *PresenceTracker) Disconnect(ctx context.Context, userID domain.UserID, sessionID domain.SessionID) {
	if err := t.store.SetRemove(ctx, sessionsKey(userID), string(sessionID)); err != nil {
		log.Error().Str("module", "app.presence").Str("user", string(userID)).Err(err).Msg("session set remove failed")
	}
	sessions, err := t.store.SetMembers(ctx, sessionsKey(userID))
	if err != nil {
		log.Error().Str("module", "app.presence").Str("user", string(userID)).Err(err).Msg("session set read failed")
	}
	if len(sessions) > 0 {
		log.Debug().Str("module", "app.presence").Str("user", string(userID)).Int("sessions", len(sessions)).Msg("session closed, others remain")
		return
	}

	// Last session gone; the activity key has nothing left to witness.
	if err := t.store.Delete(ctx, activityKey(userID)); err != nil {
		log.Warn().Str("module", "app.presence").Str("user", string(userID)).Err(err).Msg("activity key delete failed")
	}

	t.mu.Lock()
	p := t.ensureLocked(userID)
	old := p.ManualStatus
	if p.ManualStatus != domain.StatusInvisible {
		p.ManualStatus = domain.StatusOffline
	}
	changed := p.ManualStatus != old
	snap := p.Clone()
	t.mu.Unlock()

	if t.mx != nil {
		t.mx.Disconnects.Add(ctx, 1)
	}
	log.Debug().Str("module", "app.presence").Str("user", string(userID)).Str("sid", string(sessionID)).Msg("last session closed")
	if changed {
		t.persistStatus(ctx, snap)
		t.broadcastChange(ctx, snap, old)
	}
}

// SetStatus applies a deliberate, user-initiated status change and always
// broadcasts, even when the value is unchanged, so clients refresh custom
// status display. Empty custom fields clear any stored custom status;
// durationMinutes <= 0 means the custom status never expires.
func (t *PresenceTracker) SetStatus(ctx context.Context, userID domain.UserID, status domain.Status, text, emoji string, durationMinutes int) error {
	if !domain.ValidStatus(status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	t.mu.Lock()
	p := t.ensureLocked(userID)
	old := p.ManualStatus
	p.ManualStatus = status
	if text != "" || emoji != "" {
		p.CustomStatusText = text
		p.CustomStatusEmoji = emoji
		if durationMinutes > 0 {
			p.CustomStatusUntil = t.now().Add(time.Duration(durationMinutes) * time.Minute)
		} else {
			p.CustomStatusUntil = time.Time{}
		}
	} else {
		p.CustomStatusText = ""
		p.CustomStatusEmoji = ""
		p.CustomStatusUntil = time.Time{}
	}
	snap := p.Clone()
	t.mu.Unlock()

	if t.mx != nil {
		t.mx.StatusUpdates.Add(ctx, 1)
	}
	log.Info().Str("module", "app.presence").Str("user", string(userID)).Str("status", string(status)).Msg("status set")
	t.persistStatus(ctx, snap)
	t.broadcastChange(ctx, snap, old)
	return nil
}

// Heartbeat refreshes the user's activity timestamp and wakes an IDLE user
// back to ONLINE.
func (t *PresenceTracker) Heartbeat(ctx context.Context, userID domain.UserID) {
	t.touchActivity(ctx, userID)

	t.mu.Lock()
	p := t.ensureLocked(userID)
	p.LastActivityAt = t.now()
	old := p.ManualStatus
	if p.ManualStatus == domain.StatusIdle {
		p.ManualStatus = domain.StatusOnline
	}
	changed := p.ManualStatus != old
	snap := p.Clone()
	t.mu.Unlock()

	if t.mx != nil {
		t.mx.Heartbeats.Add(ctx, 1)
	}
	if changed {
		t.persistStatus(ctx, snap)
		t.broadcastChange(ctx, snap, old)
	}
}

// IdleSweep moves every ONLINE user whose last activity is older than the
// idle threshold to IDLE. It scans only users this tracker has seen, never
// the whole user population, and is safe to run concurrently with any other
// operation; the worst overlap costs a redundant broadcast.
func (t *PresenceTracker) IdleSweep(ctx context.Context) {
	now := t.now()

	t.mu.Lock()
	candidates := make([]domain.UserID, 0)
	for id, p := range t.presences {
		if p.ManualStatus == domain.StatusOnline && now.Sub(p.LastActivityAt) > t.idleAfter {
			candidates = append(candidates, id)
		}
	}
	t.mu.Unlock()

	for _, id := range candidates {
		// Another instance may have refreshed activity through the shared
		// store since our in-memory timestamp.
		if last, ok := t.storedActivity(ctx, id); ok && now.Sub(last) <= t.idleAfter {
			continue
		}

		t.mu.Lock()
		p := t.ensureLocked(id)
		if p.ManualStatus != domain.StatusOnline {
			t.mu.Unlock()
			continue
		}
		old := p.ManualStatus
		p.ManualStatus = domain.StatusIdle
		snap := p.Clone()
		t.mu.Unlock()

		if t.mx != nil {
			t.mx.IdleSweeps.Add(ctx, 1)
		}
		log.Debug().Str("module", "app.presence").Str("user", string(id)).Msg("idle sweep transition")
		t.persistStatus(ctx, snap)
		t.broadcastChange(ctx, snap, old)
	}
}

// ExpireCustomStatuses clears custom statuses whose expiry has passed. The
// status value itself is untouched but the change is still announced so
// subscribers refresh their display.
func (t *PresenceTracker) ExpireCustomStatuses(ctx context.Context) {
	now := t.now()

	t.mu.Lock()
	expired := make([]*domain.Presence, 0)
	for _, p := range t.presences {
		if p.CustomStatusExpired(now) {
			p.CustomStatusText = ""
			p.CustomStatusEmoji = ""
			p.CustomStatusUntil = time.Time{}
			expired = append(expired, p.Clone())
		}
	}
	t.mu.Unlock()

	for _, snap := range expired {
		log.Debug().Str("module", "app.presence").Str("user", string(snap.UserID)).Msg("custom status expired")
		t.broadcastChange(ctx, snap, snap.ManualStatus)
	}
}

// Status reports the user's availability as seen by other users: INVISIBLE
// is masked as OFFLINE. Users this process has never tracked are looked up
// in the store (another instance may own them) and default to OFFLINE.
func (t *PresenceTracker) Status(ctx context.Context, userID domain.UserID) domain.Status {
	t.mu.Lock()
	p, ok := t.presences[userID]
	var s domain.Status
	if ok {
		s = p.ManualStatus
	}
	t.mu.Unlock()

	if !ok {
		s = t.storedStatus(ctx, userID)
	}
	return s.Masked()
}

// StatusMany resolves a batch of users in one call.
func (t *PresenceTracker) StatusMany(ctx context.Context, userIDs []domain.UserID) map[domain.UserID]domain.Status {
	out := make(map[domain.UserID]domain.Status, len(userIDs))
	for _, id := range userIDs {
		out[id] = t.Status(ctx, id)
	}
	return out
}

// ensureSeeded creates the presence record from the persisted status when
// this instance has never tracked the user, so a user whose record lives on
// another instance does not restart from OFFLINE here. The store read happens
// outside the mutex; the second existence check closes the gap.
func (t *PresenceTracker) ensureSeeded(ctx context.Context, userID domain.UserID) {
	t.mu.Lock()
	_, tracked := t.presences[userID]
	t.mu.Unlock()
	if tracked {
		return
	}

	seed := t.storedStatus(ctx, userID)
	t.mu.Lock()
	if _, ok := t.presences[userID]; !ok {
		t.presences[userID] = &domain.Presence{
			UserID:         userID,
			ManualStatus:   seed,
			LastActivityAt: t.now(),
		}
	}
	t.mu.Unlock()
}

// ensureLocked lazily creates the presence record. Callers hold t.mu.
func (t *PresenceTracker) ensureLocked(userID domain.UserID) *domain.Presence {
	p, ok := t.presences[userID]
	if !ok {
		p = &domain.Presence{
			UserID:         userID,
			ManualStatus:   domain.StatusOffline,
			LastActivityAt: t.now(),
		}
		t.presences[userID] = p
	}
	return p
}

func (t *PresenceTracker) touchActivity(ctx context.Context, userID domain.UserID) {
	ts := strconv.FormatInt(t.now().UnixMilli(), 10)
	if err := t.store.Put(ctx, activityKey(userID), []byte(ts), t.sessionTTL); err != nil {
		log.Warn().Str("module", "app.presence").Str("user", string(userID)).Err(err).Msg("activity write failed")
	}
}

func (t *PresenceTracker) storedActivity(ctx context.Context, userID domain.UserID) (time.Time, bool) {
	raw, err := t.store.Get(ctx, activityKey(userID))
	if err != nil {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

func (t *PresenceTracker) persistStatus(ctx context.Context, p *domain.Presence) {
	if err := t.store.Put(ctx, statusKey(p.UserID), []byte(p.ManualStatus), 0); err != nil {
		log.Warn().Str("module", "app.presence").Str("user", string(p.UserID)).Err(err).Msg("status write failed")
	}
}

func (t *PresenceTracker) storedStatus(ctx context.Context, userID domain.UserID) domain.Status {
	raw, err := t.store.Get(ctx, statusKey(userID))
	if err != nil {
		return domain.StatusOffline
	}
	s := domain.Status(raw)
	if !domain.ValidStatus(s) {
		return domain.StatusOffline
	}
	return s
}

// broadcastChange fans the transition out to every friend (point-to-point)
// and every server the user belongs to (topic). Destinations are attempted
// independently: one failure never blocks the rest and never reaches the
// caller of the state change.
func (t *PresenceTracker) broadcastChange(ctx context.Context, p *domain.Presence, old domain.Status) {
	if t.broadcaster == nil {
		return
	}

	username := string(p.UserID)
	if t.directory != nil {
		if u, err := t.directory.ResolveUser(ctx, p.UserID); err == nil {
			username = u.Username
		} else {
			log.Warn().Str("module", "app.presence").Str("user", string(p.UserID)).Err(err).Msg("identity resolve failed for broadcast")
		}
	}

	evt := core.PresenceEvent{
		UserID:            p.UserID,
		Username:          username,
		OldStatus:         old,
		NewStatus:         p.ManualStatus,
		CustomStatus:      p.CustomStatusText,
		CustomStatusEmoji: p.CustomStatusEmoji,
		Timestamp:         t.now(),
	}

	if t.directory != nil {
		friends, err := t.directory.FriendIDs(ctx, p.UserID)
		if err != nil {
			log.Warn().Str("module", "app.presence").Str("user", string(p.UserID)).Err(err).Msg("friend list fetch failed")
		}
		for _, friend := range friends {
			if err := t.broadcaster.SendToUser(ctx, friend, core.QueuePresence, evt); err != nil {
				log.Warn().Str("module", "app.presence").Str("user", string(p.UserID)).Str("friend", string(friend)).Err(err).Msg("presence send failed")
			}
		}

		servers, err := t.directory.ServerMembershipIDs(ctx, p.UserID)
		if err != nil {
			log.Warn().Str("module", "app.presence").Str("user", string(p.UserID)).Err(err).Msg("server list fetch failed")
		}
		for _, server := range servers {
			if err := t.broadcaster.PublishToTopic(ctx, core.ServerPresenceTopic(server), evt); err != nil {
				log.Warn().Str("module", "app.presence").Str("user", string(p.UserID)).Str("server", string(server)).Err(err).Msg("presence publish failed")
			}
		}
	}
}

func sessionsKey(id domain.UserID) string { return sessionsKeyPrefix + string(id) }
func activityKey(id domain.UserID) string { return activityKeyPrefix + string(id) }
func statusKey(id domain.UserID) string   { return statusKeyPrefix + string(id) }
