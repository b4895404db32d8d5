package domain

import "time"

// Status is a user's externally visible availability state.
type Status string

const (
	StatusOnline       Status = "ONLINE"
	StatusIdle         Status = "IDLE"
	StatusDoNotDisturb Status = "DO_NOT_DISTURB"
	StatusInvisible    Status = "INVISIBLE"
	StatusOffline      Status = "OFFLINE"
)

// ValidStatus reports whether s is one of the five known states.
func ValidStatus(s Status) bool {
	switch s {
	case StatusOnline, StatusIdle, StatusDoNotDisturb, StatusInvisible, StatusOffline:
		return true
	}
	return false
}

// Masked returns the status as reported to other users: INVISIBLE users
// look OFFLINE to everyone but themselves.
func (s Status) Masked() Status {
	if s == StatusInvisible {
		return StatusOffline
	}
	return s
}

// Presence is the per-user availability record. ManualStatus is the single
// source of truth for what gets broadcast; it changes on exactly five
// triggers: explicit set, connect, disconnect, idle sweep, heartbeat.
type Presence struct {
	UserID            UserID
	ManualStatus      Status
	CustomStatusText  string
	CustomStatusEmoji string
	CustomStatusUntil time.Time // zero means no expiry
	LastActivityAt    time.Time
}

// CustomStatusExpired reports whether the custom status carries an expiry
// that has passed.
func (p *Presence) CustomStatusExpired(now time.Time) bool {
	return !p.CustomStatusUntil.IsZero() && !p.CustomStatusUntil.After(now)
}

// Clone returns a copy so callers never hold references into tracker state.
func (p *Presence) Clone() *Presence {
	cp := *p
	return &cp
}
