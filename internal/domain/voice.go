package domain

// VoiceMemberState is a user's live state inside a voice room. It is
// ephemeral: held in memory only and reset naturally on process restart,
// because every transport connection dies with the process anyway.
type VoiceMemberState struct {
	UserID      UserID `json:"userId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	MicOn       bool   `json:"micOn"`
	CamOn       bool   `json:"camOn"`
	ScreenOn    bool   `json:"screenOn"`
	Speaking    bool   `json:"speaking"`
}

// NewVoiceMember builds the initial member state for a joining user.
// Mic starts on, everything else off, matching client expectations.
func NewVoiceMember(user *User) *VoiceMemberState {
	return &VoiceMemberState{
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
		MicOn:       true,
	}
}

// Clone returns a copy for snapshot reads.
func (m *VoiceMemberState) Clone() *VoiceMemberState {
	cp := *m
	return &cp
}

// Membership is the reverse-index value: which room membership a transport
// session created. It exists only for joins that supplied a session id and
// is consumed exactly once on session teardown.
type Membership struct {
	ChannelID ChannelID
	UserID    UserID
}
