package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusMasking(t *testing.T) {
	assert.Equal(t, StatusOffline, StatusInvisible.Masked())
	assert.Equal(t, StatusOnline, StatusOnline.Masked())
	assert.Equal(t, StatusDoNotDisturb, StatusDoNotDisturb.Masked())
}

func TestValidStatus(t *testing.T) {
	for _, s := range []Status{StatusOnline, StatusIdle, StatusDoNotDisturb, StatusInvisible, StatusOffline} {
		assert.True(t, ValidStatus(s), string(s))
	}
	assert.False(t, ValidStatus("SLEEPING"))
	assert.False(t, ValidStatus(""))
}

func TestCustomStatusExpired(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	p := Presence{}
	assert.False(t, p.CustomStatusExpired(now), "zero expiry means no expiry")

	p.CustomStatusUntil = now.Add(time.Minute)
	assert.False(t, p.CustomStatusExpired(now))

	p.CustomStatusUntil = now.Add(-time.Minute)
	assert.True(t, p.CustomStatusExpired(now))

	p.CustomStatusUntil = now
	assert.True(t, p.CustomStatusExpired(now), "expiry at exactly now counts")
}
