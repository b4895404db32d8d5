package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Destination names are consumed by deployed clients; these strings are a
// wire contract, not an implementation detail.
func TestDestinationNames(t *testing.T) {
	assert.Equal(t, "/topic/voice/7", VoiceTopic("7"))
	assert.Equal(t, "/topic/voice/7/signal", VoiceSignalTopic("7"))
	assert.Equal(t, "/topic/server.s1.presence", ServerPresenceTopic("s1"))
	assert.Equal(t, "/queue/presence", QueuePresence)
}
