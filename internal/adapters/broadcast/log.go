package broadcast

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pulse/internal/domain"
)

// LogPublisher writes every event to the log instead of a broker. Used for
// standalone dev runs where no broker is configured.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher { return &LogPublisher{} }

func (LogPublisher) PublishToTopic(_ context.Context, topic string, payload any) error {
	log.Info().Str("module", "broadcast.log").Str("topic", topic).Interface("payload", payload).Msg("publish")
	return nil
}

func (LogPublisher) SendToUser(_ context.Context, userID domain.UserID, destination string, payload any) error {
	log.Info().Str("module", "broadcast.log").Str("user", string(userID)).Str("destination", destination).Interface("payload", payload).Msg("send")
	return nil
}
