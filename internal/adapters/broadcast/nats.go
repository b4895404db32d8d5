// Package broadcast provides the Broadcaster backends: NATS subjects, an
// AMQP exchange, and a log-only publisher for broker-less runs. All of them
// are fire-and-forget; delivery is best-effort by contract.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pulse/internal/domain"
)

// NATSPublisher publishes each destination name verbatim as a NATS subject.
// Per-user sends go to the Spring-style user destination
// "/user/{userId}{destination}" so existing clients keep their routing.
type NATSPublisher struct {
	nc *nats.Conn
}

func DialNATS(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("pulse-broadcast"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Str("module", "broadcast.nats").Err(err).Msg("disconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	log.Info().Str("module", "broadcast.nats").Str("url", nc.ConnectedUrl()).Msg("connected")
	return &NATSPublisher{nc: nc}, nil
}

func (p *NATSPublisher) Close() {
	p.nc.Drain()
}

func (p *NATSPublisher) PublishToTopic(_ context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal for %s: %w", topic, err)
	}
	return p.nc.Publish(topic, data)
}

func (p *NATSPublisher) SendToUser(_ context.Context, userID domain.UserID, destination string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal for %s: %w", destination, err)
	}
	return p.nc.Publish(UserDestination(userID, destination), data)
}

// UserDestination builds the per-user point-to-point destination name.
func UserDestination(userID domain.UserID, destination string) string {
	return fmt.Sprintf("/user/%s%s", userID, destination)
}
