package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pulse/internal/domain"
)

// AMQPPublisher publishes to a topic exchange with the destination name as
// the routing key. Publishes wait up to 5 seconds; past that the message is
// dropped, which is acceptable for advisory presence/voice events.
type AMQPPublisher struct {
	conn     *amqp091.Connection
	ch       *amqp091.Channel
	exchange string
}

func DialAMQP(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}
	log.Info().Str("module", "broadcast.amqp").Str("exchange", exchange).Msg("connected")
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *AMQPPublisher) Close() {
	p.ch.Close()
	p.conn.Close()
}

func (p *AMQPPublisher) PublishToTopic(ctx context.Context, topic string, payload any) error {
	return p.publish(ctx, topic, payload)
}

func (p *AMQPPublisher) SendToUser(ctx context.Context, userID domain.UserID, destination string, payload any) error {
	return p.publish(ctx, UserDestination(userID, destination), payload)
}

func (p *AMQPPublisher) publish(ctx context.Context, routingKey string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal for %s: %w", routingKey, err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.ch.PublishWithContext(ctx,
		p.exchange,
		routingKey,
		false,
		false,
		amqp091.Publishing{
			Body:        data,
			ContentType: "application/json",
		},
	)
}
