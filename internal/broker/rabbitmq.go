package broker

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nkiryanov/walletledger/internal/models"
)

const DefaultExchange = "wallet.events"

// RabbitMQ publishes events to a topic exchange, event type is the routing key
type RabbitMQ struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// Dial broker and declare durable topic exchange
func NewRabbitMQ(url string, exchange string) (*RabbitMQ, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}

	return &RabbitMQ{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
	}, nil
}

func (r *RabbitMQ) Publish(ctx context.Context, event models.OutboxEvent) error {
	err := r.channel.PublishWithContext(
		ctx,
		r.exchange,
		event.Type,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         event.Payload,
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID.String(),
			Timestamp:    time.Now().UTC(),
			Type:         event.Type,
			Headers: amqp.Table{
				"event_type":   event.Type,
				"aggregate_id": event.AggregateID,
			},
		},
	)
	if err != nil {
		return fmt.Errorf("publish event %s: %w", event.ID, err)
	}

	return nil
}

func (r *RabbitMQ) Close() error {
	return r.conn.Close()
}
