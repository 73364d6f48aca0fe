package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
	"github.com/storefront-api/internal/domain"
	"github.com/storefront-api/internal/pkg/id"
)

// Publisher hands notification tasks to a durable RabbitMQ queue.
type Publisher struct {
	conn     *amqp091.Connection
	exchange string
}

// NewPublisher declares the exchange and the delivery queue up front so tasks
// published before any consumer connects are kept.
func NewPublisher(url, exchange, queue string) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	if err := declareTopology(conn, exchange, queue); err != nil {
		conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, exchange: exchange}, nil
}

// Dispatch publishes t as a persistent JSON message.
func (p *Publisher) Dispatch(ctx context.Context, t domain.NotificationTask) error {
	if t.ID == "" {
		t.ID = id.New()
	}
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	return ch.PublishWithContext(ctx, p.exchange, t.Kind, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    t.ID,
		Type:         t.Kind,
		Body:         payload,
	})
}

func (p *Publisher) Close() error {
	return p.conn.Close()
}

func declareTopology(conn *amqp091.Connection, exchange, queue string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queue, "", exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}
