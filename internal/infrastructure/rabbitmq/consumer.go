package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/rabbitmq/amqp091-go"
	"github.com/storefront-api/internal/domain"
)

// DeliverFunc performs one notification task; the worker pool's Deliver fits.
type DeliverFunc func(ctx context.Context, t domain.NotificationTask) error

// Consumer feeds queued notification tasks into a DeliverFunc with manual acks.
type Consumer struct {
	conn     *amqp091.Connection
	queue    string
	prefetch int
	logger   *slog.Logger
}

func NewConsumer(url, exchange, queue string, prefetch int, logger *slog.Logger) (*Consumer, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	if err := declareTopology(conn, exchange, queue); err != nil {
		conn.Close()
		return nil, err
	}
	return &Consumer{conn: conn, queue: queue, prefetch: prefetch, logger: logger}, nil
}

// Start blocks until ctx is cancelled or the broker closes the channel.
func (c *Consumer) Start(ctx context.Context, deliver DeliverFunc) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		ch.Close()
		return fmt.Errorf("set qos: %w", err)
	}

	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("consume queue: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = ch.Cancel("", false)
		ch.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Info("notification consumer channel closed")
				return nil
			}
			handle(ctx, msg, deliver, c.logger)
		}
	}
}

func (c *Consumer) Close() error {
	return c.conn.Close()
}

// handle acks on success. Undecodable messages are dropped; failed deliveries
// are requeued once and dropped on the second failure.
func handle(ctx context.Context, msg amqp091.Delivery, deliver DeliverFunc, logger *slog.Logger) {
	var t domain.NotificationTask
	if err := json.Unmarshal(msg.Body, &t); err != nil {
		logger.Error("drop undecodable notification", "message_id", msg.MessageId, "err", err)
		_ = msg.Nack(false, false)
		return
	}
	if err := deliver(ctx, t); err != nil {
		requeue := !msg.Redelivered
		logger.Warn("notification delivery failed", "task_id", t.ID, "kind", t.Kind, "requeue", requeue, "err", err)
		_ = msg.Nack(false, requeue)
		return
	}
	_ = msg.Ack(false)
}
