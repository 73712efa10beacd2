package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPQueue publishes notifications to a durable RabbitMQ queue so that
// delivery survives restarts of the API process.
type AMQPQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	// amqp channels are not safe for concurrent publishing
	mu sync.Mutex
}

func DialAMQPQueue(url, queue string) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("queue declare %s: %w", queue, err)
	}
	return &AMQPQueue{conn: conn, ch: ch, queue: queue}, nil
}

func (q *AMQPQueue) Enqueue(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	return q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

// Consume hands every queued notification to handler until ctx is cancelled.
// A failed delivery is requeued once, then dropped.
func (q *AMQPQueue) Consume(ctx context.Context, handler NotificationHandler, logger *zap.Logger) error {
	logger = logger.With(zap.String("component", "amqp_consumer"), zap.String("queue", q.queue))

	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open consumer channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		return err
	}
	msgs, err := ch.Consume(q.queue, "lab-orders-notifier", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", q.queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			var n Notification
			if err := json.Unmarshal(d.Body, &n); err != nil {
				logger.Error("discarding malformed notification", zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}

			if err := handler.Handle(ctx, n); err != nil {
				logger.Error("notification delivery failed",
					zap.String("kind", string(n.Kind)),
					zap.Uint("order_id", n.OrderID),
					zap.Bool("redelivered", d.Redelivered),
					zap.Error(err),
				)
				_ = d.Nack(false, !d.Redelivered)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (q *AMQPQueue) Close() {
	if q.ch != nil {
		_ = q.ch.Close()
	}
	if q.conn != nil {
		_ = q.conn.Close()
	}
}
