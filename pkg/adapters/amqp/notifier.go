// Package amqp publishes mission-completed notifications to RabbitMQ.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"github.com/aretw0/storyline/pkg/domain"
	"github.com/aretw0/storyline/pkg/ports"
)

var _ ports.CompletionNotifier = (*Notifier)(nil)

// DefaultQueue receives the notifications when no queue is configured.
const DefaultQueue = "storyline.mission_completed"

// Notifier implements ports.CompletionNotifier by publishing JSON messages to a
// durable queue.
type Notifier struct {
	conn  *amqp091.Connection
	queue string

	mu sync.Mutex
	ch *amqp091.Channel
}

// Dial connects to url and declares queue.
func Dial(url, queue string) (*Notifier, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	n, err := New(conn, queue)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return n, nil
}

// New opens a channel on conn and declares queue. Connection recovery is left
// to the caller, which hands in a stable connection.
func New(conn *amqp091.Connection, queue string) (*Notifier, error) {
	if conn == nil {
		return nil, fmt.Errorf("rabbitmq connection is nil")
	}
	if queue == "" {
		queue = DefaultQueue
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare queue '%s': %w", queue, err)
	}

	return &Notifier{conn: conn, queue: queue, ch: ch}, nil
}

// NotifyMissionCompleted publishes evt as a persistent JSON message.
func (n *Notifier) NotifyMissionCompleted(ctx context.Context, evt domain.MissionCompleted) error {
	msg, err := Publishing(evt)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	err = n.ch.PublishWithContext(ctx,
		"",      // default exchange
		n.queue, // routing key
		false,   // mandatory
		false,   // immediate
		msg,
	)
	if err != nil {
		return fmt.Errorf("failed to publish mission completion: %w", err)
	}
	return nil
}

// Close closes the channel and the connection.
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.ch.Close(); err != nil {
		return err
	}
	return n.conn.Close()
}

// Publishing builds the message for evt.
func Publishing(evt domain.MissionCompleted) (amqp091.Publishing, error) {
	if evt.CompletedAt.IsZero() {
		evt.CompletedAt = time.Now().UTC()
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return amqp091.Publishing{}, fmt.Errorf("failed to marshal mission completion: %w", err)
	}
	return amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    evt.CompletedAt,
		Type:         "mission.completed",
		Body:         body,
	}, nil
}
