package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/laundrydesk/opsync/internal/core/domain"
)

const DefaultQueue = "orders.reconciled"

const (
	dialTimeout  = 2 * time.Second
	dialCooldown = 15 * time.Second
)

// ErrBrokerUnavailable is returned while a failed dial is cooling down.
var ErrBrokerUnavailable = errors.New("rabbitmq unavailable")

// Publisher announces committed order transitions on a durable RabbitMQ queue.
// The connection is opened lazily and reopened after a failure.
type Publisher struct {
	url   string
	queue string
	log   zerolog.Logger
	dial  func(url string) (*amqp.Connection, error)
	now   func() time.Time

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	nextDial time.Time
}

// NewPublisher creates a Publisher. No connection is made until the first Publish.
func NewPublisher(url, queue string, log zerolog.Logger) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Publisher{url: url, queue: queue, log: log, dial: dialWithTimeout, now: time.Now}
}

func dialWithTimeout(url string) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
}

// Publish sends t as a persistent JSON message. Failures are returned so the
// caller can log them; the reconciliation outcome does not depend on it.
func (p *Publisher) Publish(ctx context.Context, t domain.Transition) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode transition: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureChannel(); err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    t.PassID + ":" + t.OrderID,
		Timestamp:    time.Now().UTC(),
		Type:         "order.status." + string(t.To),
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.closeLocked()
		return fmt.Errorf("publish transition %s: %w", t.OrderID, err)
	}
	return nil
}

func (p *Publisher) ensureChannel() error {
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	p.closeLocked()

	// Publishing runs inside a reconciliation pass; a down broker must not
	// stall every transition.
	if now := p.now(); now.Before(p.nextDial) {
		return ErrBrokerUnavailable
	}
	conn, err := p.dial(p.url)
	if err != nil {
		p.nextDial = p.now().Add(dialCooldown)
		return fmt.Errorf("rabbitmq dial: %w: %w", ErrBrokerUnavailable, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("rabbitmq declare %s: %w", p.queue, err)
	}

	p.conn, p.ch = conn, ch
	p.log.Info().Str("queue", p.queue).Msg("rabbitmq publisher connected")
	return nil
}

func (p *Publisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close releases the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}
