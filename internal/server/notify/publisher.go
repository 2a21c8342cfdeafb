// Package notify publishes domain events for out-of-process consumers such
// as the mailer.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/bankapp/internal/logging"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RoutingPasswordResetRequested is the routing key of PasswordResetRequested.
const RoutingPasswordResetRequested = "user.password_reset_requested"

// PasswordResetRequested asks the mailer to send a reset link.
type PasswordResetRequested struct {
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	ResetURL  string    `json:"reset_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Publisher sends an event body to the events exchange.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body any) error
	Close() error
}

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes JSON messages to a durable topic exchange.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	reopen   func() (channel, error)
	exchange string
}

var dialAMQP = func(u string) (*amqp.Connection, error) {
	return amqp.DialConfig(u, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewAMQPPublisher connects to the broker and declares exchange.
func NewAMQPPublisher(rawURL, exchange string) (*AMQPPublisher, error) {
	u, err := sanitizeAMQPURL(rawURL)
	if err != nil {
		return nil, err
	}

	conn, err := dialAMQP(u)
	if err != nil {
		return nil, err
	}

	open := func() (channel, error) {
		ch, err := conn.Channel()
		if err != nil {
			return nil, err
		}
		return ch, nil
	}

	ch, err := open()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	p := newPublisher(ch, open, exchange)
	p.conn = conn
	if err := p.declare(); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

func newPublisher(ch channel, reopen func() (channel, error), exchange string) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, reopen: reopen, exchange: exchange}
}

func (p *AMQPPublisher) declare() error {
	return p.ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil)
}

// Publish marshals body to JSON and publishes it. A failed publish reopens
// the channel once and retries.
func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         payload,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	if err == nil || p.reopen == nil {
		return err
	}

	ch, chErr := p.reopen()
	if chErr != nil {
		return errors.Join(err, chErr)
	}
	_ = p.ch.Close()
	p.ch = ch
	if err := p.declare(); err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}

// LogPublisher stands in for the broker when none is configured. It records
// that an event happened but not its body, which may carry secrets.
type LogPublisher struct {
	logger logging.Logger
}

func NewLogPublisher(logger logging.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, routingKey string, _ any) error {
	p.logger.Info(ctx, "event not published, no broker configured", "routing_key", routingKey)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// Connect returns an AMQP publisher, or a LogPublisher when rawURL is empty
// or the broker cannot be reached.
func Connect(ctx context.Context, rawURL, exchange string, logger logging.Logger) Publisher {
	if rawURL == "" {
		return NewLogPublisher(logger)
	}
	p, err := NewAMQPPublisher(rawURL, exchange)
	if err != nil {
		logger.Warn(ctx, "rabbitmq unavailable, events will only be logged", "error", err)
		return NewLogPublisher(logger)
	}
	return p
}
