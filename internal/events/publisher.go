package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/kalambet/profiledir/internal/directory"
)

// DefaultExchange is the topic exchange profile events are published to.
const DefaultExchange = "profile.events"

// Publisher sends profile events to a broker.
type Publisher interface {
	Publish(ctx context.Context, event ProfileEvent) error
	Close() error
}

// EventPublisher publishes to a RabbitMQ topic exchange. With an empty URL it
// is disabled and drops every event.
type EventPublisher struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	enabled  bool
	logger   *slog.Logger
}

// NewEventPublisher dials url and declares exchange as a durable topic
// exchange.
func NewEventPublisher(url, exchange string, logger *slog.Logger) (*EventPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if exchange == "" {
		exchange = DefaultExchange
	}
	if url == "" {
		logger.Warn("AMQP URL is empty, event publishing is disabled")
		return &EventPublisher{exchange: exchange, logger: logger}, nil
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declaring exchange: %w", err)
	}

	logger.Info("event publisher initialized", "exchange", exchange)

	return &EventPublisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		enabled:  true,
		logger:   logger,
	}, nil
}

// Enabled reports whether events actually reach a broker.
func (p *EventPublisher) Enabled() bool {
	return p.enabled
}

// Publish sends event with its type as routing key.
func (p *EventPublisher) Publish(ctx context.Context, event ProfileEvent) error {
	if !p.enabled {
		p.logger.Debug("event publishing disabled, dropping event", "type", event.Type, "profile_id", event.ProfileID)
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx,
		p.exchange,         // exchange
		string(event.Type), // routing key
		false,              // mandatory
		false,              // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    event.ID,
			Timestamp:    time.Now(),
			Body:         body,
			Headers: amqp091.Table{
				"event_type": string(event.Type),
				"profile_id": event.ProfileID,
			},
		},
	)
	if err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}

	p.logger.Debug("published event", "type", event.Type, "profile_id", event.ProfileID)
	return nil
}

// Close closes the channel and connection.
func (p *EventPublisher) Close() error {
	if !p.enabled {
		return nil
	}

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Warn("closing RabbitMQ channel", "error", err)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("closing RabbitMQ connection: %w", err)
		}
	}
	return nil
}

// Notifier publishes directory changes as they happen. It is used when there
// is no outbox to relay from.
type Notifier struct {
	publisher Publisher
	timeout   time.Duration
	logger    *slog.Logger
}

// NewNotifier wraps publisher as a directory.Notifier.
func NewNotifier(publisher Publisher, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{publisher: publisher, timeout: 5 * time.Second, logger: logger}
}

// Notify implements directory.Notifier.
func (n *Notifier) Notify(c directory.Change) {
	event, err := NewEvent(c)
	if err != nil {
		n.logger.Error("building profile event", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()
	if err := n.publisher.Publish(ctx, event); err != nil {
		n.logger.Error("publishing profile event", "type", event.Type, "profile_id", event.ProfileID, "error", err)
	}
}
