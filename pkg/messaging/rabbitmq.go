// Package messaging publishes and consumes invoice and schema events over
// RabbitMQ topic exchanges.
package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/facturo/facturo-backend/pkg/config"
	"github.com/facturo/facturo-backend/pkg/logger"
)

// RabbitMQ holds one connection and the channel shared by the publisher and
// consumers of a service.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *logger.Logger
	mu      sync.RWMutex
}

// New dials the broker, retrying up to cfg.MaxRetries times with
// cfg.ReconnectDelay between attempts so a service can start before the
// broker is ready.
func New(ctx context.Context, cfg *config.RabbitMQConfig, log *logger.Logger) (*RabbitMQ, error) {
	attempts := cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, channel, err := dial(cfg)
		if err == nil {
			log.Info().Int("attempt", attempt).Msg("connected to RabbitMQ")
			return &RabbitMQ{conn: conn, channel: channel, logger: log}, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", cfg.ReconnectDelay).Msg("RabbitMQ not reachable")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.ReconnectDelay):
		}
	}

	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, lastErr)
}

func dial(cfg *config.RabbitMQConfig) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if cfg.PrefetchCount > 0 {
		if err := channel.Qos(cfg.PrefetchCount, 0, false); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	return conn, channel, nil
}

// Channel returns the shared channel
func (r *RabbitMQ) Channel() *amqp.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channel
}

// Close closes the channel and then the connection
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("failed to close channel")
		}
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}

	r.logger.Info().Msg("RabbitMQ connection closed")
	return nil
}

// Health reports "up" while the connection is open.
func (r *RabbitMQ) Health() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.conn == nil || r.conn.IsClosed() {
		return map[string]string{"status": "down", "error": "connection closed"}
	}
	return map[string]string{"status": "up"}
}

// DeclareExchange declares a durable topic exchange
func (r *RabbitMQ) DeclareExchange(name string) error {
	return r.Channel().ExchangeDeclare(name, "topic", true, false, false, false, nil)
}

// DeclareQueue declares a durable work queue together with its dead letter
// queue. Rejected messages are routed to "<name>.dlq" through
// ExchangeDeadLetter using the queue name as routing key.
func (r *RabbitMQ) DeclareQueue(name string) (amqp.Queue, error) {
	ch := r.Channel()

	if err := r.DeclareExchange(ExchangeDeadLetter); err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to declare dead letter exchange: %w", err)
	}

	dlq := DeadLetterQueue(name)
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to declare %s: %w", dlq, err)
	}
	if err := ch.QueueBind(dlq, name, ExchangeDeadLetter, false, nil); err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to bind %s: %w", dlq, err)
	}

	return ch.QueueDeclare(name, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    ExchangeDeadLetter,
		"x-dead-letter-routing-key": name,
	})
}

// BindQueue binds a queue to an exchange with a routing key pattern
func (r *RabbitMQ) BindQueue(queueName, exchange, routingKeyPattern string) error {
	return r.Channel().QueueBind(queueName, routingKeyPattern, exchange, false, nil)
}

// DeadLetterQueue names the dead letter queue of a work queue.
func DeadLetterQueue(queueName string) string {
	return queueName + ".dlq"
}
