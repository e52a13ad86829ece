package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/facturo/facturo-backend/pkg/logger"
	"github.com/facturo/facturo-backend/pkg/tenant"
)

// MaxRedeliveries is how many times a failing message is retried before it
// is dead-lettered.
const MaxRedeliveries = 3

// AttemptsHeader counts the retries a message has already had.
const AttemptsHeader = "x-facturo-attempts"

// MessageHandler handles one event. The context carries the event's tenant
// and correlation id.
type MessageHandler func(ctx context.Context, event *Event) error

// retryFunc puts a failed delivery back on the queue with attempts recorded.
type retryFunc func(ctx context.Context, msg amqp.Delivery, attempts int) error

// Consumer dispatches events from one queue to handlers by event type.
type Consumer struct {
	rmq       *RabbitMQ
	queueName string
	handlers  map[string]MessageHandler
	retry     retryFunc
	logger    *logger.Logger
}

// NewConsumer declares queueName with its dead letter queue and returns a
// consumer for it.
func NewConsumer(rmq *RabbitMQ, queueName string, log *logger.Logger) (*Consumer, error) {
	if _, err := rmq.DeclareQueue(queueName); err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	c := &Consumer{
		rmq:       rmq,
		queueName: queueName,
		handlers:  make(map[string]MessageHandler),
		logger:    log.WithComponent("consumer:" + queueName),
	}
	c.retry = c.republish
	return c, nil
}

// Subscribe binds the queue to exchange with a routing key pattern.
func (c *Consumer) Subscribe(exchange, routingKeyPattern string) error {
	if err := c.rmq.DeclareExchange(exchange); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	if err := c.rmq.BindQueue(c.queueName, exchange, routingKeyPattern); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	c.logger.Info().
		Str("exchange", exchange).
		Str("routing_key", routingKeyPattern).
		Msg("subscribed to exchange")
	return nil
}

// RegisterHandler routes events of eventType to handler.
func (c *Consumer) RegisterHandler(eventType string, handler MessageHandler) {
	c.handlers[eventType] = handler
}

// Start consumes in a background goroutine until ctx is done or the channel
// closes.
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.rmq.Channel().ConsumeWithContext(ctx, c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info().Msg("consumer started")
	go func() {
		for msg := range msgs {
			c.handleMessage(ctx, msg)
		}
		c.logger.Info().Msg("consumer stopped")
	}()
	return nil
}

func (c *Consumer) handleMessage(ctx context.Context, msg amqp.Delivery) {
	var event Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.logger.Error().Err(err).Str("message_id", msg.MessageId).Msg("malformed event, dead-lettering")
		_ = msg.Reject(false)
		return
	}

	handler, ok := c.handlers[event.Type]
	if !ok {
		c.logger.Debug().Str("event_type", event.Type).Msg("no handler for event type")
		_ = msg.Ack(false)
		return
	}

	ctx = WithCorrelationID(ctx, event.CorrelationID)
	if event.TenantID != "" {
		ctx = tenant.WithTenantID(ctx, event.TenantID)
	}

	err := handler(ctx, &event)
	if err == nil {
		_ = msg.Ack(false)
		return
	}

	attempts := Attempts(msg)
	log := c.logger.Error().
		Err(err).
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Str("correlation_id", event.CorrelationID).
		Int("attempts", attempts)

	if attempts >= MaxRedeliveries {
		log.Msg("event failed, retries exhausted, dead-lettering")
		_ = msg.Reject(false)
		return
	}

	log.Msg("event failed, retrying")
	if rerr := c.retry(ctx, msg, attempts+1); rerr != nil {
		c.logger.Warn().Err(rerr).Str("event_id", event.ID).Msg("retry publish failed, requeueing")
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

// republish sends a copy of msg straight to the queue through the default
// exchange with the attempt count bumped.
func (c *Consumer) republish(ctx context.Context, msg amqp.Delivery, attempts int) error {
	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[AttemptsHeader] = int32(attempts)

	return c.rmq.Channel().PublishWithContext(ctx, "", c.queueName, false, false, amqp.Publishing{
		Headers:       headers,
		ContentType:   msg.ContentType,
		DeliveryMode:  amqp.Persistent,
		CorrelationId: msg.CorrelationId,
		MessageId:     msg.MessageId,
		Body:          msg.Body,
	})
}

// Attempts reads AttemptsHeader from a delivery. A first delivery has none.
func Attempts(msg amqp.Delivery) int {
	switch v := msg.Headers[AttemptsHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}
