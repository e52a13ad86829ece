package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/facturo/facturo-backend/pkg/logger"
	"github.com/facturo/facturo-backend/pkg/tenant"
)

const publishTimeout = 5 * time.Second

// Publisher publishes events to RabbitMQ, routing each event type to its
// exchange.
type Publisher struct {
	rmq    *RabbitMQ
	source string
	logger *logger.Logger
}

// NewPublisher declares the invoice and schema exchanges.
func NewPublisher(rmq *RabbitMQ, source string, log *logger.Logger) (*Publisher, error) {
	for _, exchange := range []string{ExchangeInvoiceEvents, ExchangeSchemaEvents} {
		if err := rmq.DeclareExchange(exchange); err != nil {
			return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
		}
	}
	return &Publisher{rmq: rmq, source: source, logger: log}, nil
}

// Publish wraps data in an Event stamped with the tenant and correlation id
// of ctx. Without a correlation id in ctx a fresh one is minted.
func (p *Publisher) Publish(ctx context.Context, eventType string, data any) error {
	correlationID := CorrelationID(ctx)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	event, err := NewEvent(eventType, p.source, correlationID, data)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	if tenantID, err := tenant.TenantID(ctx); err == nil {
		event.TenantID = tenantID
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	exchange := ExchangeFor(eventType)
	msg := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     event.Timestamp,
		Type:          eventType,
		AppId:         p.source,
		CorrelationId: correlationID,
		MessageId:     event.ID,
		Body:          body,
	}
	if err := p.rmq.Channel().PublishWithContext(ctx, exchange, eventType, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", eventType, err)
	}

	p.logger.Debug().
		Str("exchange", exchange).
		Str("event_type", eventType).
		Str("event_id", event.ID).
		Str("correlation_id", correlationID).
		Msg("event published")
	return nil
}

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// WithCorrelationID adds a correlation ID to the context
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// CorrelationID returns the correlation ID carried by ctx, if any.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}
