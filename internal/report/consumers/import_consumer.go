// Package consumers reacts to invoice events from the ingestion pipeline.
package consumers

import (
	"context"

	"github.com/facturo/facturo-backend/internal/report/service"
	"github.com/facturo/facturo-backend/pkg/errors"
	"github.com/facturo/facturo-backend/pkg/logger"
	"github.com/facturo/facturo-backend/pkg/messaging"
)

const queueName = "report-service.invoice-imports"

// ImportConsumer discovers report fields in every imported invoice.
type ImportConsumer struct {
	consumer *messaging.Consumer
	service  *service.ReportService
	logger   *logger.Logger
}

// NewImportConsumer creates a new import consumer
func NewImportConsumer(rmq *messaging.RabbitMQ, svc *service.ReportService, log *logger.Logger) (*ImportConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, queueName, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeInvoiceEvents, messaging.EventInvoiceImported); err != nil {
		return nil, err
	}

	c := &ImportConsumer{
		consumer: consumer,
		service:  svc,
		logger:   log.WithComponent("import_consumer"),
	}
	consumer.RegisterHandler(messaging.EventInvoiceImported, c.handleInvoiceImported)

	return c, nil
}

// Start starts consuming messages
func (c *ImportConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// handleInvoiceImported returns an error only when a retry can succeed;
// malformed or dangling imports are logged and acknowledged.
func (c *ImportConsumer) handleInvoiceImported(ctx context.Context, event *messaging.Event) error {
	var data messaging.InvoiceImportedEvent
	if err := event.UnmarshalData(&data); err != nil {
		c.logger.Error().Err(err).Str("event_id", event.ID).Msg("malformed invoice imported event")
		return nil
	}

	log := c.logger.Ctx(ctx).WithCollection(data.Collection)
	log.Info().
		Str("invoice_id", data.InvoiceID).
		Bool("inline", len(data.Document) > 0).
		Msg("received invoice imported event")

	found, err := c.service.ImportInvoice(ctx, data.Collection, data.InvoiceID, data.Document)
	if err != nil {
		if errors.IsStore(err) {
			return err
		}
		log.Warn().Err(err).Str("invoice_id", data.InvoiceID).Msg("invoice import skipped")
		return nil
	}

	log.Info().Int("fields", len(found)).Msg("invoice import processed")
	return nil
}
