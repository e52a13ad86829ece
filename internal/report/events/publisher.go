package events

import (
	"context"
	"sort"

	"github.com/facturo/facturo-backend/internal/report/domain"
	"github.com/facturo/facturo-backend/pkg/logger"
	"github.com/facturo/facturo-backend/pkg/messaging"
)

// Source is the source stamped on every event of this service.
const Source = "report-service"

// Publisher sends one event. *messaging.Publisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data any) error
}

// ReportEventPublisher publishes invoice and schema events. Failures are
// logged and never fail the operation that triggered them. A nil
// *ReportEventPublisher publishes nothing.
type ReportEventPublisher struct {
	publisher Publisher
	logger    *logger.Logger
}

// NewReportEventPublisher declares the exchanges on rmq.
func NewReportEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*ReportEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, Source, log)
	if err != nil {
		return nil, err
	}
	return NewWithPublisher(publisher, log), nil
}

// NewWithPublisher wraps any Publisher.
func NewWithPublisher(p Publisher, log *logger.Logger) *ReportEventPublisher {
	if log == nil {
		log = logger.Nop()
	}
	return &ReportEventPublisher{publisher: p, logger: log.WithComponent("events")}
}

func (p *ReportEventPublisher) publish(ctx context.Context, eventType string, data any) {
	if p == nil || p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}

// PublishInvoiceCreated publishes an invoice created event
func (p *ReportEventPublisher) PublishInvoiceCreated(ctx context.Context, collection, id string) {
	p.publish(ctx, messaging.EventInvoiceCreated, messaging.InvoiceCreatedEvent{
		InvoiceID:  id,
		Collection: collection,
	})
}

// PublishInvoiceUpdated lists the top-level keys of partial as changed fields.
func (p *ReportEventPublisher) PublishInvoiceUpdated(ctx context.Context, collection, id string, partial domain.Document) {
	fields := make([]string, 0, len(partial))
	for k := range partial {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	p.publish(ctx, messaging.EventInvoiceUpdated, messaging.InvoiceUpdatedEvent{
		InvoiceID:  id,
		Collection: collection,
		Fields:     fields,
	})
}

// PublishInvoiceDeleted publishes an invoice deleted event
func (p *ReportEventPublisher) PublishInvoiceDeleted(ctx context.Context, collection, id string) {
	p.publish(ctx, messaging.EventInvoiceDeleted, messaging.InvoiceDeletedEvent{
		InvoiceID:  id,
		Collection: collection,
	})
}

// PublishFieldsDiscovered is skipped when nothing was found.
func (p *ReportEventPublisher) PublishFieldsDiscovered(ctx context.Context, collection string, found []domain.FieldDescriptor, merged bool) {
	if len(found) == 0 {
		return
	}
	ids := make([]string, len(found))
	for i, fd := range found {
		ids[i] = fd.ID
	}
	p.publish(ctx, messaging.EventFieldsDiscovered, messaging.FieldsDiscoveredEvent{
		Collection: collection,
		FieldIDs:   ids,
		Merged:     merged,
	})
}

func (p *ReportEventPublisher) PublishFieldsReset(ctx context.Context, collection string) {
	p.publish(ctx, messaging.EventFieldsReset, messaging.FieldsResetEvent{Collection: collection})
}
