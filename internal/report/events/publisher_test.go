package events_test

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturo/facturo-backend/internal/report/domain"
	"github.com/facturo/facturo-backend/internal/report/events"
	"github.com/facturo/facturo-backend/pkg/messaging"
	"github.com/facturo/facturo-backend/pkg/testutil"
)

func TestReportEventPublisher_InvoiceEvents(t *testing.T) {
	mock := testutil.NewMockPublisher()
	p := events.NewWithPublisher(mock, nil)
	ctx := context.Background()

	p.PublishInvoiceCreated(ctx, "invoices", "id-1")
	p.PublishInvoiceUpdated(ctx, "invoices", "id-1", domain.Document{"resumen": 1, "emisor": 2})
	p.PublishInvoiceDeleted(ctx, "invoices", "id-1")

	got := mock.Events()
	require.Len(t, got, 3)
	assert.Equal(t, messaging.EventInvoiceCreated, got[0].Type)
	assert.Equal(t, messaging.InvoiceCreatedEvent{InvoiceID: "id-1", Collection: "invoices"}, got[0].Payload)
	assert.Equal(t, []string{"emisor", "resumen"}, got[1].Payload.(messaging.InvoiceUpdatedEvent).Fields)
	assert.Equal(t, messaging.EventInvoiceDeleted, got[2].Type)
}

func TestReportEventPublisher_FieldsDiscovered(t *testing.T) {
	mock := testutil.NewMockPublisher()
	p := events.NewWithPublisher(mock, nil)

	p.PublishFieldsDiscovered(context.Background(), "invoices", nil, true)
	mock.AssertNoEventsPublished(t)

	p.PublishFieldsDiscovered(context.Background(), "invoices", []domain.FieldDescriptor{{ID: "a"}, {ID: "b.c"}}, true)
	got := mock.Events()
	require.Len(t, got, 1)
	assert.Equal(t, messaging.FieldsDiscoveredEvent{Collection: "invoices", FieldIDs: []string{"a", "b.c"}, Merged: true}, got[0].Payload)
}

func TestReportEventPublisher_FailuresAreSwallowed(t *testing.T) {
	mock := testutil.NewMockPublisher()
	mock.Err = stderrors.New("channel closed")
	p := events.NewWithPublisher(mock, nil)

	assert.NotPanics(t, func() { p.PublishFieldsReset(context.Background(), "invoices") })
}

func TestReportEventPublisher_NilIsNoop(t *testing.T) {
	var p *events.ReportEventPublisher
	assert.NotPanics(t, func() { p.PublishInvoiceCreated(context.Background(), "invoices", "x") })
}
