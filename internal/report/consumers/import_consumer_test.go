package consumers

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturo/facturo-backend/internal/report/domain"
	"github.com/facturo/facturo-backend/internal/report/repository"
	"github.com/facturo/facturo-backend/internal/report/schema"
	"github.com/facturo/facturo-backend/internal/report/service"
	"github.com/facturo/facturo-backend/pkg/config"
	"github.com/facturo/facturo-backend/pkg/errors"
	"github.com/facturo/facturo-backend/pkg/logger"
	"github.com/facturo/facturo-backend/pkg/messaging"
	"github.com/facturo/facturo-backend/pkg/tenant"
)

type failingSettings struct{ err error }

func (f failingSettings) Load(context.Context, string) ([]domain.FieldDescriptor, error) {
	return nil, nil
}

func (f failingSettings) Save(context.Context, string, []domain.FieldDescriptor) error {
	return f.err
}

func newTestConsumer(settings repository.SettingsStore) (*ImportConsumer, *service.ReportService, *repository.MemoryCatalog) {
	catalog := repository.NewMemoryCatalog()
	svc := service.NewReportService(service.Dependencies{
		Stores:   catalog,
		Settings: settings,
	}, config.ReportConfig{DefaultPageSize: 10, MaxPageSize: 50})
	return &ImportConsumer{service: svc, logger: logger.Nop()}, svc, catalog
}

func importedEvent(t *testing.T, data any) *messaging.Event {
	t.Helper()
	event, err := messaging.NewEvent(messaging.EventInvoiceImported, "ingest", "corr-1", data)
	require.NoError(t, err)
	return event
}

func TestHandleInvoiceImported_InlineDocument(t *testing.T) {
	c, svc, catalog := newTestConsumer(nil)
	ctx := tenant.WithTenantID(context.Background(), "acme")

	err := c.handleInvoiceImported(ctx, importedEvent(t, messaging.InvoiceImportedEvent{
		Collection: "invoices",
		Document: map[string]any{
			"emisor":    map[string]any{"nombre": "ACME"},
			"extension": map[string]any{"placaVehiculo": "P123"},
		},
	}))
	require.NoError(t, err)

	n, err := catalog.Collection("invoices").Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	fields, err := svc.Fields(ctx, "invoices", domain.CategoryOther)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "extension.placaVehiculo", fields[0].ID)
}

func TestHandleInvoiceImported_StoredDocument(t *testing.T) {
	c, svc, catalog := newTestConsumer(nil)
	ctx := tenant.WithTenantID(context.Background(), "acme")
	catalog.Collection("invoices").Put(ctx, "doc-1", domain.Document{
		"apendice": []any{map[string]any{"campo": "ruta"}},
	})

	err := c.handleInvoiceImported(ctx, importedEvent(t, messaging.InvoiceImportedEvent{
		Collection: "invoices",
		InvoiceID:  "doc-1",
	}))
	require.NoError(t, err)

	fields, err := svc.Fields(ctx, "invoices", "")
	require.NoError(t, err)
	assert.Len(t, fields, len(schema.Defaults())+1)
}

// Imports that can never succeed are acknowledged instead of requeued.
func TestHandleInvoiceImported_PermanentFailuresAreDropped(t *testing.T) {
	c, _, _ := newTestConsumer(nil)
	ctx := context.Background()

	tests := []struct {
		name string
		data any
	}{
		{"missing invoice", messaging.InvoiceImportedEvent{Collection: "invoices", InvoiceID: "nope"}},
		{"empty import", messaging.InvoiceImportedEvent{Collection: "invoices"}},
		{"bad collection", messaging.InvoiceImportedEvent{Collection: "Bad Name", InvoiceID: "x"}},
		{"malformed payload", []string{"not", "an", "object"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, c.handleInvoiceImported(ctx, importedEvent(t, tt.data)))
		})
	}
}

func TestHandleInvoiceImported_StoreFailureIsRetried(t *testing.T) {
	c, _, _ := newTestConsumer(failingSettings{err: errors.Store(stderrors.New("connection refused"))})

	err := c.handleInvoiceImported(context.Background(), importedEvent(t, messaging.InvoiceImportedEvent{
		Collection: "invoices",
		Document:   map[string]any{"extension": map[string]any{"nota": "x"}},
	}))
	require.Error(t, err)
	assert.True(t, errors.IsStore(err))
}
