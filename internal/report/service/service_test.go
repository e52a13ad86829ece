package service_test

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturo/facturo-backend/internal/report/domain"
	"github.com/facturo/facturo-backend/internal/report/events"
	"github.com/facturo/facturo-backend/internal/report/repository"
	"github.com/facturo/facturo-backend/internal/report/schema"
	"github.com/facturo/facturo-backend/internal/report/service"
	"github.com/facturo/facturo-backend/pkg/config"
	"github.com/facturo/facturo-backend/pkg/errors"
	"github.com/facturo/facturo-backend/pkg/messaging"
	"github.com/facturo/facturo-backend/pkg/metrics"
	"github.com/facturo/facturo-backend/pkg/tenant"
	"github.com/facturo/facturo-backend/pkg/testutil"
)

// memorySettings is a SettingsStore keyed by tenant and collection.
type memorySettings struct {
	mu      sync.Mutex
	saved   map[string][]domain.FieldDescriptor
	loads   int
	saveErr error
}

func newMemorySettings() *memorySettings {
	return &memorySettings{saved: map[string][]domain.FieldDescriptor{}}
}

func (m *memorySettings) key(ctx context.Context, collection string) string {
	return tenant.TenantIDOrDefault(ctx) + "/" + collection
}

func (m *memorySettings) Load(ctx context.Context, collection string) ([]domain.FieldDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	return m.saved[m.key(ctx, collection)], nil
}

func (m *memorySettings) Save(ctx context.Context, collection string, fields []domain.FieldDescriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved[m.key(ctx, collection)] = fields
	return nil
}

type fixture struct {
	svc       *service.ReportService
	catalog   *repository.MemoryCatalog
	settings  *memorySettings
	published *testutil.MockPublisher
}

func newFixture(t *testing.T, cfg config.ReportConfig) *fixture {
	t.Helper()
	f := &fixture{
		catalog:   repository.NewMemoryCatalog(),
		settings:  newMemorySettings(),
		published: testutil.NewMockPublisher(),
	}
	f.svc = service.NewReportService(service.Dependencies{
		Stores:    f.catalog,
		Settings:  f.settings,
		Publisher: events.NewWithPublisher(f.published, nil),
		Metrics:   metrics.New(),
	}, cfg)
	return f
}

func defaultConfig() config.ReportConfig {
	return config.ReportConfig{DefaultPageSize: 10, MaxPageSize: 50, Locale: "es"}
}

func fieldIDs(fields []domain.FieldDescriptor) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.ID
	}
	return out
}

// ============================================================================
// Field registry
// ============================================================================

func TestFields_DefaultsUntilSaved(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	fields, err := f.svc.Fields(ctx, "invoices", "")
	require.NoError(t, err)
	assert.Len(t, fields, len(schema.Defaults()))

	party, err := f.svc.Fields(ctx, "invoices", domain.CategoryParty)
	require.NoError(t, err)
	for _, fd := range party {
		assert.Equal(t, domain.CategoryParty, fd.Category)
	}

	_, err = f.svc.Fields(ctx, "invoices", "nope")
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	_, err = f.svc.Fields(ctx, "Not Valid!", "")
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

func TestSetSelected_PersistsAndValidates(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	selected, err := f.svc.SetSelected(ctx, "invoices", []string{"resumen.totalPagar", "emisor.nombre"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"resumen.totalPagar", "emisor.nombre"}, fieldIDs(selected))
	assert.Len(t, f.settings.saved["default/invoices"], len(schema.Defaults()))

	_, err = f.svc.SetSelected(ctx, "invoices", []string{"emisor.nombre", "missing.field"})
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Details, "missing.field")

	still, err := f.svc.SelectedFields(ctx, "invoices")
	require.NoError(t, err)
	assert.Len(t, still, 2)
}

func TestToggleField(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	fd, err := f.svc.ToggleField(ctx, "invoices", "resumen.totalPagar")
	require.NoError(t, err)
	assert.True(t, fd.Selected)

	_, err = f.svc.ToggleField(ctx, "invoices", "nope")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestAddCustomField_Conflict(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	fd, err := f.svc.AddCustomField(ctx, "invoices", service.AddFieldRequest{ID: "apendice.0.valor", Selected: true})
	require.NoError(t, err)
	assert.True(t, fd.IsCustom)
	assert.Equal(t, "Valor", fd.Label)
	assert.Equal(t, domain.CategoryOther, fd.Category)

	_, err = f.svc.AddCustomField(ctx, "invoices", service.AddFieldRequest{ID: "apendice.0.valor"})
	assert.True(t, errors.Is(err, errors.ErrConflict))

	_, err = f.svc.AddCustomField(ctx, "invoices", service.AddFieldRequest{ID: "bad..path"})
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

func TestReorderFields(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	before, err := f.svc.Fields(ctx, "invoices", domain.CategoryItems)
	require.NoError(t, err)

	after, err := f.svc.ReorderFields(ctx, "invoices", service.ReorderRequest{Category: domain.CategoryItems, From: 0, To: len(before) - 1})
	require.NoError(t, err)
	assert.Equal(t, before[0].ID, after[len(after)-1].ID)

	_, err = f.svc.ReorderFields(ctx, "invoices", service.ReorderRequest{Category: domain.CategoryItems, From: 0, To: 99})
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

func TestResetFields_PublishesEvent(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	_, err := f.svc.AddCustomField(ctx, "invoices", service.AddFieldRequest{ID: "extra"})
	require.NoError(t, err)

	fields, err := f.svc.ResetFields(ctx, "invoices")
	require.NoError(t, err)
	assert.Equal(t, schema.Defaults(), fields)
	f.published.AssertEventPublished(t, messaging.EventFieldsReset)
}

func TestMutate_SaveFailureRestoresRegistry(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()
	f.settings.saveErr = errors.Store(stderrors.New("disk full"))

	_, err := f.svc.ToggleField(ctx, "invoices", "resumen.totalPagar")
	assert.True(t, errors.IsStore(err))

	fd := findField(t, f.svc, ctx, "resumen.totalPagar")
	assert.False(t, fd.Selected)
}

func TestRegistries_ScopedPerTenantAndCollection(t *testing.T) {
	f := newFixture(t, defaultConfig())
	acme := tenant.WithTenantID(context.Background(), "acme")
	globex := tenant.WithTenantID(context.Background(), "globex")

	_, err := f.svc.SetSelected(acme, "invoices", []string{"emisor.nombre"})
	require.NoError(t, err)

	other, err := f.svc.SelectedFields(globex, "invoices")
	require.NoError(t, err)
	assert.Len(t, other, 8)

	credit, err := f.svc.SelectedFields(acme, "credit-notes")
	require.NoError(t, err)
	assert.Len(t, credit, 8)
}

func TestRegistry_LoadsSavedSettingsOnce(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.settings.saved["default/invoices"] = []domain.FieldDescriptor{
		{ID: "emisor.nombre", Path: "emisor.nombre", Category: domain.CategoryParty, Selected: true, Order: 1},
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			selected, err := f.svc.SelectedFields(context.Background(), "invoices")
			assert.NoError(t, err)
			assert.Equal(t, []string{"emisor.nombre"}, fieldIDs(selected))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, f.settings.loads)
}

func findField(t *testing.T, svc *service.ReportService, ctx context.Context, id string) domain.FieldDescriptor {
	t.Helper()
	fields, err := svc.Fields(ctx, "invoices", "")
	require.NoError(t, err)
	for _, fd := range fields {
		if fd.ID == id {
			return fd
		}
	}
	t.Fatalf("field %s not found", id)
	return domain.FieldDescriptor{}
}

// ============================================================================
// Discovery
// ============================================================================

func TestDiscoverFields_PreviewDoesNotMerge(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()
	sample := domain.Document{"apendice": []any{map[string]any{"campo": "x", "valor": "y"}}}

	found, err := f.svc.DiscoverFields(ctx, "invoices", sample, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"apendice.0.campo", "apendice.0.valor"}, fieldIDs(found))
	f.published.AssertNoEventsPublished(t)

	again, err := f.svc.DiscoverFields(ctx, "invoices", sample, true)
	require.NoError(t, err)
	assert.Equal(t, fieldIDs(found), fieldIDs(again))
	f.published.AssertEventPublished(t, messaging.EventFieldsDiscovered)

	none, err := f.svc.DiscoverFields(ctx, "invoices", sample, true)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDiscoverFromInvoice(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()
	f.catalog.Collection("invoices").Put(ctx, "inv-1", domain.Document{"extension": map[string]any{"placaVehiculo": "P123"}})

	found, err := f.svc.DiscoverFromInvoice(ctx, "invoices", "inv-1", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"extension.placaVehiculo"}, fieldIDs(found))

	_, err = f.svc.DiscoverFromInvoice(ctx, "invoices", "missing", true)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

// ============================================================================
// Invoices
// ============================================================================

func TestInvoiceLifecycle(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	rec, err := f.svc.CreateInvoice(ctx, "invoices", testutil.InvoiceDocument("A1", 1))
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)

	updated, err := f.svc.UpdateInvoice(ctx, "invoices", rec.ID, domain.Document{"receptor": map[string]any{"correo": "c@d.sv"}})
	require.NoError(t, err)
	assert.Equal(t, "Cliente Final", updated.Data["receptor"].(map[string]any)["nombre"])

	require.NoError(t, f.svc.DeleteInvoice(ctx, "invoices", rec.ID))
	_, err = f.svc.GetInvoice(ctx, "invoices", rec.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = f.svc.UpdateInvoice(ctx, "invoices", rec.ID, domain.Document{"x": 1.0})
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	types := []string{}
	for _, e := range f.published.Events() {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{messaging.EventInvoiceCreated, messaging.EventInvoiceUpdated, messaging.EventInvoiceDeleted}, types)
}

func TestCreateInvoice_AutoDiscover(t *testing.T) {
	cfg := defaultConfig()
	cfg.AutoDiscover = true
	f := newFixture(t, cfg)
	ctx := context.Background()

	_, err := f.svc.CreateInvoice(ctx, "invoices", domain.Document{"emisor": map[string]any{"nombre": "ACME", "telefono": "2222"}})
	require.NoError(t, err)

	fd := findField(t, f.svc, ctx, "emisor.telefono")
	assert.Equal(t, domain.CategoryParty, fd.Category)
	assert.False(t, fd.Selected)
}

func TestCreateInvoice_RejectsEmpty(t *testing.T) {
	f := newFixture(t, defaultConfig())
	_, err := f.svc.CreateInvoice(context.Background(), "invoices", domain.Document{})
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

func seedInvoices(t *testing.T, f *fixture, n int) {
	t.Helper()
	store := f.catalog.Collection("invoices")
	for i := 0; i < n; i++ {
		store.Put(context.Background(), fmt.Sprintf("inv-%02d", i), testutil.InvoiceDocument(fmt.Sprintf("C%02d", i), i%3+1))
	}
}

func TestListInvoices_ClampsOutOfRangePage(t *testing.T) {
	f := newFixture(t, defaultConfig())
	seedInvoices(t, f, 23)

	res, err := f.svc.ListInvoices(context.Background(), "invoices", domain.PageQuery{Page: 5, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 23, res.TotalCount)
	assert.Equal(t, 3, res.TotalPages)
	assert.Equal(t, 3, res.Page)
	assert.Len(t, res.Data, 3)
}

func TestListInvoices_PageSizeDefaults(t *testing.T) {
	f := newFixture(t, defaultConfig())
	seedInvoices(t, f, 60)
	ctx := context.Background()

	res, err := f.svc.ListInvoices(ctx, "invoices", domain.PageQuery{Page: 1})
	require.NoError(t, err)
	assert.Equal(t, 10, res.PageSize)

	res, err = f.svc.ListInvoices(ctx, "invoices", domain.PageQuery{Page: 1, PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, 50, res.PageSize)
	assert.Len(t, res.Data, 50)

	_, err = f.svc.ListInvoices(ctx, "invoices", domain.PageQuery{Page: 1, PageSize: -1})
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

func TestListInvoices_ValidatesQuery(t *testing.T) {
	f := newFixture(t, defaultConfig())

	_, err := f.svc.ListInvoices(context.Background(), "invoices", domain.PageQuery{
		Page:    1,
		Filters: []domain.Filter{{Field: "a..b", Operator: "~"}},
		Sort:    []domain.SortSpec{{Field: "x", Direction: "up"}},
	})
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, map[string]string{
		"filters[0].field":    "invalid field path",
		"filters[0].operator": "unsupported operator",
		"sort[0].direction":   "must be asc or desc",
	}, appErr.Details)
}

func TestListInvoices_SortAndFilter(t *testing.T) {
	f := newFixture(t, defaultConfig())
	seedInvoices(t, f, 9)

	res, err := f.svc.ListInvoices(context.Background(), "invoices", domain.PageQuery{
		Page:     1,
		PageSize: 10,
		Filters:  []domain.Filter{{Field: "identificacion.codigoGeneracion", Operator: domain.OpIn, Value: []any{"C01", "C04", "C07"}}},
		Sort:     []domain.SortSpec{{Field: "identificacion.codigoGeneracion", Direction: domain.Desc}},
	})
	require.NoError(t, err)
	require.Len(t, res.Data, 3)
	assert.Equal(t, "inv-07", res.Data[0].ID)
	assert.Equal(t, "inv-01", res.Data[2].ID)
}

// ============================================================================
// Reports
// ============================================================================

func TestReport_DocumentLevelSelection(t *testing.T) {
	f := newFixture(t, defaultConfig())
	seedInvoices(t, f, 4)

	page, err := f.svc.Report(context.Background(), "invoices", domain.PageQuery{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.False(t, page.LineItems)
	assert.Len(t, page.Rows, 4)
	assert.Len(t, page.Columns, 8)
	assert.Equal(t, "15/03/2024", page.Rows[0]["identificacion.fecEmi"])
	assert.Equal(t, "Contado", page.Rows[0]["resumen.condicionOperacion"])
}

func TestReport_LineItemSelectionExpandsRows(t *testing.T) {
	f := newFixture(t, defaultConfig())
	seedInvoices(t, f, 4) // 1+2+3+1 items
	ctx := context.Background()

	_, err := f.svc.SetSelected(ctx, "invoices", []string{"identificacion.codigoGeneracion", "cuerpoDocumento.0.precioUni"})
	require.NoError(t, err)

	page, err := f.svc.Report(ctx, "invoices", domain.PageQuery{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.True(t, page.LineItems)
	assert.Equal(t, 4, page.TotalCount)
	assert.Len(t, page.Rows, 7)
	assert.Equal(t, "$10.00", page.Rows[0]["cuerpoDocumento.0.precioUni"])
}

func TestExportCSV(t *testing.T) {
	f := newFixture(t, defaultConfig())
	seedInvoices(t, f, 25)
	ctx := context.Background()

	_, err := f.svc.SetSelected(ctx, "invoices", []string{"identificacion.codigoGeneracion", "emisor.nombre"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.svc.ExportCSV(ctx, "invoices", domain.PageQuery{}, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 26)
	assert.Contains(t, lines[1], "C00")

	_, err = f.svc.SetSelected(ctx, "invoices", nil)
	require.NoError(t, err)
	assert.True(t, errors.Is(f.svc.ExportCSV(ctx, "invoices", domain.PageQuery{}, &buf), errors.ErrBadRequest))
}

func TestImportInvoice(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	found, err := f.svc.ImportInvoice(ctx, "invoices", "", domain.Document{"apendice": map[string]any{"nota": "x"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"apendice.nota"}, fieldIDs(found))

	n, err := f.catalog.Collection("invoices").Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.svc.ImportInvoice(ctx, "invoices", "", nil)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}
