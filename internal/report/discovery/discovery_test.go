package discovery_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturo/facturo-backend/internal/report/discovery"
	"github.com/facturo/facturo-backend/internal/report/domain"
	"github.com/facturo/facturo-backend/internal/report/schema"
	"github.com/facturo/facturo-backend/pkg/testutil"
)

func identificationRegistry() *schema.Registry {
	return schema.New([]domain.FieldDescriptor{
		{ID: "identificacion.codigoGeneracion", Path: "identificacion.codigoGeneracion", Category: domain.CategoryIdentification, Order: 1, Selected: true},
		{ID: "identificacion.numeroControl", Path: "identificacion.numeroControl", Category: domain.CategoryIdentification, Order: 2, Selected: true},
		{ID: "identificacion.fecEmi", Path: "identificacion.fecEmi", Category: domain.CategoryIdentification, Order: 3},
	})
}

// A sample with one unseen leaf grows the registry by exactly that field,
// unselected, without touching the existing selection.
func TestDiscover_NewLeafIsAppendedUnselected(t *testing.T) {
	reg := identificationRegistry()
	sample := domain.Document{
		"identificacion": map[string]any{
			"codigoGeneracion": "A1",
			"numeroControl":    "DTE-01",
			"fecEmi":           "2024-01-02",
		},
		"emisor": map[string]any{"correo": "ventas@acme.sv"},
	}

	found := discovery.NewEngine().Discover(sample, reg)
	require.Len(t, found, 1)

	fd := found[0]
	assert.Equal(t, "emisor.correo", fd.ID)
	assert.Equal(t, "emisor.correo", fd.Path)
	assert.Equal(t, "Correo", fd.Label)
	assert.Equal(t, domain.CategoryParty, fd.Category)
	assert.Equal(t, 4, fd.Order)
	assert.False(t, fd.Selected)
	assert.True(t, fd.IsCustom)

	reg.Merge(found)
	assert.Len(t, reg.All(), 4)
	assert.Len(t, reg.Selected(), 2)
}

// Discovery is deterministic and, once merged, finds nothing new in the same
// sample.
func TestDiscover_DeterministicAndIdempotent(t *testing.T) {
	engine := discovery.NewEngine()
	reg := schema.New(nil)
	sample := testutil.InvoiceDocument("A1", 3)

	first := engine.Discover(sample, reg)
	second := engine.Discover(sample, reg)
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)

	reg.Merge(first)
	assert.Empty(t, engine.Discover(sample, reg))
}

func TestDiscover_ArraysUseFirstElementOnly(t *testing.T) {
	sample := domain.Document{
		"cuerpoDocumento": []any{
			map[string]any{"descripcion": "A"},
			map[string]any{"descripcion": "B", "soloEnSegundo": 1.0},
		},
		"vacio": []any{},
	}

	found := discovery.NewEngine().Discover(sample, schema.New(nil))
	require.Len(t, found, 1)
	assert.Equal(t, "cuerpoDocumento.0.descripcion", found[0].ID)
	assert.Equal(t, domain.CategoryItems, found[0].Category)
	assert.Equal(t, "Descripcion", found[0].Label)
}

func TestDiscover_SkipsNullsAndKnownFields(t *testing.T) {
	reg := identificationRegistry()
	sample := domain.Document{
		"identificacion": map[string]any{"codigoGeneracion": "A1"},
		"receptor":       map[string]any{"correo": nil, "nombre": "Cliente"},
	}

	found := discovery.NewEngine().Discover(sample, reg)
	require.Len(t, found, 1)
	assert.Equal(t, "receptor.nombre", found[0].ID)
}

func TestDiscover_OrdersFollowRegistryMax(t *testing.T) {
	sample := domain.Document{
		"resumen": map[string]any{"b": 1.0, "a": 2.0},
		"zeta":    "x",
	}

	found := discovery.NewEngine().Discover(sample, identificationRegistry())
	require.Len(t, found, 3)
	assert.Equal(t, []string{"resumen.a", "resumen.b", "zeta"}, []string{found[0].ID, found[1].ID, found[2].ID})
	assert.Equal(t, []int{4, 5, 6}, []int{found[0].Order, found[1].Order, found[2].Order})
	assert.Equal(t, domain.CategorySummary, found[0].Category)
	assert.Equal(t, domain.CategoryOther, found[2].Category)
}

func TestDiscover_AliasedLeafMatchesCanonicalField(t *testing.T) {
	reg := schema.New([]domain.FieldDescriptor{
		{ID: "resumen.totalIva", Path: "resumen.totalIva", Category: domain.CategorySummary, Order: 1},
	})
	sample := domain.Document{"resumen": map[string]any{"totalIVA": 13.0}}

	assert.Empty(t, discovery.NewEngine().Discover(sample, reg))

	found := discovery.NewEngine().Discover(sample, schema.New(nil))
	require.Len(t, found, 1)
	assert.Equal(t, "resumen.totalIva", found[0].ID)
}

func TestDiscover_CustomRules(t *testing.T) {
	engine := discovery.NewEngine(discovery.WithCategoryRules(discovery.CategoryRules{
		"extension": domain.CategoryOther,
		"pagos":     domain.CategorySummary,
	}))

	found := engine.Discover(domain.Document{"pagos": []any{map[string]any{"monto": 5.0}}}, schema.New(nil))
	require.Len(t, found, 1)
	assert.Equal(t, domain.CategorySummary, found[0].Category)
}

func TestDiscover_NilSample(t *testing.T) {
	assert.Empty(t, discovery.NewEngine().Discover(nil, schema.New(nil)))
}

func TestDiscover_DoesNotMutateRegistry(t *testing.T) {
	reg := identificationRegistry()
	before := reg.All()

	discovery.NewEngine().Discover(testutil.InvoiceDocument("A1", 2), reg)

	assert.Equal(t, before, reg.All())
}

func TestDiscover_AliasSpellingAlreadyRegistered(t *testing.T) {
	reg := schema.New(nil)
	require.True(t, reg.AddCustom(domain.FieldDescriptor{ID: "resumen.totalIVA", Category: domain.CategorySummary}))

	sample := domain.Document{"resumen": map[string]any{"totalIva": 13.0, "totalIVA": 13.0}}
	assert.Empty(t, discovery.NewEngine().Discover(sample, reg))
}

func TestDiscover_SkipsUnaddressableKeys(t *testing.T) {
	sample := domain.Document{
		"a.b":    2.0,
		"":       "blank",
		"emisor": map[string]any{"nit.dv": "7", "nombre": "ACME"},
	}

	found := discovery.NewEngine().Discover(sample, schema.New(nil))
	require.Len(t, found, 1)
	assert.Equal(t, "emisor.nombre", found[0].ID)
}
