package settingsfile_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturo/facturo-backend/internal/report/domain"
	"github.com/facturo/facturo-backend/internal/report/schema"
	"github.com/facturo/facturo-backend/internal/report/settingsfile"
	"github.com/facturo/facturo-backend/pkg/errors"
	"github.com/facturo/facturo-backend/pkg/tenant"
)

func newStore(t *testing.T) *settingsfile.Store {
	t.Helper()
	return settingsfile.New(filepath.Join(t.TempDir(), "fields.yaml"))
}

func TestLoad_MissingFile(t *testing.T) {
	s := newStore(t)

	fields, err := s.Load(context.Background(), "invoices")
	require.NoError(t, err)
	assert.Nil(t, fields)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	want := schema.Defaults()
	want[0].Selected = false

	require.NoError(t, s.Save(ctx, "invoices", want))

	got, err := s.Load(ctx, "invoices")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	other, err := s.Load(ctx, "credit-notes")
	require.NoError(t, err)
	assert.Nil(t, other)

	_, err = os.Stat(s.Path())
	assert.NoError(t, err)
}

func TestSave_ScopesByTenant(t *testing.T) {
	s := newStore(t)
	acme := tenant.WithTenantID(context.Background(), "acme")
	globex := tenant.WithTenantID(context.Background(), "globex")

	require.NoError(t, s.Save(acme, "invoices", []domain.FieldDescriptor{{ID: "a", Path: "a", Order: 1}}))
	require.NoError(t, s.Save(globex, "invoices", []domain.FieldDescriptor{{ID: "b", Path: "b", Order: 1}}))

	got, err := s.Load(acme, "invoices")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	none, err := s.Load(context.Background(), "invoices")
	require.NoError(t, err)
	assert.Nil(t, none)
}

// An empty selection is saved, not confused with "never saved".
func TestSave_EmptyFieldSet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "invoices", nil))

	got, err := s.Load(ctx, "invoices")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLoad_CorruptFile(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("tenants: [unterminated"), 0o644))

	_, err := s.Load(context.Background(), "invoices")
	require.Error(t, err)
	assert.True(t, errors.IsStore(err))
}

func TestLoad_NewerVersion(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("version: 99\ntenants: {}\n"), 0o644))

	_, err := s.Load(context.Background(), "invoices")
	assert.True(t, errors.IsStore(err))
}

// Two stores on the same path stand in for two processes.
func TestSave_ConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fields.yaml")
	stores := []*settingsfile.Store{settingsfile.New(path), settingsfile.New(path)}
	collections := []string{"c0", "c1", "c2", "c3", "c4", "c5", "c6", "c7"}

	var wg sync.WaitGroup
	for i, coll := range collections {
		wg.Add(1)
		go func(s *settingsfile.Store, coll string) {
			defer wg.Done()
			fields := []domain.FieldDescriptor{{ID: coll, Path: coll, Order: 1}}
			assert.NoError(t, s.Save(context.Background(), coll, fields))
		}(stores[i%2], coll)
	}
	wg.Wait()

	for _, coll := range collections {
		got, err := stores[0].Load(context.Background(), coll)
		require.NoError(t, err)
		require.Len(t, got, 1, coll)
		assert.Equal(t, coll, got[0].ID)
	}
}
