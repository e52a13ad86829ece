package repository_test

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturo/facturo-backend/internal/report/domain"
	"github.com/facturo/facturo-backend/internal/report/repository"
	"github.com/facturo/facturo-backend/pkg/config"
	"github.com/facturo/facturo-backend/pkg/errors"
	"github.com/facturo/facturo-backend/pkg/logger"
	"github.com/facturo/facturo-backend/pkg/metrics"
	"github.com/facturo/facturo-backend/pkg/resilience"
)

// flakyStore fails Count with err and counts calls.
type flakyStore struct {
	repository.Store
	err   error
	calls int
}

func (s *flakyStore) Count(context.Context, []domain.Filter) (int, error) {
	s.calls++
	return 0, s.err
}

func newTestBreaker() *resilience.Breaker {
	return resilience.NewBreaker("documents", config.BreakerConfig{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  2,
	}, logger.Nop(), nil)
}

func TestBreakerStore_PassesThrough(t *testing.T) {
	mem := repository.NewMemoryStore()
	store := repository.NewBreakerStore(mem, newTestBreaker(), metrics.New())
	ctx := context.Background()

	id, err := store.Insert(ctx, domain.Document{"n": 1.0})
	require.NoError(t, err)

	rec, err := store.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, rec)

	_, err = store.Update(ctx, id, domain.Document{"n": 2.0})
	require.NoError(t, err)

	n, err := store.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, store.Delete(ctx, id))
	assert.True(t, errors.Is(store.Delete(ctx, id), errors.ErrNotFound))
}

func TestBreakerStore_OpensOnStoreErrors(t *testing.T) {
	boom := errors.Store(stderrors.New("connection reset"))
	flaky := &flakyStore{err: boom}
	store := repository.NewBreakerStore(flaky, newTestBreaker(), nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := store.Count(ctx, nil)
		assert.Same(t, boom, err)
	}

	_, err := store.Count(ctx, nil)
	assert.True(t, errors.IsStore(err))
	assert.ErrorIs(t, err, resilience.ErrOpen)
	assert.Equal(t, 2, flaky.calls)
}

func TestBreakerStore_ClientErrorsDoNotTrip(t *testing.T) {
	flaky := &flakyStore{err: errors.BadRequest("bad filter")}
	store := repository.NewBreakerStore(flaky, newTestBreaker(), nil)

	for i := 0; i < 5; i++ {
		_, err := store.Count(context.Background(), nil)
		assert.True(t, errors.Is(err, errors.ErrBadRequest))
	}
	assert.Equal(t, 5, flaky.calls)
}

func TestBreakerProvider_SharesBreaker(t *testing.T) {
	catalog := repository.NewMemoryCatalog()
	provider := repository.NewBreakerProvider(catalog, newTestBreaker(), nil)

	_, err := provider.For("invoices").Insert(context.Background(), domain.Document{"n": 1.0})
	require.NoError(t, err)

	n, err := catalog.Collection("invoices").Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
