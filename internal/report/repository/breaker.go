package repository

import (
	"context"

	"github.com/facturo/facturo-backend/internal/report/domain"
	"github.com/facturo/facturo-backend/pkg/metrics"
	"github.com/facturo/facturo-backend/pkg/resilience"
)

// BreakerProvider wraps every store of a provider with one shared circuit
// breaker and call metrics.
type BreakerProvider struct {
	next    StoreProvider
	breaker *resilience.Breaker
	metrics *metrics.Metrics
}

// NewBreakerProvider decorates next.
func NewBreakerProvider(next StoreProvider, breaker *resilience.Breaker, m *metrics.Metrics) *BreakerProvider {
	return &BreakerProvider{next: next, breaker: breaker, metrics: m}
}

// For returns the guarded store of collection.
func (p *BreakerProvider) For(collection string) Store {
	return &BreakerStore{next: p.next.For(collection), breaker: p.breaker, metrics: p.metrics}
}

// BreakerStore forwards to another Store through a circuit breaker. Errors
// from the wrapped store come back unmodified and are never retried.
type BreakerStore struct {
	next    Store
	breaker *resilience.Breaker
	metrics *metrics.Metrics
}

// NewBreakerStore decorates a single store.
func NewBreakerStore(next Store, breaker *resilience.Breaker, m *metrics.Metrics) *BreakerStore {
	return &BreakerStore{next: next, breaker: breaker, metrics: m}
}

func guard[T any](s *BreakerStore, op string, fn func() (T, error)) (T, error) {
	v, err := resilience.Do(s.breaker, fn)
	s.metrics.IncStoreCall(op, err)
	return v, err
}

func (s *BreakerStore) Insert(ctx context.Context, doc domain.Document) (string, error) {
	return guard(s, "insert", func() (string, error) { return s.next.Insert(ctx, doc) })
}

func (s *BreakerStore) GetByID(ctx context.Context, id string) (*domain.Record, error) {
	return guard(s, "get", func() (*domain.Record, error) { return s.next.GetByID(ctx, id) })
}

func (s *BreakerStore) QueryAll(ctx context.Context, filters []domain.Filter, sort []domain.SortSpec) ([]domain.Record, error) {
	return guard(s, "query_all", func() ([]domain.Record, error) { return s.next.QueryAll(ctx, filters, sort) })
}

func (s *BreakerStore) Query(ctx context.Context, filters []domain.Filter, sort []domain.SortSpec, limit int, cursor *domain.Record) ([]domain.Record, error) {
	return guard(s, "query", func() ([]domain.Record, error) {
		return s.next.Query(ctx, filters, sort, limit, cursor)
	})
}

func (s *BreakerStore) Count(ctx context.Context, filters []domain.Filter) (int, error) {
	return guard(s, "count", func() (int, error) { return s.next.Count(ctx, filters) })
}

func (s *BreakerStore) Update(ctx context.Context, id string, partial domain.Document) (*domain.Record, error) {
	return guard(s, "update", func() (*domain.Record, error) { return s.next.Update(ctx, id, partial) })
}

func (s *BreakerStore) Delete(ctx context.Context, id string) error {
	_, err := guard(s, "delete", func() (struct{}, error) { return struct{}{}, s.next.Delete(ctx, id) })
	return err
}
