package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/facturo/facturo-backend/internal/report/domain"
	"github.com/facturo/facturo-backend/pkg/errors"
	"github.com/facturo/facturo-backend/pkg/tenant"
)

// MemoryStore keeps one collection in process memory. It follows the same
// filter and ordering rules as DocumentStore and backs the CLI and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[string]map[string]*domain.Record
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory collection.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants: make(map[string]map[string]*domain.Record),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Put stores doc under id, replacing any previous version. Fixtures use it
// to control ids.
func (s *MemoryStore) Put(ctx context.Context, id string, doc domain.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.scope(ctx)[id] = &domain.Record{ID: id, Data: cloneDocument(doc), CreatedAt: now, UpdatedAt: now}
}

func (s *MemoryStore) Insert(ctx context.Context, doc domain.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.New().String()
	s.Put(ctx, id, doc)
	return id, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (*domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.tenants[tenant.TenantIDOrDefault(ctx)][id]
	if !ok {
		return nil, nil
	}
	out := cloneRecord(rec)
	return &out, nil
}

func (s *MemoryStore) QueryAll(ctx context.Context, filters []domain.Filter, sort []domain.SortSpec) ([]domain.Record, error) {
	return s.Query(ctx, filters, sort, 0, nil)
}

func (s *MemoryStore) Query(ctx context.Context, filters []domain.Filter, sortSpec []domain.SortSpec, limit int, cursor *domain.Record) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	order := withTiebreak(sortSpec)
	matched := s.filter(ctx, filters)
	sort.Slice(matched, func(i, j int) bool {
		return compareRecords(matched[i], matched[j], order) < 0
	})

	out := make([]domain.Record, 0)
	for _, rec := range matched {
		if cursor != nil && compareRecords(rec, cursor, order) <= 0 {
			continue
		}
		out = append(out, cloneRecord(rec))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context, filters []domain.Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.filter(ctx, filters)), nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, partial domain.Document) (*domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.scope(ctx)[id]
	if !ok {
		return nil, errors.NotFound("invoice")
	}
	mergeDocuments(rec.Data, cloneDocument(partial))
	rec.UpdatedAt = s.now()

	out := cloneRecord(rec)
	return &out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	scope := s.scope(ctx)
	if _, ok := scope[id]; !ok {
		return errors.NotFound("invoice")
	}
	delete(scope, id)
	return nil
}

// scope returns the tenant's documents, creating the map; callers hold the
// write lock.
func (s *MemoryStore) scope(ctx context.Context) map[string]*domain.Record {
	t := tenant.TenantIDOrDefault(ctx)
	docs, ok := s.tenants[t]
	if !ok {
		docs = make(map[string]*domain.Record)
		s.tenants[t] = docs
	}
	return docs
}

func (s *MemoryStore) filter(ctx context.Context, filters []domain.Filter) []*domain.Record {
	docs := s.tenants[tenant.TenantIDOrDefault(ctx)]
	out := make([]*domain.Record, 0, len(docs))
	for _, rec := range docs {
		if matchesAll(rec, filters) {
			out = append(out, rec)
		}
	}
	return out
}

// MemoryCatalog hands out one MemoryStore per collection name.
type MemoryCatalog struct {
	mu     sync.Mutex
	stores map[string]*MemoryStore
}

// NewMemoryCatalog creates an empty catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{stores: make(map[string]*MemoryStore)}
}

// For returns the store of collection, creating it on first use.
func (c *MemoryCatalog) For(collection string) Store {
	return c.Collection(collection)
}

// Collection is For with the concrete type.
func (c *MemoryCatalog) Collection(collection string) *MemoryStore {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.stores[collection]
	if !ok {
		s = NewMemoryStore()
		c.stores[collection] = s
	}
	return s
}

func cloneRecord(rec *domain.Record) domain.Record {
	out := *rec
	out.Data = cloneDocument(rec.Data)
	return out
}

func cloneDocument(doc domain.Document) domain.Document {
	if doc == nil {
		return domain.Document{}
	}
	return cloneValue(doc).(map[string]any)
}

func cloneValue(v any) any {
	switch n := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, val := range n {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, val := range n {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}
