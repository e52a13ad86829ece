package repository

import (
	"context"

	"github.com/facturo/facturo-backend/internal/report/domain"
)

// Store is a collection of invoice documents. Every method is scoped to the
// tenant carried by ctx.
type Store interface {
	Insert(ctx context.Context, doc domain.Document) (string, error)
	// GetByID returns nil, nil when the document does not exist.
	GetByID(ctx context.Context, id string) (*domain.Record, error)
	// QueryAll returns every matching document, unbounded.
	QueryAll(ctx context.Context, filters []domain.Filter, sort []domain.SortSpec) ([]domain.Record, error)
	// Query returns at most limit matching documents, starting right after
	// cursor when it is non-nil. A limit <= 0 means no limit.
	Query(ctx context.Context, filters []domain.Filter, sort []domain.SortSpec, limit int, cursor *domain.Record) ([]domain.Record, error)
	Count(ctx context.Context, filters []domain.Filter) (int, error)
	// Update deep-merges partial into the stored document.
	Update(ctx context.Context, id string, partial domain.Document) (*domain.Record, error)
	Delete(ctx context.Context, id string) error
}

// StoreProvider hands out the store of a named collection.
type StoreProvider interface {
	For(collection string) Store
}

// SettingsStore persists the field registry of each collection.
type SettingsStore interface {
	// Load returns nil, nil when nothing was saved yet.
	Load(ctx context.Context, collection string) ([]domain.FieldDescriptor, error)
	Save(ctx context.Context, collection string, fields []domain.FieldDescriptor) error
}

// withTiebreak appends an ascending id clause unless sort already ends on
// the id, so equal sort keys still have one stable order.
func withTiebreak(sort []domain.SortSpec) []domain.SortSpec {
	for _, s := range sort {
		if s.Field == domain.DocumentIDField {
			return sort
		}
	}
	out := make([]domain.SortSpec, 0, len(sort)+1)
	out = append(out, sort...)
	return append(out, domain.SortSpec{Field: domain.DocumentIDField, Direction: domain.Asc})
}

// mergeDocuments copies src into dst, descending into nested objects.
func mergeDocuments(dst, src map[string]any) {
	for k, v := range src {
		if sv, ok := v.(map[string]any); ok {
			if dv, ok := dst[k].(map[string]any); ok {
				mergeDocuments(dv, sv)
				continue
			}
		}
		dst[k] = v
	}
}
