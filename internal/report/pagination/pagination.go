// Package pagination serves numbered pages from stores that only offer
// "limit" and "start after document" reads.
//
// A page is located by counting the matching documents, reading the
// (page-1)*pageSize documents that precede it, and resuming after the last of
// them. Reaching page p therefore transfers p*pageSize documents, so walking
// every page of a result costs O(pages²) reads. That is acceptable for report
// screens that rarely go past the first pages; deep pagination needs a store
// with native offsets or client-held cursors.
package pagination

import (
	"context"
	"errors"
	"time"

	"github.com/facturo/facturo-backend/internal/report/domain"
	"github.com/facturo/facturo-backend/pkg/logger"
	"github.com/facturo/facturo-backend/pkg/metrics"
)

// ErrInvalidPageSize is returned when a query asks for pages of fewer than
// one document.
var ErrInvalidPageSize = errors.New("page size must be positive")

// Store is the read side of a document store.
type Store interface {
	Count(ctx context.Context, filters []domain.Filter) (int, error)
	// Query returns at most limit documents matching filters in sort order,
	// starting right after cursor when it is non-nil.
	Query(ctx context.Context, filters []domain.Filter, sort []domain.SortSpec, limit int, cursor *domain.Record) ([]domain.Record, error)
}

// DefaultSort orders by document id when the caller gives no order, so that
// skipping and resuming see the same sequence.
var DefaultSort = []domain.SortSpec{{Field: domain.DocumentIDField, Direction: domain.Asc}}

// Engine answers page queries. It keeps no state between calls and is safe
// for concurrent use.
type Engine struct {
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewEngine creates a pagination engine. Both arguments may be nil.
func NewEngine(log *logger.Logger, m *metrics.Metrics) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{logger: log.WithComponent("pagination"), metrics: m}
}

// TotalPages is max(1, ceil(count/pageSize)).
func TotalPages(count, pageSize int) int {
	if pageSize <= 0 || count <= 0 {
		return 1
	}
	return (count + pageSize - 1) / pageSize
}

// ClampPage moves page into [1, totalPages].
func ClampPage(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

// GetPage returns the requested page, clamped into range. Store errors are
// returned as they are, without retries.
func (e *Engine) GetPage(ctx context.Context, store Store, q domain.PageQuery) (result domain.PageResult[domain.Record], err error) {
	if q.PageSize <= 0 {
		return domain.PageResult[domain.Record]{}, ErrInvalidPageSize
	}

	start := time.Now()
	defer func() { e.metrics.ObservePageQuery(time.Since(start), err) }()

	total, err := store.Count(ctx, q.Filters)
	if err != nil {
		return domain.PageResult[domain.Record]{}, err
	}

	totalPages := TotalPages(total, q.PageSize)
	page := ClampPage(q.Page, totalPages)

	result = domain.PageResult[domain.Record]{
		Data:       []domain.Record{},
		TotalCount: total,
		TotalPages: totalPages,
		Page:       page,
		PageSize:   q.PageSize,
	}

	sort := q.Sort
	if len(sort) == 0 {
		sort = DefaultSort
	}

	if page == 1 {
		docs, err := store.Query(ctx, q.Filters, sort, q.PageSize, nil)
		if err != nil {
			return domain.PageResult[domain.Record]{}, err
		}
		result.Data = docs
		return result, nil
	}

	skip := (page - 1) * q.PageSize
	skipped, err := store.Query(ctx, q.Filters, sort, skip, nil)
	if err != nil {
		return domain.PageResult[domain.Record]{}, err
	}
	if len(skipped) < skip {
		// The collection shrank between the count and the skip read.
		e.logger.Debug().
			Int("page", page).
			Int("expected", skip).
			Int("got", len(skipped)).
			Msg("skip read came up short")
		return result, nil
	}

	cursor := skipped[len(skipped)-1]
	docs, err := store.Query(ctx, q.Filters, sort, q.PageSize, &cursor)
	if err != nil {
		return domain.PageResult[domain.Record]{}, err
	}
	result.Data = docs
	return result, nil
}
