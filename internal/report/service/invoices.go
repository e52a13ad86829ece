package service

import (
	"context"
	stderrors "errors"
	"strconv"

	"github.com/facturo/facturo-backend/internal/report/domain"
	"github.com/facturo/facturo-backend/internal/report/pagination"
	"github.com/facturo/facturo-backend/pkg/docpath"
	"github.com/facturo/facturo-backend/pkg/errors"
)

// CreateInvoice stores doc and, with auto discovery on, merges any new
// fields it carries.
func (s *ReportService) CreateInvoice(ctx context.Context, collection string, doc domain.Document) (*domain.Record, error) {
	store, err := s.store(collection)
	if err != nil {
		return nil, err
	}
	if len(doc) == 0 {
		return nil, errors.BadRequest("document is empty")
	}

	id, err := store.Insert(ctx, doc)
	if err != nil {
		return nil, err
	}
	rec, err := store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = &domain.Record{ID: id, Data: doc}
	}

	s.publisher.PublishInvoiceCreated(ctx, collection, id)

	if s.cfg.AutoDiscover {
		if _, err := s.DiscoverFields(ctx, collection, doc, true); err != nil {
			s.logger.Ctx(ctx).WithCollection(collection).Warn().Err(err).Str("invoice_id", id).Msg("auto discovery failed")
		}
	}
	return rec, nil
}

// GetInvoice returns a stored document or a not found error.
func (s *ReportService) GetInvoice(ctx context.Context, collection, id string) (*domain.Record, error) {
	store, err := s.store(collection)
	if err != nil {
		return nil, err
	}
	rec, err := store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.NotFound("invoice")
	}
	return rec, nil
}

// UpdateInvoice deep-merges partial into the stored document.
func (s *ReportService) UpdateInvoice(ctx context.Context, collection, id string, partial domain.Document) (*domain.Record, error) {
	store, err := s.store(collection)
	if err != nil {
		return nil, err
	}
	if len(partial) == 0 {
		return nil, errors.BadRequest("update is empty")
	}

	rec, err := store.Update(ctx, id, partial)
	if err != nil {
		return nil, err
	}
	s.publisher.PublishInvoiceUpdated(ctx, collection, id, partial)
	return rec, nil
}

func (s *ReportService) DeleteInvoice(ctx context.Context, collection, id string) error {
	store, err := s.store(collection)
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, id); err != nil {
		return err
	}
	s.publisher.PublishInvoiceDeleted(ctx, collection, id)
	return nil
}

// ListInvoices returns one page of documents. A zero page size uses the
// configured default and larger sizes are capped at the maximum.
func (s *ReportService) ListInvoices(ctx context.Context, collection string, q domain.PageQuery) (domain.PageResult[domain.Record], error) {
	store, err := s.store(collection)
	if err != nil {
		return domain.PageResult[domain.Record]{}, err
	}
	q, err = s.normalize(q)
	if err != nil {
		return domain.PageResult[domain.Record]{}, err
	}

	res, err := s.pages.GetPage(ctx, store, q)
	if stderrors.Is(err, pagination.ErrInvalidPageSize) {
		return res, errors.BadRequest(err.Error()).WithKey("errors.invalid_page_size", nil)
	}
	return res, err
}

func (s *ReportService) normalize(q domain.PageQuery) (domain.PageQuery, error) {
	switch {
	case q.PageSize == 0:
		q.PageSize = s.cfg.DefaultPageSize
	case q.PageSize < 0:
		return q, errors.BadRequest(pagination.ErrInvalidPageSize.Error())
	case q.PageSize > s.cfg.MaxPageSize:
		q.PageSize = s.cfg.MaxPageSize
	}

	q.Sort = append([]domain.SortSpec(nil), q.Sort...)

	details := map[string]string{}
	for i, f := range q.Filters {
		if !validQueryField(f.Field) {
			details[indexed("filters", i, "field")] = "invalid field path"
		}
		if !f.Operator.Valid() {
			details[indexed("filters", i, "operator")] = "unsupported operator"
		}
	}
	for i, srt := range q.Sort {
		if !validQueryField(srt.Field) {
			details[indexed("sort", i, "field")] = "invalid field path"
		}
		switch srt.Direction {
		case domain.Asc, domain.Desc:
		case "":
			q.Sort[i].Direction = domain.Asc
		default:
			details[indexed("sort", i, "direction")] = "must be asc or desc"
		}
	}
	if len(details) > 0 {
		return q, errors.Validation(details)
	}
	return q, nil
}

func validQueryField(field string) bool {
	return field == domain.DocumentIDField || docpath.Valid(field)
}

func indexed(list string, i int, field string) string {
	return list + "[" + strconv.Itoa(i) + "]." + field
}
