package service

import (
	"context"
	"io"

	"github.com/facturo/facturo-backend/internal/report/domain"
	"github.com/facturo/facturo-backend/internal/report/projection"
	"github.com/facturo/facturo-backend/pkg/errors"
)

// ReportPage is one page of formatted report rows.
type ReportPage struct {
	domain.ReportTable
	LineItems  bool `json:"line_items"`
	TotalCount int  `json:"total_count"`
	TotalPages int  `json:"total_pages"`
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
}

// Report pages through documents and flattens each page onto the selected
// fields. Totals count documents, not rows, so a page holds more rows than
// its size when line items are selected.
func (s *ReportService) Report(ctx context.Context, collection string, q domain.PageQuery) (*ReportPage, error) {
	fields, err := s.SelectedFields(ctx, collection)
	if err != nil {
		return nil, err
	}

	page, err := s.ListInvoices(ctx, collection, q)
	if err != nil {
		return nil, err
	}

	rows := s.projection.FlattenFormatted(documents(page.Data), fields)
	s.metrics.AddRowsProjected(len(rows))

	return &ReportPage{
		ReportTable: domain.ReportTable{
			Columns: domain.ColumnsFor(fields),
			Rows:    rows,
		},
		LineItems:  projection.IsLineItemScoped(fields),
		TotalCount: page.TotalCount,
		TotalPages: page.TotalPages,
		Page:       page.Page,
		PageSize:   page.PageSize,
	}, nil
}

// ExportCSV writes every document matching q's filters and sort as CSV,
// ignoring paging.
func (s *ReportService) ExportCSV(ctx context.Context, collection string, q domain.PageQuery, w io.Writer) error {
	fields, err := s.SelectedFields(ctx, collection)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return errors.BadRequest("no fields selected")
	}

	store, err := s.store(collection)
	if err != nil {
		return err
	}
	q.PageSize = s.cfg.DefaultPageSize
	if q, err = s.normalize(q); err != nil {
		return err
	}

	recs, err := store.QueryAll(ctx, q.Filters, q.Sort)
	if err != nil {
		return err
	}

	rows := s.projection.FlattenFormatted(documents(recs), fields)
	s.metrics.AddRowsProjected(len(rows))
	return projection.WriteCSV(w, domain.ColumnsFor(fields), rows)
}

// ImportInvoice handles a document arriving from the ingestion pipeline:
// an inline document is stored first, then its fields are discovered and
// merged regardless of the auto discovery setting.
func (s *ReportService) ImportInvoice(ctx context.Context, collection, id string, doc domain.Document) ([]domain.FieldDescriptor, error) {
	if len(doc) > 0 {
		store, err := s.store(collection)
		if err != nil {
			return nil, err
		}
		newID, err := store.Insert(ctx, doc)
		if err != nil {
			return nil, err
		}
		s.publisher.PublishInvoiceCreated(ctx, collection, newID)
		return s.DiscoverFields(ctx, collection, doc, true)
	}
	if id == "" {
		return nil, errors.BadRequest("import carries neither a document nor an invoice id")
	}
	return s.DiscoverFromInvoice(ctx, collection, id, true)
}

func documents(recs []domain.Record) []domain.Document {
	docs := make([]domain.Document, len(recs))
	for i, r := range recs {
		docs[i] = r.Data
	}
	return docs
}
