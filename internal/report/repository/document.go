package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/facturo/facturo-backend/internal/report/domain"
	"github.com/facturo/facturo-backend/pkg/database"
	"github.com/facturo/facturo-backend/pkg/docpath"
	"github.com/facturo/facturo-backend/pkg/errors"
	"github.com/facturo/facturo-backend/pkg/tenant"
)

// documentRow is the database shape of a stored document.
type documentRow struct {
	ID        string    `db:"id"`
	Data      []byte    `db:"data"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r documentRow) record() (domain.Record, error) {
	var data domain.Document
	if err := json.Unmarshal(r.Data, &data); err != nil {
		return domain.Record{}, errors.Store(fmt.Errorf("decode document %s: %w", r.ID, err))
	}
	return domain.Record{ID: r.ID, Data: data, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}, nil
}

// DocumentRepository stores invoice documents as JSONB rows in Postgres.
type DocumentRepository struct {
	db *database.DB
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *database.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// For returns the store of one collection.
func (r *DocumentRepository) For(collection string) Store {
	return &DocumentStore{db: r.db, collection: collection}
}

// DocumentStore is a single collection of DocumentRepository.
type DocumentStore struct {
	db         *database.DB
	collection string
}

// NewDocumentStore creates a store for one collection.
func NewDocumentStore(db *database.DB, collection string) *DocumentStore {
	return &DocumentStore{db: db, collection: collection}
}

const selectDocument = `SELECT id, data, created_at, updated_at FROM invoice_documents`

func (s *DocumentStore) Insert(ctx context.Context, doc domain.Document) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", errors.BadRequest("document is not valid JSON")
	}

	id := uuid.New().String()
	query := `
		INSERT INTO invoice_documents (id, tenant_id, collection, data)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.ExecContext(ctx, query, id, tenant.TenantIDOrDefault(ctx), s.collection, data); err != nil {
		return "", database.MapError(err)
	}
	return id, nil
}

func (s *DocumentStore) GetByID(ctx context.Context, id string) (*domain.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	var row documentRow
	query := selectDocument + ` WHERE tenant_id = $1 AND collection = $2 AND id = $3`
	err := s.db.GetContext(ctx, &row, query, tenant.TenantIDOrDefault(ctx), s.collection, id)
	if database.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, database.MapError(err)
	}

	rec, err := row.record()
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *DocumentStore) QueryAll(ctx context.Context, filters []domain.Filter, sort []domain.SortSpec) ([]domain.Record, error) {
	return s.Query(ctx, filters, sort, 0, nil)
}

func (s *DocumentStore) Query(ctx context.Context, filters []domain.Filter, sort []domain.SortSpec, limit int, cursor *domain.Record) ([]domain.Record, error) {
	b := s.scoped(ctx)
	if err := b.filters(filters); err != nil {
		return nil, err
	}

	order := withTiebreak(sort)
	if cursor != nil {
		b.after(order, cursor)
	}

	query := selectDocument + b.where() + b.orderBy(order)
	if limit > 0 {
		query += " LIMIT " + b.arg(limit)
	}

	var rows []documentRow
	if err := s.db.SelectContext(ctx, &rows, query, b.args...); err != nil {
		return nil, database.MapError(err)
	}

	out := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *DocumentStore) Count(ctx context.Context, filters []domain.Filter) (int, error) {
	b := s.scoped(ctx)
	if err := b.filters(filters); err != nil {
		return 0, err
	}

	var total int
	query := `SELECT COUNT(*) FROM invoice_documents` + b.where()
	if err := s.db.GetContext(ctx, &total, query, b.args...); err != nil {
		return 0, database.MapError(err)
	}
	return total, nil
}

func (s *DocumentStore) Update(ctx context.Context, id string, partial domain.Document) (*domain.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.NotFound("invoice")
	}

	var updated domain.Record
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var row documentRow
		query := selectDocument + ` WHERE tenant_id = $1 AND collection = $2 AND id = $3 FOR UPDATE`
		err := tx.GetContext(ctx, &row, query, tenant.TenantIDOrDefault(ctx), s.collection, id)
		if database.IsNoRows(err) {
			return errors.NotFound("invoice")
		}
		if err != nil {
			return database.MapError(err)
		}

		rec, err := row.record()
		if err != nil {
			return err
		}
		mergeDocuments(rec.Data, partial)

		data, err := json.Marshal(rec.Data)
		if err != nil {
			return errors.BadRequest("document is not valid JSON")
		}

		update := `
			UPDATE invoice_documents SET data = $1, updated_at = NOW()
			WHERE tenant_id = $2 AND collection = $3 AND id = $4
			RETURNING updated_at
		`
		if err := tx.GetContext(ctx, &rec.UpdatedAt, update, data, tenant.TenantIDOrDefault(ctx), s.collection, id); err != nil {
			return database.MapError(err)
		}
		updated = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.NotFound("invoice")
	}

	query := `DELETE FROM invoice_documents WHERE tenant_id = $1 AND collection = $2 AND id = $3`
	result, err := s.db.ExecContext(ctx, query, tenant.TenantIDOrDefault(ctx), s.collection, id)
	if err != nil {
		return database.MapError(err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return database.MapError(err)
	}
	if n == 0 {
		return errors.NotFound("invoice")
	}
	return nil
}

func (s *DocumentStore) scoped(ctx context.Context) *queryBuilder {
	b := &queryBuilder{}
	b.conds = append(b.conds,
		"tenant_id = "+b.arg(tenant.TenantIDOrDefault(ctx)),
		"collection = "+b.arg(s.collection),
	)
	return b
}

// queryBuilder accumulates WHERE conditions and positional arguments.
// Field paths and values are always bound as arguments, never spliced.
type queryBuilder struct {
	conds []string
	args  []any
}

func (b *queryBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

// field renders a jsonb expression for a document field. Missing fields read
// as JSON null so they compare and sort like the in-memory store.
func (b *queryBuilder) field(name string) string {
	if name == domain.DocumentIDField {
		return "to_jsonb(id::text)"
	}
	return "COALESCE(data #> " + b.arg(pq.Array(docpath.Split(name))) + "::text[], 'null'::jsonb)"
}

func (b *queryBuilder) value(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", errors.BadRequest("filter value is not valid JSON")
	}
	return b.arg(string(raw)) + "::jsonb", nil
}

var sqlOperators = map[domain.Operator]string{
	domain.OpEqual:        "=",
	domain.OpNotEqual:     "<>",
	domain.OpLess:         "<",
	domain.OpLessEqual:    "<=",
	domain.OpGreater:      ">",
	domain.OpGreaterEqual: ">=",
}

func (b *queryBuilder) filters(filters []domain.Filter) error {
	for _, f := range filters {
		if f.Operator == domain.OpIn {
			values := inValues(f.Value)
			encoded := make([]string, 0, len(values))
			for _, v := range values {
				raw, err := json.Marshal(v)
				if err != nil {
					return errors.BadRequest("filter value is not valid JSON")
				}
				encoded = append(encoded, string(raw))
			}
			b.conds = append(b.conds, b.field(f.Field)+" = ANY("+b.arg(pq.Array(encoded))+"::jsonb[])")
			continue
		}

		op, ok := sqlOperators[f.Operator]
		if !ok {
			return errors.BadRequest("unsupported filter operator " + string(f.Operator))
		}
		field := b.field(f.Field)
		val, err := b.value(f.Value)
		if err != nil {
			return err
		}
		b.conds = append(b.conds, field+" "+op+" "+val)
	}
	return nil
}

// after restricts results to rows strictly behind cursor in order:
// (k1 > c1) OR (k1 = c1 AND k2 > c2) OR ... with > flipped for desc keys.
func (b *queryBuilder) after(order []domain.SortSpec, cursor *domain.Record) {
	alternatives := make([]string, 0, len(order))
	for i, s := range order {
		parts := make([]string, 0, i+1)
		for _, prev := range order[:i] {
			field := b.field(prev.Field)
			val, _ := b.value(fieldValue(cursor, prev.Field))
			parts = append(parts, field+" = "+val)
		}
		op := ">"
		if s.Direction == domain.Desc {
			op = "<"
		}
		field := b.field(s.Field)
		val, _ := b.value(fieldValue(cursor, s.Field))
		parts = append(parts, field+" "+op+" "+val)
		alternatives = append(alternatives, "("+strings.Join(parts, " AND ")+")")
	}
	b.conds = append(b.conds, "("+strings.Join(alternatives, " OR ")+")")
}

func (b *queryBuilder) where() string {
	return " WHERE " + strings.Join(b.conds, " AND ")
}

func (b *queryBuilder) orderBy(order []domain.SortSpec) string {
	clauses := make([]string, 0, len(order))
	for _, s := range order {
		dir := "ASC"
		if s.Direction == domain.Desc {
			dir = "DESC"
		}
		clauses = append(clauses, b.field(s.Field)+" "+dir)
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}
