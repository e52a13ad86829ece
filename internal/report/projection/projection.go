// Package projection flattens nested invoice documents into report rows.
package projection

import (
	"github.com/facturo/facturo-backend/internal/report/domain"
	"github.com/facturo/facturo-backend/pkg/docpath"
)

// Engine turns documents into rows for a selection of fields.
type Engine struct {
	aliases   *docpath.AliasTable
	formatter *Formatter
}

// NewEngine creates a projection engine. A nil formatter uses the default
// locale.
func NewEngine(formatter *Formatter, aliases *docpath.AliasTable) *Engine {
	if formatter == nil {
		formatter = NewFormatter("")
	}
	return &Engine{aliases: aliases, formatter: formatter}
}

// Formatter returns the formatter used by FlattenFormatted.
func (e *Engine) Formatter() *Formatter {
	return e.formatter
}

// Flatten projects docs onto fields, which are taken as the selection.
//
// When any field path crosses an array, the first such field in fields picks
// the driving array: each document yields one row per element of it, with
// every repeated path rewritten to that element and document-level fields
// copied onto each row. A document whose driving array is missing or empty
// then yields no rows. Without such a field each document yields one row.
func (e *Engine) Flatten(docs []domain.Document, fields []domain.FieldDescriptor) []domain.FlatRow {
	driver, repeated := drivingArray(fields)

	rows := make([]domain.FlatRow, 0, len(docs))
	for _, doc := range docs {
		if !repeated {
			rows = append(rows, e.row(doc, fields, -1))
			continue
		}

		items, _ := docpath.Get(doc, driver).([]any)
		for i := range items {
			rows = append(rows, e.row(doc, fields, i))
		}
	}
	return rows
}

// FlattenFormatted is Flatten with every cell rendered by the formatter.
func (e *Engine) FlattenFormatted(docs []domain.Document, fields []domain.FieldDescriptor) []map[string]string {
	raw := e.Flatten(docs, fields)
	out := make([]map[string]string, len(raw))
	for i, row := range raw {
		cells := make(map[string]string, len(fields))
		for _, f := range fields {
			cells[f.ID] = e.formatter.FormatValue(row[f.ID], f.ID)
		}
		out[i] = cells
	}
	return out
}

func (e *Engine) row(doc domain.Document, fields []domain.FieldDescriptor, item int) domain.FlatRow {
	row := make(domain.FlatRow, len(fields))
	for _, f := range fields {
		path := pathOf(f)
		if item >= 0 && docpath.IsRepeated(path) {
			path = docpath.WithIndex(path, item)
		}
		row[f.ID] = e.aliases.Get(doc, path)
	}
	return row
}

// IsLineItemScoped reports whether the selection expands to one row per item.
func IsLineItemScoped(fields []domain.FieldDescriptor) bool {
	_, ok := drivingArray(fields)
	return ok
}

func drivingArray(fields []domain.FieldDescriptor) (string, bool) {
	for _, f := range fields {
		if prefix, _, ok := docpath.RepeatIndex(pathOf(f)); ok {
			return prefix, true
		}
	}
	return "", false
}

func pathOf(f domain.FieldDescriptor) string {
	if f.Path != "" {
		return f.Path
	}
	return f.ID
}
