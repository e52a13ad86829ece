package domain

// Column is the presentation view of a selected field.
type Column struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Category Category `json:"category"`
}

// ReportTable is a page of flattened, formatted rows.
type ReportTable struct {
	Columns []Column            `json:"columns"`
	Rows    []map[string]string `json:"rows"`
}

// ColumnsFor converts descriptors into columns, keeping their order.
func ColumnsFor(fields []FieldDescriptor) []Column {
	cols := make([]Column, 0, len(fields))
	for _, f := range fields {
		cols = append(cols, Column{ID: f.ID, Label: f.Label, Category: f.Category})
	}
	return cols
}
