package domain

// Operator is a filter comparison.
type Operator string

const (
	OpEqual        Operator = "=="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpNotEqual     Operator = "!="
	OpIn           Operator = "in"
)

// Operators lists every supported comparison.
var Operators = []Operator{OpEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpNotEqual, OpIn}

// Valid reports whether op is supported.
func (op Operator) Valid() bool {
	for _, known := range Operators {
		if op == known {
			return true
		}
	}
	return false
}

// Direction is a sort order.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Filter restricts a query to documents whose Field compares to Value.
// For OpIn, Value is a []any.
type Filter struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// SortSpec orders query results by Field.
type SortSpec struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// PageQuery is a request for one page of documents.
type PageQuery struct {
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
	Sort     []SortSpec `json:"sort,omitempty"`
	Filters  []Filter   `json:"filters,omitempty"`
}

// PageResult is one page of results with the totals it was computed from.
// 1 <= Page <= TotalPages always holds, and TotalPages is at least 1.
type PageResult[T any] struct {
	Data       []T `json:"data"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
}
