package repository

import (
	"encoding/json"
	"strings"

	"github.com/facturo/facturo-backend/internal/report/domain"
	"github.com/facturo/facturo-backend/pkg/docpath"
)

// Values of different JSON types order by type rank, the same way Postgres
// orders jsonb: null < string < number < boolean < array < object. Missing
// fields count as null.
const (
	rankNull = iota
	rankString
	rankNumber
	rankBool
	rankArray
	rankObject
)

func rank(v any) int {
	switch v.(type) {
	case nil:
		return rankNull
	case string:
		return rankString
	case float64, float32, int, int64, json.Number:
		return rankNumber
	case bool:
		return rankBool
	case []any:
		return rankArray
	default:
		return rankObject
	}
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}

// compareValues returns -1, 0 or 1.
func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}

	switch ra {
	case rankNull:
		return 0
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankNumber:
		na, nb := number(a), number(b)
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	case rankBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	default:
		ja, _ := json.Marshal(a)
		jb, _ := json.Marshal(b)
		return strings.Compare(string(ja), string(jb))
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// fieldValue reads a filter or sort field from a record.
func fieldValue(rec *domain.Record, field string) any {
	if field == domain.DocumentIDField {
		return rec.ID
	}
	return docpath.Get(rec.Data, field)
}

func matches(rec *domain.Record, f domain.Filter) bool {
	v := fieldValue(rec, f.Field)

	switch f.Operator {
	case domain.OpEqual:
		return compareValues(v, f.Value) == 0
	case domain.OpNotEqual:
		return compareValues(v, f.Value) != 0
	case domain.OpLess:
		return compareValues(v, f.Value) < 0
	case domain.OpLessEqual:
		return compareValues(v, f.Value) <= 0
	case domain.OpGreater:
		return compareValues(v, f.Value) > 0
	case domain.OpGreaterEqual:
		return compareValues(v, f.Value) >= 0
	case domain.OpIn:
		for _, candidate := range inValues(f.Value) {
			if compareValues(v, candidate) == 0 {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func matchesAll(rec *domain.Record, filters []domain.Filter) bool {
	for _, f := range filters {
		if !matches(rec, f) {
			return false
		}
	}
	return true
}

// compareRecords orders two records by sort, which must end on a tiebreak.
func compareRecords(a, b *domain.Record, sort []domain.SortSpec) int {
	for _, s := range sort {
		c := compareValues(fieldValue(a, s.Field), fieldValue(b, s.Field))
		if s.Direction == domain.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

func inValues(v any) []any {
	switch list := v.(type) {
	case []any:
		return list
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out
	case []float64:
		out := make([]any, len(list))
		for i, n := range list {
			out[i] = n
		}
		return out
	default:
		return []any{v}
	}
}
