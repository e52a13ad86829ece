package projection

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/facturo/facturo-backend/pkg/docpath"
	"github.com/facturo/facturo-backend/pkg/i18n"
)

// currencyKeywords flag a leaf as a money amount when contained in it.
var currencyKeywords = []string{"total", "precio", "subtotal", "monto", "venta"}

// enumLabels translate coded values of known leaves.
var enumLabels = map[string]map[string]string{
	"condicionOperacion": {
		"1": "Contado",
		"2": "A crédito",
		"3": "Otro",
	},
	"tipoItem": {
		"1": "Bienes",
		"2": "Servicios",
		"3": "Bienes y servicios",
		"4": "Otros tributos",
	},
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// Formatter renders extracted values as display strings.
type Formatter struct {
	dateLayout string
}

// NewFormatter creates a formatter for locale; unsupported locales use the
// default one.
func NewFormatter(locale string) *Formatter {
	return &Formatter{dateLayout: i18n.NewLocalizer(locale).DateLayout()}
}

// FormatValue renders value for the field with the given id. It never fails:
// values that do not fit the field's kind are stringified as they are.
func (f *Formatter) FormatValue(value any, fieldID string) string {
	if value == nil {
		return ""
	}

	leaf := docpath.Leaf(fieldID)

	if labels, ok := enumLabels[leaf]; ok {
		if label, ok := labels[stringify(value)]; ok {
			return label
		}
		return stringify(value)
	}

	if isCurrencyField(leaf) {
		if amount, ok := toFloat(value); ok {
			return fmt.Sprintf("$%.2f", amount)
		}
	}

	if isDateField(leaf) {
		if s, ok := value.(string); ok {
			if t, ok := parseDate(s); ok {
				return t.Format(f.dateLayout)
			}
		}
	}

	return stringify(value)
}

func isCurrencyField(leaf string) bool {
	lower := strings.ToLower(leaf)
	for _, kw := range currencyKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func isDateField(leaf string) bool {
	lower := strings.ToLower(leaf)
	return strings.HasPrefix(lower, "fec") || strings.Contains(lower, "fecha") || strings.Contains(lower, "date")
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// toFloat reads numeric values of any Go kind. Non-finite results are
// rejected so they render through stringify.
func toFloat(value any) (float64, bool) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}
