package domain

// Category groups fields into the structural blocks of an invoice.
type Category string

const (
	CategoryIdentification Category = "identification"
	CategoryParty          Category = "party"
	CategoryItems          Category = "items"
	CategorySummary        Category = "summary"
	CategoryOther          Category = "other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryIdentification,
	CategoryParty,
	CategoryItems,
	CategorySummary,
	CategoryOther,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// FieldDescriptor describes one reportable field of a document collection.
type FieldDescriptor struct {
	ID       string   `json:"id" yaml:"id"`
	Label    string   `json:"label" yaml:"label"`
	Category Category `json:"category" yaml:"category"`
	// Path is dotted; a numeric segment means "every element of this array".
	Path     string `json:"path" yaml:"path"`
	Selected bool   `json:"selected" yaml:"selected"`
	Order    int    `json:"order" yaml:"order"`
	IsCustom bool   `json:"isCustom" yaml:"isCustom"`
}

// CategoryGroup is a category with its fields in display order.
type CategoryGroup struct {
	Category Category `json:"category"`
	// Label is the localized category name, filled at the HTTP edge.
	Label  string            `json:"label,omitempty"`
	Fields []FieldDescriptor `json:"fields"`
}
