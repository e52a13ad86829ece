package discovery

import (
	"github.com/facturo/facturo-backend/internal/report/domain"
	"github.com/facturo/facturo-backend/pkg/docpath"
)

// CategoryRules assigns a category from the top-level key of a path.
type CategoryRules map[string]domain.Category

// DefaultCategoryRules covers the structural blocks of a DTE invoice.
var DefaultCategoryRules = CategoryRules{
	"identificacion":  domain.CategoryIdentification,
	"emisor":          domain.CategoryParty,
	"receptor":        domain.CategoryParty,
	"cuerpoDocumento": domain.CategoryItems,
	"items":           domain.CategoryItems,
	"resumen":         domain.CategorySummary,
}

// Infer returns the category for path, or CategoryOther.
func (r CategoryRules) Infer(path string) domain.Category {
	if cat, ok := r[docpath.Root(path)]; ok {
		return cat
	}
	return domain.CategoryOther
}
