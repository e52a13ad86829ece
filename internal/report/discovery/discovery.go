// Package discovery proposes new registry fields from sample documents.
package discovery

import (
	"sort"
	"strings"

	"github.com/facturo/facturo-backend/internal/report/domain"
	"github.com/facturo/facturo-backend/pkg/docpath"
)

// Lookup is the read-only view of a registry that discovery needs.
type Lookup interface {
	Has(id string) bool
	MaxOrder() int
}

// Engine walks sample documents and reports leaf paths the registry lacks.
type Engine struct {
	rules   CategoryRules
	aliases *docpath.AliasTable
}

// Option configures an Engine.
type Option func(*Engine)

// WithCategoryRules overrides the top-level key to category mapping.
func WithCategoryRules(rules CategoryRules) Option {
	return func(e *Engine) { e.rules = rules }
}

// WithAliases overrides the leaf alias table.
func WithAliases(aliases *docpath.AliasTable) Option {
	return func(e *Engine) { e.aliases = aliases }
}

// NewEngine creates a discovery engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		rules:   DefaultCategoryRules,
		aliases: docpath.DefaultAliases,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Discover returns one unselected custom descriptor per scalar leaf of sample
// that reg does not know yet. Arrays are sampled through their first element
// only, null leaves are skipped and keys are visited in sorted order, so the
// result is deterministic. reg is never modified.
func (e *Engine) Discover(sample domain.Document, reg Lookup) []domain.FieldDescriptor {
	v := &visitor{
		engine:  e,
		reg:     reg,
		base:    reg.MaxOrder(),
		emitted: make(map[string]struct{}),
		out:     make([]domain.FieldDescriptor, 0),
	}
	if sample != nil {
		v.visit("", "", sample)
	}
	return v.out
}

type visitor struct {
	engine  *Engine
	reg     Lookup
	base    int
	emitted map[string]struct{}
	out     []domain.FieldDescriptor
}

func (v *visitor) visit(path, key string, node any) {
	switch n := node.(type) {
	case nil:
		return
	case map[string]any:
		keys := make([]string, 0, len(n))
		for k := range n {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			// No dotted path can address these keys.
			if k == "" || strings.Contains(k, docpath.Separator) {
				continue
			}
			v.visit(child(path, k), k, n[k])
		}
	case []any:
		if len(n) == 0 {
			return
		}
		v.visit(child(path, "0"), key, n[0])
	default:
		// string, bool, float64 or json.Number
		v.leaf(path, key)
	}
}

func (v *visitor) leaf(path, key string) {
	id := v.engine.aliases.Canonical(path)
	if v.reg.Has(id) {
		return
	}
	if _, dup := v.emitted[id]; dup {
		return
	}
	v.emitted[id] = struct{}{}

	v.out = append(v.out, domain.FieldDescriptor{
		ID:       id,
		Label:    docpath.LabelFromLeaf(v.engine.aliases.Canonical(key)),
		Category: v.engine.rules.Infer(id),
		Path:     id,
		Selected: false,
		Order:    v.base + len(v.out) + 1,
		IsCustom: true,
	})
}

func child(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + docpath.Separator + key
}
