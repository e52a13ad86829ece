// Package schema holds the per-collection field registry: which fields exist,
// which are selected for reports and in what order they are shown.
package schema

import (
	"sort"
	"sync"

	"github.com/facturo/facturo-backend/internal/report/domain"
	"github.com/facturo/facturo-backend/pkg/docpath"
)

// Registry is an in-memory, concurrency-safe set of field descriptors.
// It performs no I/O; callers persist Snapshot() through a settings store.
// Ids are matched through docpath.DefaultAliases, so "resumen.totalIVA" and
// "resumen.totalIva" name the same field.
type Registry struct {
	mu       sync.RWMutex
	fields   []domain.FieldDescriptor
	defaults []domain.FieldDescriptor
}

// New creates a registry seeded with defaults.
func New(defaults []domain.FieldDescriptor) *Registry {
	return &Registry{
		fields:   clone(defaults),
		defaults: clone(defaults),
	}
}

// NewWithFields creates a registry holding fields, falling back to defaults
// on reset.
func NewWithFields(defaults, fields []domain.FieldDescriptor) *Registry {
	r := New(defaults)
	if fields != nil {
		r.fields = clone(fields)
	}
	return r
}

// All returns every field in storage order.
func (r *Registry) All() []domain.FieldDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return clone(r.fields)
}

// Snapshot is All under a name that reads better at persistence call sites.
func (r *Registry) Snapshot() []domain.FieldDescriptor {
	return r.All()
}

// Get returns the field with id.
func (r *Registry) Get(id string) (domain.FieldDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(id); i >= 0 {
		return r.fields[i], true
	}
	return domain.FieldDescriptor{}, false
}

// Has reports whether a field with id exists.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indexOf(id) >= 0
}

// MaxOrder is the largest Order in the registry, 0 when empty.
func (r *Registry) MaxOrder() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.maxOrder()
}

// Selected returns the selected fields sorted by Order.
func (r *Registry) Selected() []domain.FieldDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.FieldDescriptor, 0, len(r.fields))
	for _, f := range r.fields {
		if f.Selected {
			out = append(out, f)
		}
	}
	sortByOrder(out)
	return out
}

// ByCategory returns the fields of one category sorted by Order.
func (r *Registry) ByCategory(cat domain.Category) []domain.FieldDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.FieldDescriptor, 0)
	for _, f := range r.fields {
		if f.Category == cat {
			out = append(out, f)
		}
	}
	sortByOrder(out)
	return out
}

// Grouped returns non-empty categories in display order.
func (r *Registry) Grouped() []domain.CategoryGroup {
	groups := make([]domain.CategoryGroup, 0, len(domain.Categories))
	for _, cat := range domain.Categories {
		if fields := r.ByCategory(cat); len(fields) > 0 {
			groups = append(groups, domain.CategoryGroup{Category: cat, Fields: fields})
		}
	}
	return groups
}

// SetSelected replaces the selection: exactly the fields in ids end up
// selected. Unknown ids are ignored.
func (r *Registry) SetSelected(ids []string) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[canonicalID(id)] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.fields {
		_, ok := want[canonicalID(r.fields[i].ID)]
		r.fields[i].Selected = ok
	}
}

// Toggle flips the selection of one field. It reports false for unknown ids.
func (r *Registry) Toggle(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return false
	}
	r.fields[i].Selected = !r.fields[i].Selected
	return true
}

// Reorder moves the field at position from to position to within one
// category (positions count from 0 in Order sequence). Fields of other
// categories keep their slots and all orders are renumbered 1..n.
// It reports false when either position is out of range.
func (r *Registry) Reorder(cat domain.Category, from, to int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := clone(r.fields)
	sortByOrder(all)

	var slots []int
	var members []domain.FieldDescriptor
	for i, f := range all {
		if f.Category == cat {
			slots = append(slots, i)
			members = append(members, f)
		}
	}
	if from < 0 || from >= len(members) || to < 0 || to >= len(members) {
		return false
	}

	moved := members[from]
	members = append(members[:from], members[from+1:]...)
	members = append(members[:to], append([]domain.FieldDescriptor{moved}, members[to:]...)...)

	for n, slot := range slots {
		all[slot] = members[n]
	}
	for i := range all {
		all[i].Order = i + 1
	}
	r.fields = all
	return true
}

// AddCustom appends a user-defined field. It reports false, leaving the
// registry untouched, when the id is already taken.
func (r *Registry) AddCustom(fd domain.FieldDescriptor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(fd.ID) >= 0 {
		return false
	}

	fd.IsCustom = true
	if fd.Path == "" {
		fd.Path = fd.ID
	}
	if fd.Label == "" {
		fd.Label = docpath.LabelFromLeaf(fd.Path)
	}
	if !fd.Category.Valid() {
		fd.Category = domain.CategoryOther
	}
	if fd.Order <= 0 {
		fd.Order = r.maxOrder() + 1
	}
	r.fields = append(r.fields, fd)
	return true
}

// Merge appends discovered fields whose ids are new and returns how many
// were added.
func (r *Registry) Merge(fields []domain.FieldDescriptor) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	added := 0
	for _, fd := range fields {
		if r.indexOf(fd.ID) >= 0 {
			continue
		}
		r.fields = append(r.fields, fd)
		added++
	}
	return added
}

// Replace swaps the whole field set, e.g. after loading persisted settings.
func (r *Registry) Replace(fields []domain.FieldDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fields = clone(fields)
}

// ResetToDefaults discards every change, custom fields included.
func (r *Registry) ResetToDefaults() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fields = clone(r.defaults)
}

func (r *Registry) indexOf(id string) int {
	key := canonicalID(id)
	for i := range r.fields {
		if canonicalID(r.fields[i].ID) == key {
			return i
		}
	}
	return -1
}

func canonicalID(id string) string {
	return docpath.DefaultAliases.Canonical(id)
}

func (r *Registry) maxOrder() int {
	highest := 0
	for _, f := range r.fields {
		if f.Order > highest {
			highest = f.Order
		}
	}
	return highest
}

func sortByOrder(fields []domain.FieldDescriptor) {
	sort.SliceStable(fields, func(i, j int) bool {
		return fields[i].Order < fields[j].Order
	})
}

func clone(fields []domain.FieldDescriptor) []domain.FieldDescriptor {
	if fields == nil {
		return nil
	}
	out := make([]domain.FieldDescriptor, len(fields))
	copy(out, fields)
	return out
}
