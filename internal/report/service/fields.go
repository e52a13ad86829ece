package service

import (
	"context"
	"sort"

	"github.com/facturo/facturo-backend/internal/report/domain"
	"github.com/facturo/facturo-backend/internal/report/schema"
	"github.com/facturo/facturo-backend/pkg/docpath"
	"github.com/facturo/facturo-backend/pkg/errors"
)

// AddFieldRequest describes a custom field.
type AddFieldRequest struct {
	ID       string          `json:"id" validate:"required,fieldpath"`
	Label    string          `json:"label" validate:"max=120"`
	Path     string          `json:"path" validate:"omitempty,fieldpath"`
	Category domain.Category `json:"category" validate:"omitempty,oneof=identification party items summary other"`
	Selected bool            `json:"selected"`
}

// ReorderRequest moves one field inside a category.
type ReorderRequest struct {
	Category domain.Category `json:"category" validate:"required,oneof=identification party items summary other"`
	From     int             `json:"from" validate:"min=0"`
	To       int             `json:"to" validate:"min=0"`
}

// Fields lists the collection's fields in display order, optionally limited
// to one category.
func (s *ReportService) Fields(ctx context.Context, collection string, category domain.Category) ([]domain.FieldDescriptor, error) {
	entry, err := s.registry(ctx, collection)
	if err != nil {
		return nil, err
	}
	if category != "" {
		if !category.Valid() {
			return nil, errors.BadRequest("unknown category " + string(category))
		}
		return entry.reg.ByCategory(category), nil
	}

	fields := entry.reg.All()
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Order < fields[j].Order })
	return fields, nil
}

// GroupedFields lists non-empty categories with their fields.
func (s *ReportService) GroupedFields(ctx context.Context, collection string) ([]domain.CategoryGroup, error) {
	entry, err := s.registry(ctx, collection)
	if err != nil {
		return nil, err
	}
	return entry.reg.Grouped(), nil
}

// SelectedFields returns the report columns in display order.
func (s *ReportService) SelectedFields(ctx context.Context, collection string) ([]domain.FieldDescriptor, error) {
	entry, err := s.registry(ctx, collection)
	if err != nil {
		return nil, err
	}
	return entry.reg.Selected(), nil
}

// SetSelected makes exactly ids the selection. Unknown ids are rejected.
func (s *ReportService) SetSelected(ctx context.Context, collection string, ids []string) ([]domain.FieldDescriptor, error) {
	reg, err := s.mutate(ctx, collection, func(reg *schema.Registry) error {
		unknown := map[string]string{}
		for _, id := range ids {
			if !reg.Has(id) {
				unknown[id] = "unknown field"
			}
		}
		if len(unknown) > 0 {
			return errors.Validation(unknown)
		}
		reg.SetSelected(ids)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reg.Selected(), nil
}

// ToggleField flips the selection of one field.
func (s *ReportService) ToggleField(ctx context.Context, collection, id string) (domain.FieldDescriptor, error) {
	reg, err := s.mutate(ctx, collection, func(reg *schema.Registry) error {
		if !reg.Toggle(id) {
			return errors.NotFound("field")
		}
		return nil
	})
	if err != nil {
		return domain.FieldDescriptor{}, err
	}
	fd, _ := reg.Get(id)
	return fd, nil
}

// ReorderFields moves a field within its category.
func (s *ReportService) ReorderFields(ctx context.Context, collection string, req ReorderRequest) ([]domain.FieldDescriptor, error) {
	reg, err := s.mutate(ctx, collection, func(reg *schema.Registry) error {
		if !reg.Reorder(req.Category, req.From, req.To) {
			return errors.BadRequest("position out of range")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reg.ByCategory(req.Category), nil
}

// AddCustomField registers a user-defined field. A taken id is a conflict.
func (s *ReportService) AddCustomField(ctx context.Context, collection string, req AddFieldRequest) (domain.FieldDescriptor, error) {
	if !docpath.Valid(req.ID) || (req.Path != "" && !docpath.Valid(req.Path)) {
		return domain.FieldDescriptor{}, errors.BadRequest("invalid field path")
	}

	fd := domain.FieldDescriptor{
		ID:       req.ID,
		Label:    req.Label,
		Path:     req.Path,
		Category: req.Category,
		Selected: req.Selected,
	}
	reg, err := s.mutate(ctx, collection, func(reg *schema.Registry) error {
		if !reg.AddCustom(fd) {
			return fieldExists(req.ID)
		}
		return nil
	})
	if err != nil {
		return domain.FieldDescriptor{}, err
	}

	added, _ := reg.Get(req.ID)
	s.logger.Ctx(ctx).WithCollection(collection).Info().Str("field_id", added.ID).Msg("custom field added")
	return added, nil
}

// ResetFields restores the default field set, dropping custom fields.
func (s *ReportService) ResetFields(ctx context.Context, collection string) ([]domain.FieldDescriptor, error) {
	reg, err := s.mutate(ctx, collection, func(reg *schema.Registry) error {
		reg.ResetToDefaults()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publisher.PublishFieldsReset(ctx, collection)
	return reg.All(), nil
}

// DiscoverFields lists fields of sample the registry does not know yet and,
// when merge is set, adds them.
func (s *ReportService) DiscoverFields(ctx context.Context, collection string, sample domain.Document, merge bool) ([]domain.FieldDescriptor, error) {
	if !merge {
		entry, err := s.registry(ctx, collection)
		if err != nil {
			return nil, err
		}
		return s.discovery.Discover(sample, entry.reg), nil
	}

	var found []domain.FieldDescriptor
	_, err := s.mutate(ctx, collection, func(reg *schema.Registry) error {
		found = s.discovery.Discover(sample, reg)
		reg.Merge(found)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(found) > 0 {
		s.metrics.AddFieldsDiscovered(collection, len(found))
		s.publisher.PublishFieldsDiscovered(ctx, collection, found, true)
		s.logger.Ctx(ctx).WithCollection(collection).Info().Int("count", len(found)).Msg("fields discovered")
	}
	return found, nil
}

// DiscoverFromInvoice runs discovery on a stored document.
func (s *ReportService) DiscoverFromInvoice(ctx context.Context, collection, id string, merge bool) ([]domain.FieldDescriptor, error) {
	rec, err := s.GetInvoice(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	return s.DiscoverFields(ctx, collection, rec.Data, merge)
}

func fieldExists(id string) *errors.AppError {
	return errors.Conflict("field "+id+" already exists").
		WithKey("errors.field_exists", map[string]string{"id": id})
}
