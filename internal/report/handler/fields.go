// Package handler exposes the report service over HTTP.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/facturo/facturo-backend/internal/report/domain"
	"github.com/facturo/facturo-backend/internal/report/service"
	"github.com/facturo/facturo-backend/pkg/httputil"
	"github.com/facturo/facturo-backend/pkg/i18n"
	"github.com/facturo/facturo-backend/pkg/logger"
)

// FieldHandler handles field registry endpoints
type FieldHandler struct {
	service *service.ReportService
	logger  *logger.Logger
}

// NewFieldHandler creates a new field handler
func NewFieldHandler(svc *service.ReportService, log *logger.Logger) *FieldHandler {
	return &FieldHandler{
		service: svc,
		logger:  log,
	}
}

// SelectRequest replaces the report selection.
type SelectRequest struct {
	IDs []string `json:"ids" validate:"required,dive,required"`
}

// DiscoverRequest carries a sample document for field discovery.
type DiscoverRequest struct {
	Document domain.Document `json:"document" validate:"required"`
	Merge    bool            `json:"merge"`
}

// List lists the fields of a collection, optionally filtered by ?category=
func (h *FieldHandler) List(w http.ResponseWriter, r *http.Request) {
	category := domain.Category(r.URL.Query().Get("category"))

	fields, err := h.service.Fields(r.Context(), collection(r), category)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, fields)
}

// Grouped lists fields grouped by category
func (h *FieldHandler) Grouped(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.GroupedFields(r.Context(), collection(r))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	localizer := i18n.LocalizerFromContext(r.Context())
	for i := range groups {
		groups[i].Label = localizer.CategoryLabel(string(groups[i].Category))
	}

	httputil.JSON(w, http.StatusOK, groups)
}

// Selected lists the report columns
func (h *FieldHandler) Selected(w http.ResponseWriter, r *http.Request) {
	fields, err := h.service.SelectedFields(r.Context(), collection(r))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, fields)
}

// SetSelected replaces the selection
func (h *FieldHandler) SetSelected(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	fields, err := h.service.SetSelected(r.Context(), collection(r), req.IDs)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, fields)
}

// Add registers a custom field
func (h *FieldHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req service.AddFieldRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	field, err := h.service.AddCustomField(r.Context(), collection(r), req)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, field)
}

// Toggle flips the selection of one field
func (h *FieldHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	field, err := h.service.ToggleField(r.Context(), collection(r), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, field)
}

// Reorder moves a field within its category
func (h *FieldHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req service.ReorderRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	fields, err := h.service.ReorderFields(r.Context(), collection(r), req)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, fields)
}

// Reset restores the default fields
func (h *FieldHandler) Reset(w http.ResponseWriter, r *http.Request) {
	fields, err := h.service.ResetFields(r.Context(), collection(r))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, fields)
}

// Discover lists the unknown fields of a sample document and merges them
// when requested
func (h *FieldHandler) Discover(w http.ResponseWriter, r *http.Request) {
	var req DiscoverRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	found, err := h.service.DiscoverFields(r.Context(), collection(r), req.Document, req.Merge)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, found)
}

func collection(r *http.Request) string {
	return chi.URLParam(r, "collection")
}
