package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/facturo/facturo-backend/internal/report/domain"
	"github.com/facturo/facturo-backend/internal/report/service"
	"github.com/facturo/facturo-backend/pkg/errors"
	"github.com/facturo/facturo-backend/pkg/httputil"
	"github.com/facturo/facturo-backend/pkg/logger"
)

// InvoiceHandler handles invoice document endpoints
type InvoiceHandler struct {
	service *service.ReportService
	logger  *logger.Logger
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(svc *service.ReportService, log *logger.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		service: svc,
		logger:  log,
	}
}

// List lists invoices.
// Query: page, per_page, sort=field[:asc|desc][,field[:dir]...]
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	q := domain.PageQuery{
		Page:     httputil.QueryInt(r, "page", 1),
		PageSize: httputil.QueryInt(r, "per_page", 0),
		Sort:     parseSort(r.URL.Query().Get("sort")),
	}

	h.page(w, r, q)
}

// Query lists invoices matching a JSON page query with filters
func (h *InvoiceHandler) Query(w http.ResponseWriter, r *http.Request) {
	var q domain.PageQuery
	if err := httputil.DecodeJSON(r, &q); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	h.page(w, r, q)
}

func (h *InvoiceHandler) page(w http.ResponseWriter, r *http.Request, q domain.PageQuery) {
	res, err := h.service.ListInvoices(r.Context(), collection(r), q)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, res.Data, &httputil.Meta{
		Page:       res.Page,
		PerPage:    res.PageSize,
		Total:      res.TotalCount,
		TotalPages: res.TotalPages,
	})
}

// Create stores a new invoice document
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var doc domain.Document
	if err := httputil.DecodeJSON(r, &doc); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	rec, err := h.service.CreateInvoice(r.Context(), collection(r), doc)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, rec)
}

// Get gets an invoice by ID
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.GetInvoice(r.Context(), collection(r), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rec)
}

// Update merges a partial document into an invoice
func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	var partial domain.Document
	if err := httputil.DecodeJSON(r, &partial); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	rec, err := h.service.UpdateInvoice(r.Context(), collection(r), chi.URLParam(r, "id"), partial)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rec)
}

// Delete deletes an invoice
func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteInvoice(r.Context(), collection(r), chi.URLParam(r, "id")); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.NoContent(w)
}

// Discover runs field discovery on a stored invoice. ?merge=true adds the
// fields found to the registry.
func (h *InvoiceHandler) Discover(w http.ResponseWriter, r *http.Request) {
	merge, err := queryBool(r, "merge")
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	found, err := h.service.DiscoverFromInvoice(r.Context(), collection(r), chi.URLParam(r, "id"), merge)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, found)
}

// parseSort reads "a.b:desc,c" into sort specs. Directions are checked by
// the service.
func parseSort(raw string) []domain.SortSpec {
	if raw == "" {
		return nil
	}

	var specs []domain.SortSpec
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field, dir, _ := strings.Cut(part, ":")
		specs = append(specs, domain.SortSpec{
			Field:     field,
			Direction: domain.Direction(strings.ToLower(dir)),
		})
	}
	return specs
}

func queryBool(r *http.Request, key string) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.BadRequest(key + " must be a boolean")
	}
	return v, nil
}
