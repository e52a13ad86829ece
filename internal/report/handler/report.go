package handler

import (
	"bytes"
	"net/http"
	"time"

	"github.com/facturo/facturo-backend/internal/report/domain"
	"github.com/facturo/facturo-backend/internal/report/service"
	"github.com/facturo/facturo-backend/pkg/httputil"
	"github.com/facturo/facturo-backend/pkg/logger"
)

// ReportHandler handles report endpoints
type ReportHandler struct {
	service *service.ReportService
	logger  *logger.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(svc *service.ReportService, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		service: svc,
		logger:  log,
	}
}

// Report returns one page of flattened, formatted rows
func (h *ReportHandler) Report(w http.ResponseWriter, r *http.Request) {
	q, err := decodeQuery(r)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	page, err := h.service.Report(r.Context(), collection(r), q)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, page, &httputil.Meta{
		Page:       page.Page,
		PerPage:    page.PageSize,
		Total:      page.TotalCount,
		TotalPages: page.TotalPages,
	})
}

// Export streams every matching document as CSV
func (h *ReportHandler) Export(w http.ResponseWriter, r *http.Request) {
	q, err := decodeQuery(r)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	// Rendered into a buffer first so a failure still gets a JSON error.
	var buf bytes.Buffer
	if err := h.service.ExportCSV(r.Context(), collection(r), q, &buf); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	filename := collection(r) + "-" + time.Now().UTC().Format("20060102-150405") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn().Err(err).Str("collection", collection(r)).Msg("failed to write export")
	}
}

// decodeQuery reads an optional JSON page query; an empty body is the
// first page with defaults.
func decodeQuery(r *http.Request) (domain.PageQuery, error) {
	var q domain.PageQuery
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return q, nil
	}
	if err := httputil.DecodeJSON(r, &q); err != nil {
		return q, err
	}
	return q, nil
}
