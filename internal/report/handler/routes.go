package handler

import (
	"github.com/go-chi/chi/v5"

	"github.com/facturo/facturo-backend/internal/report/service"
	"github.com/facturo/facturo-backend/pkg/logger"
)

// Routes mounts every report endpoint under /collections/{collection}.
// Tenant resolution is left to the caller's middleware.
func Routes(r chi.Router, svc *service.ReportService, log *logger.Logger) {
	fieldHandler := NewFieldHandler(svc, log)
	invoiceHandler := NewInvoiceHandler(svc, log)
	reportHandler := NewReportHandler(svc, log)

	r.Route("/collections/{collection}", func(r chi.Router) {
		// Fields
		r.Route("/fields", func(r chi.Router) {
			r.Get("/", fieldHandler.List)
			r.Post("/", fieldHandler.Add)
			r.Get("/grouped", fieldHandler.Grouped)
			r.Get("/selected", fieldHandler.Selected)
			r.Put("/selected", fieldHandler.SetSelected)
			r.Post("/reorder", fieldHandler.Reorder)
			r.Post("/reset", fieldHandler.Reset)
			r.Post("/discover", fieldHandler.Discover)
			r.Post("/{id}/toggle", fieldHandler.Toggle)
		})

		// Invoices
		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", invoiceHandler.List)
			r.Post("/", invoiceHandler.Create)
			r.Post("/query", invoiceHandler.Query)
			r.Get("/{id}", invoiceHandler.Get)
			r.Patch("/{id}", invoiceHandler.Update)
			r.Delete("/{id}", invoiceHandler.Delete)
			r.Post("/{id}/discover", invoiceHandler.Discover)
		})

		// Reports
		r.Post("/report", reportHandler.Report)
		r.Post("/report/export", reportHandler.Export)
	})
}
