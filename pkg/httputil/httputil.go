package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/facturo/facturo-backend/pkg/errors"
	"github.com/facturo/facturo-backend/pkg/i18n"
)

// Response is a standard API response
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

// ErrorBody represents an error in the response
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	// Retryable tells clients the request may succeed if repeated.
	Retryable bool `json:"retryable,omitempty"`
}

// Meta contains pagination metadata
type Meta struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// JSON sends a JSON response
func JSON(w http.ResponseWriter, statusCode int, data any) {
	JSONWithMeta(w, statusCode, data, nil)
}

// JSONWithMeta sends a JSON response with metadata
func JSONWithMeta(w http.ResponseWriter, statusCode int, data any, meta *Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := Response{
		Success: statusCode >= 200 && statusCode < 300,
		Data:    data,
		Meta:    meta,
	}

	json.NewEncoder(w).Encode(response)
}

// Error sends an error response with the default locale message
func Error(w http.ResponseWriter, err error) {
	writeError(w, err, nil)
}

// ErrorLocalized sends an error response localized from the request context
func ErrorLocalized(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, err, i18n.LocalizerFromContext(r.Context()))
}

func writeError(w http.ResponseWriter, err error, localizer *i18n.Localizer) {
	w.Header().Set("Content-Type", "application/json")

	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		message := appErr.Message
		if localizer != nil {
			message = appErr.Localize(localizer)
		}

		w.WriteHeader(appErr.StatusCode)
		json.NewEncoder(w).Encode(Response{
			Error: &ErrorBody{
				Code:      appErr.Code,
				Message:   message,
				Details:   appErr.Details,
				Retryable: errors.IsStore(appErr),
			},
		})
		return
	}

	message := "an unexpected error occurred"
	if localizer != nil {
		message = localizer.T("errors.internal")
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(Response{
		Error: &ErrorBody{
			Code:    "INTERNAL_ERROR",
			Message: message,
		},
	})
}

// NoContent sends a 204 No Content response
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Created sends a 201 Created response
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// DecodeJSON decodes the request body into the provided struct
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return errors.BadRequest("invalid JSON body").WithKey("errors.invalid_json", nil)
	}
	return nil
}

// QueryInt reads an integer query parameter, returning def when absent or malformed.
func QueryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
