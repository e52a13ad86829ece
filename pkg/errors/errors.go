// Package errors defines AppError, the error type every layer returns to the
// HTTP edge, and the constructors for the failures the report service knows.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/facturo/facturo-backend/pkg/i18n"
)

// Sentinels matched with Is. Every AppError wraps exactly one of them.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrBadRequest       = errors.New("bad request")
	ErrForbidden        = errors.New("forbidden")
	ErrConflict         = errors.New("resource conflict")
	ErrInternal         = errors.New("internal server error")
	ErrValidation       = errors.New("validation error")
	ErrStoreUnavailable = errors.New("document store unavailable")
)

// AppError carries the HTTP status, a stable code and an English message.
// MessageKey and Params let the HTTP edge render the message in the
// caller's locale instead.
type AppError struct {
	Err        error             `json:"-"`
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`

	MessageKey string            `json:"-"`
	Params     map[string]string `json:"-"`
	// ResourceKey names a "resources.*" catalogue entry substituted for
	// {resource} at localization time.
	ResourceKey string `json:"-"`
}

func newAppError(sentinel error, code string, status int, key, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Code:       code,
		Message:    message,
		StatusCode: status,
		MessageKey: key,
	}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Localize renders the message for l. Errors without a key keep Message.
func (e *AppError) Localize(l *i18n.Localizer) string {
	if e.MessageKey == "" {
		return e.Message
	}
	if e.ResourceKey == "" {
		return l.T(e.MessageKey, e.Params)
	}

	params := make(map[string]string, len(e.Params)+1)
	for k, v := range e.Params {
		params[k] = v
	}
	params["resource"] = l.T("resources." + e.ResourceKey)
	return l.T(e.MessageKey, params)
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// WithKey replaces the catalogue key used to localize the message.
func (e *AppError) WithKey(key string, params map[string]string) *AppError {
	e.MessageKey = key
	e.Params = params
	return e
}

// NotFound reports a missing resource. resourceKey is a "resources.*"
// catalogue entry such as "invoice" or "field".
func NotFound(resourceKey string) *AppError {
	err := newAppError(ErrNotFound, "NOT_FOUND", http.StatusNotFound, "errors.not_found", resourceKey+" not found")
	err.ResourceKey = resourceKey
	return err
}

func BadRequest(message string) *AppError {
	return newAppError(ErrBadRequest, "BAD_REQUEST", http.StatusBadRequest, "", message)
}

// Forbidden rejects a request before it reaches a handler.
func Forbidden(code, messageKey string) *AppError {
	message := i18n.NewLocalizer(i18n.LocaleEnglish).T(messageKey)
	return newAppError(ErrForbidden, code, http.StatusForbidden, messageKey, message)
}

func Conflict(message string) *AppError {
	return newAppError(ErrConflict, "CONFLICT", http.StatusConflict, "", message)
}

func Internal(message string) *AppError {
	return newAppError(ErrInternal, "INTERNAL_ERROR", http.StatusInternalServerError, "errors.internal", message)
}

// Validation reports per-field problems keyed by field name.
func Validation(details map[string]string) *AppError {
	err := newAppError(ErrValidation, "VALIDATION_ERROR", http.StatusBadRequest, "errors.validation_failed", "validation failed")
	err.Details = details
	return err
}

// Store wraps a failure of the backing document or settings store. The
// original error stays reachable through Unwrap.
func Store(err error) *AppError {
	return newAppError(
		fmt.Errorf("%w: %w", ErrStoreUnavailable, err),
		"STORE_ERROR", http.StatusServiceUnavailable,
		"errors.store_unavailable", "document store unavailable",
	)
}

// IsStore reports whether err originated in a store backend.
func IsStore(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
