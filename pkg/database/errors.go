package database

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"

	"github.com/lib/pq"

	"github.com/facturo/facturo-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	// Invalid text representation (22P02), e.g. a malformed uuid
	case "22P02":
		return errors.BadRequest("malformed identifier")

	default:
		return nil
	}
}

// MapError turns any error returned by the driver into an AppError. Constraint
// violations become client errors; everything else is a store failure.
// Context cancellation passes through untouched.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if appErr := MapPQError(err); appErr != nil {
		return appErr
	}
	return errors.Store(err)
}

// IsNoRows reports whether err means the query matched nothing.
func IsNoRows(err error) bool {
	return stderrors.Is(err, sql.ErrNoRows)
}

func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "collection_format"):
		return errors.Validation(map[string]string{
			"collection": "must be lowercase letters, digits, '_' or '-'",
		})

	case strings.Contains(constraint, "data_object"):
		return errors.Validation(map[string]string{
			"data": "must be a JSON object",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

func formatConstraintMessage(pqErr *pq.Error) string {
	switch {
	case strings.Contains(pqErr.Constraint, "field_settings"):
		return "field settings already exist for this collection"
	case strings.Contains(pqErr.Constraint, "pkey"):
		return "a document with this id already exists"
	default:
		return "a record with these values already exists"
	}
}
