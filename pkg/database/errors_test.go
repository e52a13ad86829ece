package database_test

import (
	"context"
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturo/facturo-backend/pkg/database"
	"github.com/facturo/facturo-backend/pkg/errors"
)

func TestMapPQError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantNil    bool
	}{
		{"unique violation", &pq.Error{Code: "23505", Constraint: "invoice_documents_pkey"}, http.StatusConflict, false},
		{"check violation", &pq.Error{Code: "23514", Constraint: "invoice_documents_data_object"}, http.StatusBadRequest, false},
		{"not null", &pq.Error{Code: "23502", Column: "data"}, http.StatusBadRequest, false},
		{"bad uuid", &pq.Error{Code: "22P02"}, http.StatusBadRequest, false},
		{"other pq code", &pq.Error{Code: "57P01"}, 0, true},
		{"plain error", stderrors.New("boom"), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := database.MapPQError(tt.err)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantStatus, got.StatusCode)
		})
	}
}

func TestMapError(t *testing.T) {
	assert.NoError(t, database.MapError(nil))
	assert.Equal(t, context.Canceled, database.MapError(context.Canceled))

	err := database.MapError(stderrors.New("connection reset"))
	assert.True(t, errors.IsStore(err))

	err = database.MapError(&pq.Error{Code: "23505"})
	assert.True(t, errors.Is(err, errors.ErrConflict))
}
