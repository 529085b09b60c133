package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/feiralivre/marketplace-backend/pkg/errors"
	"github.com/feiralivre/marketplace-backend/pkg/types"
)

func TestWriteSuccessWrapsPayload(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"hello": "world"})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var envelope struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.Equal(t, "world", envelope.Data["hello"])
}

func TestWriteErrorMapsTaxonomyCodes(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{pkgerrors.New(pkgerrors.CodeNotFound, "order not found"), http.StatusNotFound, "NOT_FOUND"},
		{pkgerrors.New(pkgerrors.CodeStateConflict, "cannot transition"), http.StatusUnprocessableEntity, "STATE_CONFLICT"},
		{pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key already used"), http.StatusConflict, "IDEMPOTENCY_KEY_REUSED"},
		{pkgerrors.New(pkgerrors.CodeForbidden, "buyers cannot change order status"), http.StatusForbidden, "FORBIDDEN"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		WriteError(context.Background(), nil, rec, tc.err)
		require.Equal(t, tc.status, rec.Code)

		var envelope types.ErrorEnvelope
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
		require.Equal(t, tc.code, envelope.Error.Code)
	}
}

func TestWriteErrorHidesInternalMessages(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, errors.New("pq: connection refused at 10.0.0.7"))

	var envelope types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.Equal(t, "internal server error", envelope.Error.Message)
	require.NotContains(t, envelope.Error.Message, "10.0.0.7")
}

func TestWriteErrorSurfacesValidationDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{"quantity": "is required"})
	WriteError(context.Background(), nil, rec, err)

	var envelope struct {
		Error struct {
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.Equal(t, "is required", envelope.Error.Details["quantity"])
}
