package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfpulse/internal/types"
)

func newRequest(t *testing.T, method, target, body string) *http.Request {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return r.WithContext(types.WithRequestID(r.Context(), "req_test"))
}

func TestJSONWritesEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	r := newRequest(t, http.MethodGet, "/v1/snapshots", "")

	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]string{"id": "snap_1"}})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"id":"snap_1"}}`, w.Body.String())
}

func TestErrorWithAppError(t *testing.T) {
	w := httptest.NewRecorder()
	r := newRequest(t, http.MethodGet, "/v1/snapshots", "")

	appErr := types.NewAppError(types.ErrCodeValidationPeriodType, "unsupported period type", nil)
	Error(w, r, appErr)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "validation_invalid_period_type", resp.Error.Code)
	assert.Equal(t, "unsupported period type", resp.Error.Message)
	assert.Equal(t, "req_test", resp.Error.RequestID)
}

func TestErrorWithWrappedAppError(t *testing.T) {
	w := httptest.NewRecorder()
	r := newRequest(t, http.MethodGet, "/v1/reports", "")

	inner := types.NewAppError(types.ErrCodeNotFoundReport, "report not found", nil)
	Error(w, r, errors.Join(errors.New("fetching report"), inner))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not_found_report")
}

func TestErrorGenericIsOpaque(t *testing.T) {
	w := httptest.NewRecorder()
	r := newRequest(t, http.MethodGet, "/v1/reports", "")

	Error(w, r, errors.New("pgx: connection refused at 10.0.0.5"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal_unexpected_error")
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
}

func TestDecodeJSON(t *testing.T) {
	type reportRequest struct {
		OrganizationID string `json:"organization_id"`
		ReportType     string `json:"report_type"`
	}

	t.Run("valid body", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := newRequest(t, http.MethodPost, "/v1/reports", `{"organization_id":"org_1","report_type":"weekly_summary"}`)

		var req reportRequest
		require.NoError(t, DecodeJSON(w, r, &req))
		assert.Equal(t, "org_1", req.OrganizationID)
		assert.Equal(t, "weekly_summary", req.ReportType)
	})

	t.Run("malformed json", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := newRequest(t, http.MethodPost, "/v1/reports", `{"organization_id":`)

		var req reportRequest
		err := DecodeJSON(w, r, &req)
		require.Error(t, err)

		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, types.ErrCodeValidationInvalidJSON, appErr.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := newRequest(t, http.MethodPost, "/v1/reports", `{"organization_id":"org_1","bogus":true}`)

		var req reportRequest
		err := DecodeJSON(w, r, &req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown field")
	})

	t.Run("empty body", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := newRequest(t, http.MethodPost, "/v1/reports", "")

		var req reportRequest
		err := DecodeJSON(w, r, &req)
		require.Error(t, err)

		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, types.ErrCodeValidationInvalidJSON, appErr.Code)
	})

	t.Run("type mismatch carries field details", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := newRequest(t, http.MethodPost, "/v1/reports", `{"organization_id":42}`)

		var req reportRequest
		err := DecodeJSON(w, r, &req)
		require.Error(t, err)

		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "organization_id", appErr.Details["field"])
	})

	t.Run("multiple json values rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := newRequest(t, http.MethodPost, "/v1/reports", `{"organization_id":"org_1"}{"organization_id":"org_2"}`)

		var req reportRequest
		err := DecodeJSON(w, r, &req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "single JSON object")
	})
}
