package http_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	pkghttp "github.com/BradenHooton/clinicauth/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteError(w, 400, "test_error", "Test message")

	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "test_error", resp["error"])
	assert.Equal(t, "Test message", resp["message"])
	assert.NotContains(t, resp, "details")
}

func TestWriteErrorWithDetails(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteErrorWithDetails(w, 400, "incorrect_code", "Código incorreto", map[string]int{"remaining_attempts": 4})

	var resp struct {
		Error   string         `json:"error"`
		Details map[string]int `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "incorrect_code", resp.Error)
	assert.Equal(t, 4, resp.Details["remaining_attempts"])
}

func TestStatusWriters(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w *httptest.ResponseRecorder)
		wantStatus int
		wantCode   string
	}{
		{"bad request", func(w *httptest.ResponseRecorder) { pkghttp.WriteBadRequest(w, "m") }, 400, "bad_request"},
		{"unauthorized", func(w *httptest.ResponseRecorder) { pkghttp.WriteUnauthorized(w, "m") }, 401, "unauthorized"},
		{"forbidden", func(w *httptest.ResponseRecorder) { pkghttp.WriteForbidden(w, "m") }, 403, "forbidden"},
		{"not found", func(w *httptest.ResponseRecorder) { pkghttp.WriteNotFound(w, "m") }, 404, "not_found"},
		{"conflict", func(w *httptest.ResponseRecorder) { pkghttp.WriteConflict(w, "m") }, 409, "conflict"},
		{"gone", func(w *httptest.ResponseRecorder) { pkghttp.WriteGone(w, "code_expired", "m") }, 410, "code_expired"},
		{"unprocessable", func(w *httptest.ResponseRecorder) { pkghttp.WriteUnprocessable(w, "weak_password", "m") }, 422, "weak_password"},
		{"too many", func(w *httptest.ResponseRecorder) { pkghttp.WriteTooManyRequests(w, "m") }, 429, "rate_limit_exceeded"},
		{"internal", func(w *httptest.ResponseRecorder) { pkghttp.WriteInternalError(w, "m") }, 500, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp pkghttp.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Error)
		})
	}
}
