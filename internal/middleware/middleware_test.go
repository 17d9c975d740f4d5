package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLoggerAssignsRequestID(t *testing.T) {
	var seen string
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "given-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "given-id", seen)
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		allowed    []string
		method     string
		origin     string
		wantStatus int
		wantOrigin string
	}{
		{"allowed origin", []string{"http://localhost:5173"}, http.MethodGet, "http://localhost:5173", http.StatusOK, "http://localhost:5173"},
		{"other origin", []string{"http://localhost:5173"}, http.MethodGet, "http://evil.example", http.StatusOK, ""},
		{"wildcard", []string{"*"}, http.MethodGet, "http://any.example", http.StatusOK, "http://any.example"},
		{"preflight", []string{"http://localhost:5173"}, http.MethodOptions, "http://localhost:5173", http.StatusNoContent, "http://localhost:5173"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/evaluate", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			CORS(tt.allowed)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}
