package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func authProbe(apiKey string) http.Handler {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return Auth(apiKey)(next)
}

func TestAuthDisabledWhenKeyEmpty(t *testing.T) {
	rec := httptest.NewRecorder()
	authProbe("").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuthAcceptsBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	r.Header.Set("Authorization", "Bearer sekrit")

	rec := httptest.NewRecorder()
	authProbe("sekrit").ServeHTTP(rec, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuthAcceptsAPIKeyHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	r.Header.Set("X-API-Key", "sekrit")

	rec := httptest.NewRecorder()
	authProbe("sekrit").ServeHTTP(rec, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuthRejectsMissingToken(t *testing.T) {
	rec := httptest.NewRecorder()
	authProbe("sekrit").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsWrongToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	r.Header.Set("Authorization", "Bearer wrong")

	rec := httptest.NewRecorder()
	authProbe("sekrit").ServeHTTP(rec, r)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
