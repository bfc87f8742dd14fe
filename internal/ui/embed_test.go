package ui

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandler(t *testing.T) {
	h := Handler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /: status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<title>abeto</title>") {
		t.Fatalf("GET /: unexpected body %q", rec.Body.String())
	}
}

func TestHandler_spaFallback(t *testing.T) {
	h := Handler()
	req := httptest.NewRequest(http.MethodGet, "/reviews/management", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "app.js") {
		t.Fatalf("GET /reviews/management (fallback): status=%d", rec.Code)
	}
}

func TestHandler_assets(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "/bootstrap") {
		t.Fatalf("GET /app.js: status=%d", rec.Code)
	}
}
