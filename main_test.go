package main

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"secursales/internal/auth"
)

type pingRoutes struct{}

func (pingRoutes) Register(r chi.Router) {
	r.Get("/orders", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(auth.SubjectFromContext(r.Context())))
	})
}

func TestRouterHealthAndAuth(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	mw := auth.NewMiddleware([]byte("secret"), auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil),
		auth.WithAPIKey("machine-key", "t1", auth.RoleAgent))
	router := newRouter(logger, mw, pingRoutes{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}
	if !strings.Contains(buf.String(), "http GET /healthz 200") {
		t.Fatalf("expected access log, got %q", buf.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("X-API-Key", "machine-key")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != auth.APIKeySubject {
		t.Fatalf("api key request: %d %q", rec.Code, rec.Body.String())
	}
}

func TestGetenvIntDefault(t *testing.T) {
	t.Setenv("PAYMENT_MAX_RETRIES", "7")
	if got := getenvIntDefault("PAYMENT_MAX_RETRIES", 5); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	t.Setenv("PAYMENT_MAX_RETRIES", "x")
	if got := getenvIntDefault("PAYMENT_MAX_RETRIES", 5); got != 5 {
		t.Fatalf("expected fallback, got %d", got)
	}
}
