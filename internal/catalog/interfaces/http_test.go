package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"secursales/internal/audit"
	"secursales/internal/auth"
	catalogapp "secursales/internal/catalog/application"
	catalog "secursales/internal/catalog/domain"
	"secursales/internal/catalog/infrastructure/memory"
)

func newProductRouter(t *testing.T) (http.Handler, *catalogapp.Service, *audit.MemoryLogger) {
	t.Helper()
	service, err := catalogapp.NewService(memory.NewRepository())
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	auditLogger := audit.NewMemoryLogger()
	handler, err := NewProductHandler(service, "t1", auditLogger)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	r := chi.NewRouter()
	r.Route("/api/v1", handler.Register)
	return r, service, auditLogger
}

func withRole(req *http.Request, role auth.Role) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), "t1", role, "user-1"))
}

func TestProductLifecycle(t *testing.T) {
	router, _, auditLogger := newProductRouter(t)

	req := withRole(httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(`{"name":"Tecno Spark","unitPrice":100000}`)), auth.RoleAdmin)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status %d: %s", rec.Code, rec.Body.String())
	}
	var created catalog.Product
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || !created.Active || created.TenantID != "t1" {
		t.Fatalf("unexpected product %+v", created)
	}

	req = withRole(httptest.NewRequest(http.MethodPut, "/api/v1/products/"+created.ID, strings.NewReader(`{"name":"Tecno Spark","unitPrice":90000,"active":false}`)), auth.RoleAdmin)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status %d: %s", rec.Code, rec.Body.String())
	}

	req = withRole(httptest.NewRequest(http.MethodGet, "/api/v1/products", nil), auth.RoleClient)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var listed []catalog.Product
	_ = json.Unmarshal(rec.Body.Bytes(), &listed)
	if len(listed) != 0 {
		t.Fatalf("clients must not see inactive products: %+v", listed)
	}

	req = withRole(httptest.NewRequest(http.MethodDelete, "/api/v1/products/"+created.ID, nil), auth.RoleAdmin)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status %d", rec.Code)
	}

	req = withRole(httptest.NewRequest(http.MethodGet, "/api/v1/products/"+created.ID, nil), auth.RoleAdmin)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
	if got := len(auditLogger.Entries()); got != 3 {
		t.Fatalf("expected 3 audit entries, got %d", got)
	}
}

func TestCreateProductValidation(t *testing.T) {
	router, _, _ := newProductRouter(t)
	req := withRole(httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(`{"name":"","unitPrice":0}`)), auth.RoleAdmin)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUnitPriceLookup(t *testing.T) {
	_, service, _ := newProductRouter(t)
	ctx := context.Background()
	product, err := service.Create(ctx, "t1", catalogapp.ProductInput{Name: "Fridge", UnitPrice: 450000})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	price, ok, err := service.UnitPrice(ctx, "t1", product.ID)
	if err != nil || !ok || price != 450000 {
		t.Fatalf("lookup: price=%d ok=%v err=%v", price, ok, err)
	}
	if _, ok, _ := service.UnitPrice(ctx, "t2", product.ID); ok {
		t.Fatalf("price must not leak across tenants")
	}
}
