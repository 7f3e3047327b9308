package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"secursales/internal/audit"
	"secursales/internal/auth"
	catalogapp "secursales/internal/catalog/application"
	catalog "secursales/internal/catalog/domain"
)

// ProductHandler serves the product catalog.
type ProductHandler struct {
	service       *catalogapp.Service
	defaultTenant string
	auditLogger   audit.Logger
}

// NewProductHandler constructs a handler.
func NewProductHandler(service *catalogapp.Service, defaultTenant string, auditLogger audit.Logger) (*ProductHandler, error) {
	if service == nil {
		return nil, errors.New("product handler: nil service")
	}
	return &ProductHandler{service: service, defaultTenant: defaultTenant, auditLogger: auditLogger}, nil
}

// Register mounts the product routes.
func (h *ProductHandler) Register(r chi.Router) {
	r.Get("/products", h.handleList)
	r.Post("/products", h.handleCreate)
	r.Get("/products/{id}", h.handleGet)
	r.Put("/products/{id}", h.handleUpdate)
	r.Delete("/products/{id}", h.handleDelete)
}

func (h *ProductHandler) handleList(w http.ResponseWriter, r *http.Request) {
	tenantID := auth.ResolveTenant(r.Context(), h.defaultTenant)
	activeOnly := auth.RoleFromContext(r.Context()) == auth.RoleClient || r.URL.Query().Get("active") == "true"
	products, err := h.service.List(r.Context(), tenantID, activeOnly)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req catalogapp.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	tenantID := auth.ResolveTenant(r.Context(), h.defaultTenant)
	product, err := h.service.Create(r.Context(), tenantID, req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
	h.logAudit(r, product.ID, "product.create", map[string]any{"unitPrice": product.UnitPrice})
}

func (h *ProductHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	tenantID := auth.ResolveTenant(r.Context(), h.defaultTenant)
	product, err := h.service.Get(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req catalogapp.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	tenantID := auth.ResolveTenant(r.Context(), h.defaultTenant)
	product, err := h.service.Update(r.Context(), tenantID, chi.URLParam(r, "id"), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
	h.logAudit(r, product.ID, "product.update", map[string]any{"unitPrice": product.UnitPrice, "active": product.Active})
}

func (h *ProductHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	tenantID := auth.ResolveTenant(r.Context(), h.defaultTenant)
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), tenantID, id); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, id, "product.delete", nil)
}

func (h *ProductHandler) logAudit(r *http.Request, productID, action string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		return
	}
	var payload []byte
	if meta != nil {
		payload, _ = json.Marshal(meta)
	}
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		TenantID:     tenantID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "product",
		ResourceID:   productID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, catalog.ErrInvalidProduct):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, catalog.ErrProductNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, auth.ErrTenantMismatch), errors.Is(err, auth.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
