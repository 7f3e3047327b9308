package interfaces

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"secursales/internal/audit"
	"secursales/internal/auth"
	"secursales/internal/observability/metrics"
	salesapp "secursales/internal/sales/application"
	sales "secursales/internal/sales/domain"
)

// SalesHandler serves the order and ledger API.
type SalesHandler struct {
	orders        *salesapp.OrderService
	payments      *salesapp.PaymentService
	defaultTenant string
	auditLogger   audit.Logger
	logger        *log.Logger
}

// NewSalesHandler constructs a handler.
func NewSalesHandler(orders *salesapp.OrderService, payments *salesapp.PaymentService, defaultTenant string, auditLogger audit.Logger, logger *log.Logger) (*SalesHandler, error) {
	if orders == nil {
		return nil, errors.New("sales handler: nil order service")
	}
	if payments == nil {
		return nil, errors.New("sales handler: nil payment service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &SalesHandler{
		orders:        orders,
		payments:      payments,
		defaultTenant: defaultTenant,
		auditLogger:   auditLogger,
		logger:        logger,
	}, nil
}

// Register mounts the order and ledger routes.
func (h *SalesHandler) Register(r chi.Router) {
	r.Post("/orders/quote", h.handleQuote)
	r.Post("/orders", h.handlePlaceOrder)
	r.Get("/orders", h.handleListOrders)
	r.Get("/orders/{id}", h.handleGetOrder)
	r.Patch("/orders/{id}/status", h.handleUpdateStatus)
	r.Post("/orders/{id}/refund", h.handleRefund)
	r.Delete("/orders/{id}", h.handleDeleteOrder)

	r.Get("/ledgers/{id}", h.handleGetLedger)
	r.Post("/ledgers/{id}/entries/{numero}/payments", h.handleEntryPayment)
	r.Post("/ledgers/{id}/payments", h.handleLumpPayment)
	r.Post("/ledgers/{id}/down-payment", h.handleDownPayment)
	r.Put("/ledgers/{id}/amount-paid", h.handleOverride)
	r.Get("/ledgers/{id}/export.pdf", h.handleExportPDF)
	r.Get("/ledgers/{id}/export.xlsx", h.handleExportXLSX)
}

type orderRequest struct {
	ClientID         string `json:"clientId"`
	ProductID        string `json:"productId"`
	Quantity         int    `json:"quantity"`
	IsInstallment    bool   `json:"isInstallment"`
	InstallmentCount int    `json:"installmentCount"`
}

func (h *SalesHandler) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	quote, err := h.orders.Quote(r.Context(), salesapp.QuoteInput{
		TenantID:         h.tenant(r),
		ProductID:        req.ProductID,
		Quantity:         req.Quantity,
		IsInstallment:    req.IsInstallment,
		InstallmentCount: req.InstallmentCount,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (h *SalesHandler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.ResultSuccess
	kind := "unique"
	var amount int64
	defer func() {
		metrics.ObserveOrderPlaced(kind, result, amount, time.Since(start))
	}()

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		result = metrics.ResultError
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.IsInstallment {
		kind = "echelonne"
	}
	clientID := req.ClientID
	if clientID == "" && auth.RoleFromContext(r.Context()) == auth.RoleClient {
		clientID = auth.SubjectFromContext(r.Context())
	}
	details, err := h.orders.PlaceOrder(r.Context(), salesapp.PlaceOrderInput{
		TenantID:         h.tenant(r),
		ClientID:         clientID,
		ProductID:        req.ProductID,
		Quantity:         req.Quantity,
		IsInstallment:    req.IsInstallment,
		InstallmentCount: req.InstallmentCount,
	})
	if err != nil {
		result = metrics.ResultError
		h.respondServiceError(w, err)
		return
	}
	amount = details.Order.TotalAmount
	writeJSON(w, http.StatusCreated, details)
	h.logAudit(r, "order", details.Order.ID, details.Order.ID, "order.create", map[string]any{
		"productId":        details.Order.ProductID,
		"quantity":         details.Order.Quantity,
		"totalAmount":      details.Order.TotalAmount,
		"installmentCount": details.Order.InstallmentCount,
	})
}

func (h *SalesHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	filter := sales.OrderFilter{
		ClientID: r.URL.Query().Get("clientId"),
		Status:   sales.OrderStatus(r.URL.Query().Get("status")),
	}
	orders, err := h.orders.List(r.Context(), h.tenant(r), filter)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *SalesHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	details, err := h.orders.Get(r.Context(), h.tenant(r), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *SalesHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status sales.OrderStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	order, err := h.orders.UpdateStatus(r.Context(), h.tenant(r), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
	h.logAudit(r, "order", order.ID, order.ID, "order.status", map[string]any{"status": order.Status})
}

func (h *SalesHandler) handleRefund(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.MarkRefunded(r.Context(), h.tenant(r), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
	h.logAudit(r, "order", order.ID, order.ID, "order.refund", nil)
}

func (h *SalesHandler) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.orders.Delete(r.Context(), h.tenant(r), id); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, "order", id, id, "order.delete", nil)
}

func (h *SalesHandler) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	ledger, err := h.payments.Get(r.Context(), h.tenant(r), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ledger.Document())
}

type paymentRequest struct {
	Amount int64              `json:"amount"`
	Status sales.LedgerStatus `json:"status,omitempty"`
	PaidAt *time.Time         `json:"paidAt,omitempty"`
}

func (p paymentRequest) paidAt() time.Time {
	if p.PaidAt == nil {
		return time.Time{}
	}
	return p.PaidAt.UTC()
}

func (h *SalesHandler) handleEntryPayment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.ResultSuccess
	var amount int64
	defer func() {
		metrics.ObservePayment(string(salesapp.PaymentKindEntry), result, amount, time.Since(start))
	}()

	numero, err := strconv.Atoi(chi.URLParam(r, "numero"))
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "invalid numero", http.StatusBadRequest)
		return
	}
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		result = metrics.ResultError
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	res, err := h.payments.ApplyEntryPayment(r.Context(), h.tenant(r), chi.URLParam(r, "id"), numero, req.Amount, req.paidAt())
	if err != nil {
		result = resultFor(err)
		h.respondServiceError(w, err)
		return
	}
	amount = req.Amount
	writeJSON(w, http.StatusOK, res)
	h.logAudit(r, "ledger", res.Ledger.ID, res.Ledger.OrderID, "ledger.entry_payment", map[string]any{
		"numero": numero,
		"amount": req.Amount,
	})
}

func (h *SalesHandler) handleLumpPayment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.ResultSuccess
	var amount int64
	defer func() {
		metrics.ObservePayment(string(salesapp.PaymentKindLump), result, amount, time.Since(start))
	}()

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		result = metrics.ResultError
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	doc, err := h.payments.ApplyLumpPayment(r.Context(), h.tenant(r), chi.URLParam(r, "id"), req.Amount, req.Status, req.paidAt())
	if err != nil {
		result = resultFor(err)
		h.respondServiceError(w, err)
		return
	}
	amount = req.Amount
	writeJSON(w, http.StatusOK, doc)
	h.logAudit(r, "ledger", doc.ID, doc.OrderID, "ledger.payment", map[string]any{
		"amount": req.Amount,
		"status": req.Status,
	})
}

func (h *SalesHandler) handleDownPayment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.ResultSuccess
	var amount int64
	defer func() {
		metrics.ObservePayment(string(salesapp.PaymentKindDown), result, amount, time.Since(start))
	}()

	var req paymentRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			result = metrics.ResultError
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
	}
	res, err := h.payments.ApplyDownPayment(r.Context(), h.tenant(r), chi.URLParam(r, "id"), req.paidAt())
	if err != nil {
		result = resultFor(err)
		h.respondServiceError(w, err)
		return
	}
	amount = res.Entry.AmountPaid
	writeJSON(w, http.StatusOK, res)
	h.logAudit(r, "ledger", res.Ledger.ID, res.Ledger.OrderID, "ledger.down_payment", map[string]any{
		"amount": res.Entry.AmountPaid,
	})
}

func (h *SalesHandler) handleOverride(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObservePayment(string(salesapp.PaymentKindOverride), result, 0, time.Since(start))
	}()

	var req struct {
		AmountPaid *int64 `json:"amountPaid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AmountPaid == nil {
		result = metrics.ResultError
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	doc, err := h.payments.OverrideAmountPaid(r.Context(), h.tenant(r), chi.URLParam(r, "id"), *req.AmountPaid)
	if err != nil {
		result = resultFor(err)
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
	h.logAudit(r, "ledger", doc.ID, doc.OrderID, "ledger.override_amount_paid", map[string]any{
		"amountPaid": *req.AmountPaid,
	})
}

func (h *SalesHandler) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	h.handleExport(w, r, "pdf", "application/pdf", BuildLedgerPDF)
}

func (h *SalesHandler) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.handleExport(w, r, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", BuildLedgerXLSX)
}

func (h *SalesHandler) handleExport(w http.ResponseWriter, r *http.Request, format, contentType string, build func(sales.LedgerDocument) ([]byte, error)) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveExport(format, result, time.Since(start))
	}()

	ledger, err := h.payments.Get(r.Context(), h.tenant(r), chi.URLParam(r, "id"))
	if err != nil {
		result = metrics.ResultError
		h.respondServiceError(w, err)
		return
	}
	doc := ledger.Document()
	data, err := build(doc)
	if err != nil {
		result = metrics.ResultError
		h.logger.Printf("ledger export error: ledger=%s format=%s err=%v", doc.ID, format, err)
		http.Error(w, "export "+format+" error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=\"paiement-"+doc.ID+"."+format+"\"")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, "ledger", doc.ID, doc.OrderID, "ledger.export", map[string]any{"format": format})
}

func (h *SalesHandler) tenant(r *http.Request) string {
	return auth.ResolveTenant(r.Context(), h.defaultTenant)
}

func (h *SalesHandler) logAudit(r *http.Request, resourceType, resourceID, orderID, action string, meta map[string]any) {
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
	err := h.auditLogger.Log(r.Context(), audit.Entry{
		TenantID:     tenantID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		OrderID:      orderID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
	if err != nil {
		h.logger.Printf("audit log error: action=%s resource=%s err=%v", action, resourceID, err)
	}
}

func (h *SalesHandler) respondServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Printf("sales api error: %v", err)
		http.Error(w, "internal error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sales.ErrValidation), errors.Is(err, sales.ErrNoSchedule):
		return http.StatusBadRequest
	case errors.Is(err, sales.ErrOrderNotFound), errors.Is(err, sales.ErrLedgerNotFound), errors.Is(err, sales.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, auth.ErrTenantMismatch):
		return http.StatusForbidden
	case errors.Is(err, sales.ErrEntryAlreadyPaid), errors.Is(err, sales.ErrVersionConflict), errors.Is(err, sales.ErrAmountDecrease):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func resultFor(err error) string {
	if errors.Is(err, sales.ErrVersionConflict) {
		return metrics.ResultConflict
	}
	return metrics.ResultError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
