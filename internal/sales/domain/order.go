package sales

import "time"

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderPreparation OrderStatus = "preparation"
	OrderShipped     OrderStatus = "expediee"
	OrderDelivered   OrderStatus = "livree"
	OrderCancelled   OrderStatus = "annulee"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPreparation, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// PaymentState is the coarse payment flag kept on an order.
type PaymentState string

const (
	PaymentPending  PaymentState = "attente"
	PaymentPaid     PaymentState = "paye"
	PaymentRefunded PaymentState = "rembourse"
)

// Order is one client's purchase of one product (commande).
type Order struct {
	ID               string       `json:"id"`
	TenantID         string       `json:"tenantId"`
	ClientID         string       `json:"clientId"`
	ProductID        string       `json:"productId"`
	Quantity         int          `json:"quantity"`
	UnitPrice        int64        `json:"unitPrice"`
	TotalAmount      int64        `json:"totalAmount"`
	IsInstallment    bool         `json:"isInstallment"`
	InstallmentCount int          `json:"installmentCount,omitempty"`
	Status           OrderStatus  `json:"status"`
	PaymentState     PaymentState `json:"paymentState"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// Validate checks order invariants.
func (o Order) Validate() error {
	if o.ID == "" {
		return validationError("empty order id")
	}
	if o.TenantID == "" {
		return validationError("empty tenant id")
	}
	if o.ClientID == "" {
		return validationError("empty client id")
	}
	if o.ProductID == "" {
		return validationError("empty product id")
	}
	if o.Quantity <= 0 {
		return validationError("quantity must be positive")
	}
	if o.IsInstallment && o.InstallmentCount < 1 {
		return ErrInvalidInstallmentCount
	}
	if !o.Status.Valid() {
		return validationError("unknown order status")
	}
	return nil
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	ClientID string
	Status   OrderStatus
}
