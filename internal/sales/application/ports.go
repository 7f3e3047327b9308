package application

import (
	"context"
	"time"

	"github.com/google/uuid"

	sales "secursales/internal/sales/domain"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// IDGenerator produces record identities.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator issues random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }

// ProductCatalog resolves the current unit price of a product.
// ok is false when the product does not exist for the tenant.
type ProductCatalog interface {
	UnitPrice(ctx context.Context, tenantID, productID string) (price int64, ok bool, err error)
}

// PaymentKind labels the payment operation that changed a ledger.
type PaymentKind string

const (
	PaymentKindEntry    PaymentKind = "entry"
	PaymentKindLump     PaymentKind = "lump"
	PaymentKindDown     PaymentKind = "down_payment"
	PaymentKindOverride PaymentKind = "override"
)

// PaymentRecorded is emitted after a ledger payment has been stored.
type PaymentRecorded struct {
	TenantID   string             `json:"tenantId"`
	LedgerID   string             `json:"paiementId"`
	OrderID    string             `json:"commandeId"`
	ClientID   string             `json:"clientId,omitempty"`
	Kind       PaymentKind        `json:"kind"`
	Numero     int                `json:"numero,omitempty"`
	Amount     int64              `json:"amount"`
	AmountPaid int64              `json:"montantPaye"`
	Remaining  int64              `json:"resteAPayer"`
	Status     sales.LedgerStatus `json:"statut"`
	OccurredAt time.Time          `json:"occurredAt"`
}

// PaymentRecordedEvent is the event type of PaymentRecorded.
const PaymentRecordedEvent = "sales.payment_recorded"

// PaymentPublisher emits payment recorded events.
type PaymentPublisher interface {
	PublishPaymentRecorded(ctx context.Context, event PaymentRecorded) error
}
