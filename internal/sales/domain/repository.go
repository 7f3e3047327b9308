package sales

import (
	"context"
	"time"
)

// OrderRepository persists orders. An order and its ledger are created and
// deleted together.
type OrderRepository interface {
	Create(ctx context.Context, order *Order, ledger *PaymentLedger) error
	Get(ctx context.Context, tenantID, id string) (*Order, error)
	List(ctx context.Context, tenantID string, filter OrderFilter) ([]Order, error)
	UpdateStatus(ctx context.Context, tenantID, id string, status OrderStatus, at time.Time) error
	MarkRefunded(ctx context.Context, tenantID, id string, at time.Time) error
	Delete(ctx context.Context, tenantID, id string) error
}

// LedgerRepository persists payment ledgers.
type LedgerRepository interface {
	Get(ctx context.Context, tenantID, id string) (*PaymentLedger, error)
	GetByOrder(ctx context.Context, tenantID, orderID string) (*PaymentLedger, error)
	// Update stores the ledger only if its stored version still equals
	// expectedVersion, and refreshes the order payment state in the same write.
	// It returns ErrVersionConflict otherwise.
	Update(ctx context.Context, ledger *PaymentLedger, expectedVersion int) error
	// ListWithPendingDue returns installment ledgers, across tenants, holding a
	// pending entry due before the given time.
	ListWithPendingDue(ctx context.Context, before time.Time, limit int) ([]*PaymentLedger, error)
}
