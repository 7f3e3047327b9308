package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	sales "secursales/internal/sales/domain"
)

// Store is an in-memory backing for orders and ledgers. Orders and ledgers
// share one lock so that cross-record writes are atomic.
type Store struct {
	mu            sync.RWMutex
	orders        map[string]*sales.Order
	ledgers       map[string]*sales.PaymentLedger
	ledgerByOrder map[string]string
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		orders:        make(map[string]*sales.Order),
		ledgers:       make(map[string]*sales.PaymentLedger),
		ledgerByOrder: make(map[string]string),
	}
}

// Orders returns the order repository view of the store.
func (s *Store) Orders() *OrderRepository { return &OrderRepository{store: s} }

// Ledgers returns the ledger repository view of the store.
func (s *Store) Ledgers() *LedgerRepository { return &LedgerRepository{store: s} }

// OrderRepository is the in-memory order repository.
type OrderRepository struct {
	store *Store
}

// Create stores a new order with its ledger.
func (r *OrderRepository) Create(ctx context.Context, order *sales.Order, ledger *sales.PaymentLedger) error {
	_ = ctx
	if order == nil || ledger == nil {
		return sales.ErrNilAggregate
	}
	if err := order.Validate(); err != nil {
		return err
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	orderCopy := *order
	s.orders[order.ID] = &orderCopy
	stored := ledger.Clone()
	stored.MarkPersisted(1)
	s.ledgers[ledger.ID()] = stored
	s.ledgerByOrder[order.ID] = ledger.ID()
	ledger.MarkPersisted(1)
	return nil
}

// Get loads an order.
func (r *OrderRepository) Get(ctx context.Context, tenantID, id string) (*sales.Order, error) {
	_ = ctx
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	order := s.orders[id]
	if order == nil || order.TenantID != tenantID {
		return nil, nil
	}
	copy := *order
	return &copy, nil
}

// List returns tenant orders, newest first.
func (r *OrderRepository) List(ctx context.Context, tenantID string, filter sales.OrderFilter) ([]sales.Order, error) {
	_ = ctx
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []sales.Order
	for _, order := range s.orders {
		if order.TenantID != tenantID {
			continue
		}
		if filter.ClientID != "" && order.ClientID != filter.ClientID {
			continue
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		result = append(result, *order)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// UpdateStatus sets the fulfilment status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, tenantID, id string, status sales.OrderStatus, at time.Time) error {
	_ = ctx
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	order := s.orders[id]
	if order == nil || order.TenantID != tenantID {
		return sales.ErrOrderNotFound
	}
	order.Status = status
	order.UpdatedAt = at
	return nil
}

// MarkRefunded flags the order payment as refunded.
func (r *OrderRepository) MarkRefunded(ctx context.Context, tenantID, id string, at time.Time) error {
	_ = ctx
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	order := s.orders[id]
	if order == nil || order.TenantID != tenantID {
		return sales.ErrOrderNotFound
	}
	order.PaymentState = sales.PaymentRefunded
	order.UpdatedAt = at
	return nil
}

// Delete removes an order and its ledger.
func (r *OrderRepository) Delete(ctx context.Context, tenantID, id string) error {
	_ = ctx
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	order := s.orders[id]
	if order == nil || order.TenantID != tenantID {
		return sales.ErrOrderNotFound
	}
	delete(s.orders, id)
	if ledgerID, ok := s.ledgerByOrder[id]; ok {
		delete(s.ledgers, ledgerID)
		delete(s.ledgerByOrder, id)
	}
	return nil
}

// LedgerRepository is the in-memory ledger repository.
type LedgerRepository struct {
	store *Store
}

// Get loads a ledger.
func (r *LedgerRepository) Get(ctx context.Context, tenantID, id string) (*sales.PaymentLedger, error) {
	_ = ctx
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	ledger := s.ledgers[id]
	if ledger == nil || ledger.TenantID() != tenantID {
		return nil, nil
	}
	return ledger.Clone(), nil
}

// GetByOrder loads the ledger of an order.
func (r *LedgerRepository) GetByOrder(ctx context.Context, tenantID, orderID string) (*sales.PaymentLedger, error) {
	r.store.mu.RLock()
	id, ok := r.store.ledgerByOrder[orderID]
	r.store.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.Get(ctx, tenantID, id)
}

// Update stores the ledger when the stored version matches.
func (r *LedgerRepository) Update(ctx context.Context, ledger *sales.PaymentLedger, expectedVersion int) error {
	_ = ctx
	if ledger == nil {
		return sales.ErrNilAggregate
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.ledgers[ledger.ID()]
	if current == nil || current.TenantID() != ledger.TenantID() {
		return sales.ErrLedgerNotFound
	}
	if current.Version() != expectedVersion {
		return sales.ErrVersionConflict
	}
	next := expectedVersion + 1
	stored := ledger.Clone()
	stored.MarkPersisted(next)
	s.ledgers[ledger.ID()] = stored
	if order := s.orders[ledger.OrderID()]; order != nil {
		order.PaymentState = sales.ProjectPaymentState(order.PaymentState, ledger.Status())
		order.UpdatedAt = ledger.UpdatedAt()
	}
	ledger.MarkPersisted(next)
	return nil
}

// ListWithPendingDue returns ledgers holding a pending entry due before the time.
func (r *LedgerRepository) ListWithPendingDue(ctx context.Context, before time.Time, limit int) ([]*sales.PaymentLedger, error) {
	_ = ctx
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*sales.PaymentLedger
	for _, ledger := range s.ledgers {
		if ledger.Kind() != sales.LedgerInstallment {
			continue
		}
		for _, entry := range ledger.Entries() {
			if entry.Status == sales.EntryPending && entry.DueDate.Before(before) {
				result = append(result, ledger.Clone())
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
