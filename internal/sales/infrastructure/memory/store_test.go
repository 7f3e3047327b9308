package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	sales "secursales/internal/sales/domain"
)

func seed(t *testing.T, store *Store) (*sales.Order, *sales.PaymentLedger) {
	t.Helper()
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	entries, err := sales.GenerateSchedule(130000, 3, now)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	order := &sales.Order{
		ID: "o-1", TenantID: "t1", ClientID: "c1", ProductID: "p-1", Quantity: 1,
		UnitPrice: 100000, TotalAmount: 130000, IsInstallment: true, InstallmentCount: 3,
		Status: sales.OrderPreparation, PaymentState: sales.PaymentPending, CreatedAt: now, UpdatedAt: now,
	}
	ledger, err := sales.NewPaymentLedger(sales.NewLedgerParams{
		ID: "l-1", TenantID: "t1", OrderID: "o-1", ClientID: "c1", TotalOwed: 130000, Entries: entries, CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if err := store.Orders().Create(context.Background(), order, ledger); err != nil {
		t.Fatalf("create: %v", err)
	}
	return order, ledger
}

func TestUpdateChecksVersion(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seed(t, store)
	ledgers := store.Ledgers()

	first, _ := ledgers.Get(ctx, "t1", "l-1")
	second, _ := ledgers.Get(ctx, "t1", "l-1")
	if _, err := first.ApplyEntryPayment(1, 21667, time.Now()); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if err := ledgers.Update(ctx, first, first.Version()); err != nil {
		t.Fatalf("update: %v", err)
	}
	if first.Version() != 2 {
		t.Fatalf("expected version 2, got %d", first.Version())
	}
	if _, err := second.ApplyEntryPayment(2, 21667, time.Now()); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if err := ledgers.Update(ctx, second, second.Version()); !errors.Is(err, sales.ErrVersionConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	stored, _ := ledgers.Get(ctx, "t1", "l-1")
	if stored.AmountPaid() != 21667 {
		t.Fatalf("stale write leaked: %d", stored.AmountPaid())
	}
}

func TestStoreIsolatesCopies(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	order, ledger := seed(t, store)

	order.Status = sales.OrderCancelled
	if _, err := ledger.ApplyDownPayment(time.Now()); err != nil {
		t.Fatalf("pay: %v", err)
	}
	got, _ := store.Orders().Get(ctx, "t1", "o-1")
	if got.Status != sales.OrderPreparation {
		t.Fatalf("caller mutation leaked into store")
	}
	stored, _ := store.Ledgers().GetByOrder(ctx, "t1", "o-1")
	if stored.AmountPaid() != 0 {
		t.Fatalf("unsaved payment leaked into store")
	}
	if other, _ := store.Ledgers().Get(ctx, "t2", "l-1"); other != nil {
		t.Fatalf("tenant leak")
	}
}

func TestUpdateProjectsPaymentState(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seed(t, store)
	ledgers := store.Ledgers()

	ledger, _ := ledgers.Get(ctx, "t1", "l-1")
	for _, entry := range ledger.Entries() {
		if _, err := ledger.ApplyEntryPayment(entry.Numero, entry.Amount, time.Now()); err != nil {
			t.Fatalf("pay %d: %v", entry.Numero, err)
		}
	}
	if err := ledgers.Update(ctx, ledger, ledger.Version()); err != nil {
		t.Fatalf("update: %v", err)
	}
	order, _ := store.Orders().Get(ctx, "t1", "o-1")
	if order.PaymentState != sales.PaymentPaid {
		t.Fatalf("expected paye, got %s", order.PaymentState)
	}

	pending, err := ledgers.ListWithPendingDue(ctx, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), 10)
	if err != nil || len(pending) != 0 {
		t.Fatalf("paid ledger must not be listed: %d %v", len(pending), err)
	}
}
