package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"secursales/internal/auth"
	sales "secursales/internal/sales/domain"
)

func TestConcurrentEntryPaymentsBothLand(t *testing.T) {
	f := newFixture(t)
	details := placeInstallment(t, f, "c1", 3)
	ledgerID := details.Ledger.ID

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, numero := range []int{1, 2} {
		wg.Add(1)
		go func(i, numero int) {
			defer wg.Done()
			_, errs[i] = f.payments.ApplyEntryPayment(agentCtx(), "t1", ledgerID, numero, 21667, time.Time{})
		}(i, numero)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("payment %d: %v", i, err)
		}
	}

	ledger := ledgerOf(t, f, ledgerID)
	if ledger.AmountPaid() != 2*21667 {
		t.Fatalf("expected both payments, amount paid = %d", ledger.AmountPaid())
	}
	if ledger.Remaining() != ledger.TotalOwed()-ledger.AmountPaid() {
		t.Fatalf("remaining out of sync")
	}
	for _, numero := range []int{1, 2} {
		entry, _ := ledger.Entry(numero)
		if !entry.IsPaid() {
			t.Fatalf("entry %d not paid", numero)
		}
	}
}

func TestFullSchedulePaysOrder(t *testing.T) {
	f := newFixture(t)
	details := placeInstallment(t, f, "c1", 3)
	ctx := agentCtx()
	ledgerID := details.Ledger.ID

	if _, err := f.payments.ApplyDownPayment(ctx, "t1", ledgerID, time.Time{}); err != nil {
		t.Fatalf("down payment: %v", err)
	}
	var last EntryPaymentResult
	for numero := 1; numero <= 3; numero++ {
		res, err := f.payments.ApplyEntryPayment(ctx, "t1", ledgerID, numero, 21667, time.Time{})
		if err != nil {
			t.Fatalf("entry %d: %v", numero, err)
		}
		if res.Ledger.Remaining != res.Ledger.TotalOwed-res.Ledger.AmountPaid {
			t.Fatalf("remaining out of sync after entry %d", numero)
		}
		last = res
	}
	if last.Ledger.Status != sales.LedgerCompleted {
		t.Fatalf("expected termine, got %s", last.Ledger.Status)
	}
	if last.Ledger.AmountPaid != 130001 {
		t.Fatalf("expected rounding residue to be kept, amount paid = %d", last.Ledger.AmountPaid)
	}

	order, err := f.orders.Get(ctx, "t1", details.Order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Order.PaymentState != sales.PaymentPaid {
		t.Fatalf("expected order paye, got %s", order.Order.PaymentState)
	}
	if len(f.publisher.events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(f.publisher.events))
	}
	if ev := f.publisher.events[0]; ev.Kind != PaymentKindDown || ev.Amount != 65000 {
		t.Fatalf("unexpected first event: %+v", ev)
	}
}

func TestEntryPaymentErrorsLeaveLedgerUntouched(t *testing.T) {
	f := newFixture(t)
	details := placeInstallment(t, f, "c1", 2)
	ctx := agentCtx()
	ledgerID := details.Ledger.ID

	if _, err := f.payments.ApplyEntryPayment(ctx, "t1", ledgerID, 999, 1000, time.Time{}); !errors.Is(err, sales.ErrEntryNotFound) {
		t.Fatalf("expected entry not found, got %v", err)
	}
	if ledger := ledgerOf(t, f, ledgerID); ledger.AmountPaid() != 0 || ledger.Version() != 1 {
		t.Fatalf("ledger changed: paid=%d version=%d", ledger.AmountPaid(), ledger.Version())
	}

	if _, err := f.payments.ApplyEntryPayment(ctx, "t1", ledgerID, 1, 1000, time.Time{}); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if _, err := f.payments.ApplyEntryPayment(ctx, "t1", ledgerID, 1, 1000, time.Time{}); !errors.Is(err, sales.ErrEntryAlreadyPaid) {
		t.Fatalf("expected already paid, got %v", err)
	}
	if _, err := f.payments.ApplyEntryPayment(ctx, "t1", "missing", 1, 1000, time.Time{}); !errors.Is(err, sales.ErrLedgerNotFound) {
		t.Fatalf("expected ledger not found, got %v", err)
	}
	if _, err := f.payments.ApplyEntryPayment(ctx, "t2", ledgerID, 2, 1000, time.Time{}); !errors.Is(err, sales.ErrLedgerNotFound) {
		t.Fatalf("expected cross-tenant miss, got %v", err)
	}
}

func TestLumpPaymentAccumulatesAndOverride(t *testing.T) {
	f := newFixture(t)
	details, err := f.orders.PlaceOrder(agentCtx(), PlaceOrderInput{
		TenantID: "t1", ClientID: "c1", ProductID: "p-phone", Quantity: 1,
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	ctx := agentCtx()
	ledgerID := details.Ledger.ID

	doc, err := f.payments.ApplyLumpPayment(ctx, "t1", ledgerID, 40000, "", time.Time{})
	if err != nil {
		t.Fatalf("lump: %v", err)
	}
	doc, err = f.payments.ApplyLumpPayment(ctx, "t1", ledgerID, 30000, "", time.Time{})
	if err != nil {
		t.Fatalf("lump: %v", err)
	}
	if doc.AmountPaid != 70000 || doc.Remaining != 30000 || doc.Status != sales.LedgerInProgress {
		t.Fatalf("unexpected ledger after lumps: %+v", doc)
	}

	if _, err := f.payments.OverrideAmountPaid(ctx, "t1", ledgerID, 50000); !errors.Is(err, sales.ErrAmountDecrease) {
		t.Fatalf("expected decrease rejection, got %v", err)
	}
	doc, err = f.payments.OverrideAmountPaid(ctx, "t1", ledgerID, 100000)
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if doc.Status != sales.LedgerCompleted || doc.Remaining != 0 {
		t.Fatalf("expected completed single ledger: %+v", doc)
	}
	if _, err := f.payments.ApplyDownPayment(ctx, "t1", ledgerID, time.Time{}); !errors.Is(err, sales.ErrNoSchedule) {
		t.Fatalf("expected no schedule, got %v", err)
	}
}

func TestClientCannotReadForeignLedger(t *testing.T) {
	f := newFixture(t)
	details := placeInstallment(t, f, "c1", 2)
	if _, err := f.payments.Get(clientCtx("c2"), "t1", details.Ledger.ID); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := f.payments.Get(clientCtx("c1"), "t1", details.Ledger.ID); err != nil {
		t.Fatalf("owner get: %v", err)
	}
}

type conflictingLedgers struct {
	sales.LedgerRepository
	mu      sync.Mutex
	updates int
}

func (c *conflictingLedgers) Update(ctx context.Context, ledger *sales.PaymentLedger, expected int) error {
	c.mu.Lock()
	c.updates++
	c.mu.Unlock()
	return sales.ErrVersionConflict
}

func TestConflictRetriesAreBounded(t *testing.T) {
	f := newFixture(t)
	details := placeInstallment(t, f, "c1", 2)
	repo := &conflictingLedgers{LedgerRepository: f.store.Ledgers()}
	svc, err := NewPaymentService(repo, WithMaxRetries(3), WithRetryBase(time.Millisecond))
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	_, err = svc.ApplyEntryPayment(agentCtx(), "t1", details.Ledger.ID, 1, 1000, time.Time{})
	if !errors.Is(err, sales.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
	if repo.updates != 4 {
		t.Fatalf("expected 1 attempt plus 3 retries, got %d", repo.updates)
	}
}
