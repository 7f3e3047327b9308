package sales

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

var ledgerStart = time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

func newInstallmentLedger(t *testing.T, total int64, months int) *PaymentLedger {
	t.Helper()
	entries, err := GenerateSchedule(total, months, ledgerStart)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	ledger, err := NewPaymentLedger(NewLedgerParams{
		ID:        "l-1",
		TenantID:  "t1",
		OrderID:   "o-1",
		ClientID:  "c1",
		TotalOwed: total,
		Entries:   entries,
		CreatedAt: ledgerStart,
	})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	return ledger
}

func TestApplyEntryPaymentKeepsRemainingInSync(t *testing.T) {
	ledger := newInstallmentLedger(t, 130000, 3)
	if ledger.Status() != LedgerInProgress {
		t.Fatalf("expected en_cours initially, got %s", ledger.Status())
	}
	payments := []struct {
		numero int
		amount int64
	}{{0, 65000}, {2, 21667}, {1, 20000}, {3, 21667}}
	var paid int64
	for i, p := range payments {
		entry, err := ledger.ApplyEntryPayment(p.numero, p.amount, ledgerStart.Add(time.Duration(i)*time.Hour))
		if err != nil {
			t.Fatalf("pay %d: %v", p.numero, err)
		}
		paid += p.amount
		if entry.Status != EntryPaid || entry.AmountPaid != p.amount || entry.PaidAt == nil {
			t.Fatalf("entry not settled: %+v", entry)
		}
		if ledger.AmountPaid() != paid {
			t.Fatalf("amount paid = %d, want %d", ledger.AmountPaid(), paid)
		}
		if ledger.Remaining() != ledger.TotalOwed()-ledger.AmountPaid() {
			t.Fatalf("remaining out of sync")
		}
		wantStatus := LedgerInProgress
		if i == len(payments)-1 {
			wantStatus = LedgerCompleted
		}
		if ledger.Status() != wantStatus {
			t.Fatalf("after %d payments status = %s", i+1, ledger.Status())
		}
	}
	if !ledger.LastPaymentAt().Equal(ledgerStart.Add(3 * time.Hour)) {
		t.Fatalf("unexpected last payment %s", ledger.LastPaymentAt())
	}
}

func TestApplyEntryPaymentUnknownNumeroLeavesLedger(t *testing.T) {
	ledger := newInstallmentLedger(t, 130000, 3)
	before := ledger.Document()
	if _, err := ledger.ApplyEntryPayment(999, 5000, ledgerStart); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected entry not found, got %v", err)
	}
	if _, err := ledger.ApplyEntryPayment(1, 0, ledgerStart); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !reflect.DeepEqual(before, ledger.Document()) {
		t.Fatalf("ledger mutated on error")
	}
}

func TestApplyEntryPaymentTwice(t *testing.T) {
	ledger := newInstallmentLedger(t, 130000, 3)
	if _, err := ledger.ApplyEntryPayment(1, 21667, ledgerStart); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if _, err := ledger.ApplyEntryPayment(1, 21667, ledgerStart); !errors.Is(err, ErrEntryAlreadyPaid) {
		t.Fatalf("expected already paid, got %v", err)
	}
	if ledger.AmountPaid() != 21667 {
		t.Fatalf("second payment must not count, got %d", ledger.AmountPaid())
	}
}

func TestApplyDownPaymentReadsScheduledAmount(t *testing.T) {
	entries, _ := GenerateSchedule(130000, 3, ledgerStart)
	entries[0].Amount = 50000
	ledger, err := NewPaymentLedger(NewLedgerParams{
		ID: "l-2", TenantID: "t1", OrderID: "o-2", TotalOwed: 130000, Entries: entries, CreatedAt: ledgerStart,
	})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	entry, err := ledger.ApplyDownPayment(ledgerStart)
	if err != nil {
		t.Fatalf("down payment: %v", err)
	}
	if entry.Numero != 0 || entry.AmountPaid != 50000 || ledger.AmountPaid() != 50000 {
		t.Fatalf("down payment must use entry 0 amount: entry=%+v paid=%d", entry, ledger.AmountPaid())
	}
	if _, err := ledger.ApplyDownPayment(ledgerStart); !errors.Is(err, ErrEntryAlreadyPaid) {
		t.Fatalf("expected already paid, got %v", err)
	}
}

func TestLumpPaymentAccumulates(t *testing.T) {
	ledger, err := NewPaymentLedger(NewLedgerParams{ID: "l-3", TenantID: "t1", OrderID: "o-3", TotalOwed: 100000, CreatedAt: ledgerStart})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if ledger.Kind() != LedgerSingle {
		t.Fatalf("expected unique ledger")
	}
	if err := ledger.ApplyLumpPayment(60000, "", ledgerStart); err != nil {
		t.Fatalf("lump: %v", err)
	}
	if err := ledger.ApplyLumpPayment(40000, "", ledgerStart); err != nil {
		t.Fatalf("lump: %v", err)
	}
	if ledger.AmountPaid() != 100000 || ledger.Remaining() != 0 || ledger.Status() != LedgerCompleted {
		t.Fatalf("unexpected state paid=%d status=%s", ledger.AmountPaid(), ledger.Status())
	}
	if err := ledger.ApplyLumpPayment(10, "bogus", ledgerStart); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := ledger.ApplyLumpPayment(-5, "", ledgerStart); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLumpPaymentOnScheduleKeepsDerivedStatus(t *testing.T) {
	ledger := newInstallmentLedger(t, 130000, 3)
	if err := ledger.ApplyLumpPayment(130000, "", ledgerStart); err != nil {
		t.Fatalf("lump: %v", err)
	}
	if ledger.Status() != LedgerInProgress {
		t.Fatalf("entries still pending, got %s", ledger.Status())
	}
	if err := ledger.ApplyLumpPayment(1, LedgerCompleted, ledgerStart); err != nil {
		t.Fatalf("lump: %v", err)
	}
	if ledger.Status() != LedgerCompleted {
		t.Fatalf("explicit status must win, got %s", ledger.Status())
	}
}

func TestOverrideAmountPaid(t *testing.T) {
	ledger := newInstallmentLedger(t, 130000, 3)
	if err := ledger.OverrideAmountPaid(70000, ledgerStart); err != nil {
		t.Fatalf("override: %v", err)
	}
	if err := ledger.OverrideAmountPaid(60000, ledgerStart); !errors.Is(err, ErrAmountDecrease) {
		t.Fatalf("expected decrease rejection, got %v", err)
	}
	if ledger.AmountPaid() != 70000 || ledger.Remaining() != 60000 {
		t.Fatalf("unexpected amounts paid=%d remaining=%d", ledger.AmountPaid(), ledger.Remaining())
	}
}

func TestNewPaymentLedgerRequiresDownPaymentFirst(t *testing.T) {
	entries, _ := GenerateSchedule(1000, 2, ledgerStart)
	_, err := NewPaymentLedger(NewLedgerParams{ID: "l", TenantID: "t1", OrderID: "o", TotalOwed: 1000, Entries: entries[1:]})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMarkOverdue(t *testing.T) {
	ledger := newInstallmentLedger(t, 130000, 3)
	if _, err := ledger.ApplyDownPayment(ledgerStart); err != nil {
		t.Fatalf("down: %v", err)
	}
	changed := ledger.MarkOverdue(ledgerStart.AddDate(0, 0, 61))
	if changed != 2 || !ledger.HasOverdue() {
		t.Fatalf("expected 2 overdue entries, got %d", changed)
	}
	if entry, _ := ledger.Entry(0); entry.Status != EntryPaid {
		t.Fatalf("paid entry must stay paid")
	}
	if again := ledger.MarkOverdue(ledgerStart.AddDate(0, 0, 61)); again != 0 {
		t.Fatalf("expected idempotent mark, got %d", again)
	}
}

func TestDeriveLedgerStatusIdempotent(t *testing.T) {
	entries, _ := GenerateSchedule(1000, 2, ledgerStart)
	if DeriveLedgerStatus(entries) != LedgerInProgress {
		t.Fatalf("expected en_cours")
	}
	for i := range entries[:2] {
		entries[i].Status = EntryPaid
	}
	first := DeriveLedgerStatus(entries)
	if first != DeriveLedgerStatus(entries) || first != LedgerInProgress {
		t.Fatalf("derive must be stable")
	}
	entries[2].Status = EntryPaid
	if DeriveLedgerStatus(entries) != LedgerCompleted {
		t.Fatalf("expected termine once the last entry is paid")
	}
}

func TestProjectPaymentState(t *testing.T) {
	if ProjectPaymentState(PaymentPending, LedgerCompleted) != PaymentPaid {
		t.Fatalf("termine must project to paye")
	}
	if ProjectPaymentState(PaymentPaid, LedgerInProgress) != PaymentPending {
		t.Fatalf("en_cours must project to attente")
	}
	if ProjectPaymentState(PaymentRefunded, LedgerCompleted) != PaymentRefunded {
		t.Fatalf("rembourse must stick")
	}
}

func TestLedgerDocumentRoundTripFields(t *testing.T) {
	ledger := newInstallmentLedger(t, 130000, 3)
	if _, err := ledger.ApplyDownPayment(ledgerStart); err != nil {
		t.Fatalf("down: %v", err)
	}
	ledger.MarkPersisted(3)
	data, err := json.Marshal(ledger.Document())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, field := range []string{`"montantInitial":130000`, `"montantPaye":65000`, `"resteAPayer":65000`, `"statut":"en_cours"`, `"type":"echelonne"`, `"echeances":[`, `"dateEcheance"`, `"datePaiement"`, `"numero":0`} {
		if !strings.Contains(string(data), field) {
			t.Fatalf("document missing %s: %s", field, data)
		}
	}

	var doc LedgerDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	doc.Remaining = 1
	restored, err := RestoreLedger(doc)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Remaining() != 65000 || restored.Version() != 3 || len(restored.Entries()) != 4 {
		t.Fatalf("unexpected restored ledger: %+v", restored.Document())
	}
}
