package sales

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateSchedule(t *testing.T) {
	start := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	entries, err := GenerateSchedule(130000, 3, start)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	down := entries[0]
	if down.Numero != 0 || down.Type != EntryDownPayment || down.Amount != 65000 || !down.DueDate.Equal(start) {
		t.Fatalf("unexpected down payment %+v", down)
	}
	for k := 1; k <= 3; k++ {
		entry := entries[k]
		if entry.Numero != k || entry.Type != EntryInstallment || entry.Amount != 21667 {
			t.Fatalf("unexpected entry %d: %+v", k, entry)
		}
		if !entry.DueDate.Equal(start.AddDate(0, 0, 30*k)) {
			t.Fatalf("entry %d due %s", k, entry.DueDate)
		}
		if entry.Status != EntryPending || entry.AmountPaid != 0 || entry.PaidAt != nil {
			t.Fatalf("entry %d not pending: %+v", k, entry)
		}
	}
}

func TestGenerateScheduleAcrossDaylightSaving(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, loc)
	entries, err := GenerateSchedule(130000, 3, start)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for k := 1; k <= 3; k++ {
		if got := entries[k].DueDate.Sub(start); got != time.Duration(30*k)*24*time.Hour {
			t.Fatalf("entry %d due %s after start", k, got)
		}
	}
}

func TestGenerateScheduleOddTotal(t *testing.T) {
	entries, err := GenerateSchedule(1001, 2, time.Now())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if entries[0].Amount != 501 || entries[1].Amount != 250 || entries[2].Amount != 250 {
		t.Fatalf("unexpected amounts: %d %d %d", entries[0].Amount, entries[1].Amount, entries[2].Amount)
	}
}

func TestGenerateScheduleRejectsMonths(t *testing.T) {
	for _, months := range []int{0, -1} {
		if _, err := GenerateSchedule(1000, months, time.Now()); !errors.Is(err, ErrInvalidInstallmentCount) {
			t.Fatalf("months=%d: expected invalid installment count, got %v", months, err)
		}
	}
}
