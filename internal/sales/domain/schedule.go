package sales

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultInstallmentIntervalDays is the spacing between installments.
const DefaultInstallmentIntervalDays = 30

// EntryStatus is the state of a single schedule entry.
type EntryStatus string

const (
	EntryPending EntryStatus = "en_attente"
	EntryPaid    EntryStatus = "paye"
	EntryOverdue EntryStatus = "en_retard"
)

// EntryType distinguishes the down payment from monthly installments.
type EntryType string

const (
	EntryDownPayment EntryType = "acompte"
	EntryInstallment EntryType = "mensualite"
)

// ScheduleEntry is one line of a payment schedule (échéance).
type ScheduleEntry struct {
	Numero     int         `json:"numero"`
	Type       EntryType   `json:"type"`
	Amount     int64       `json:"montant"`
	DueDate    time.Time   `json:"dateEcheance"`
	Status     EntryStatus `json:"statut"`
	AmountPaid int64       `json:"montantPaye"`
	PaidAt     *time.Time  `json:"datePaiement,omitempty"`
}

// IsPaid reports whether the entry has been settled.
func (e ScheduleEntry) IsPaid() bool { return e.Status == EntryPaid }

var half = decimal.RequireFromString("0.5")

// GenerateSchedule builds the down payment and months equal installments,
// spaced DefaultInstallmentIntervalDays apart.
func GenerateSchedule(total int64, months int, start time.Time) ([]ScheduleEntry, error) {
	return GenerateScheduleEvery(total, months, start, DefaultInstallmentIntervalDays)
}

// GenerateScheduleEvery builds a schedule with a custom day interval.
// Entry k is due exactly k intervals of 24h after start.
// The down payment is half the total; the rest is split evenly and the
// rounding residue is not redistributed.
func GenerateScheduleEvery(total int64, months int, start time.Time, intervalDays int) ([]ScheduleEntry, error) {
	if months < 1 {
		return nil, ErrInvalidInstallmentCount
	}
	if total < 0 {
		return nil, validationError("negative total")
	}
	if intervalDays <= 0 {
		intervalDays = DefaultInstallmentIntervalDays
	}

	totalDec := decimal.NewFromInt(total)
	down := totalDec.Mul(half).Round(0)
	installment := totalDec.Sub(down).DivRound(decimal.NewFromInt(int64(months)), 0).IntPart()

	entries := make([]ScheduleEntry, 0, months+1)
	entries = append(entries, ScheduleEntry{
		Numero:  0,
		Type:    EntryDownPayment,
		Amount:  down.IntPart(),
		DueDate: start,
		Status:  EntryPending,
	})
	for k := 1; k <= months; k++ {
		entries = append(entries, ScheduleEntry{
			Numero:  k,
			Type:    EntryInstallment,
			Amount:  installment,
			DueDate: start.Add(time.Duration(k*intervalDays) * 24 * time.Hour),
			Status:  EntryPending,
		})
	}
	return entries, nil
}

func cloneEntries(entries []ScheduleEntry) []ScheduleEntry {
	if entries == nil {
		return nil
	}
	out := make([]ScheduleEntry, len(entries))
	for i, entry := range entries {
		if entry.PaidAt != nil {
			paidAt := *entry.PaidAt
			entry.PaidAt = &paidAt
		}
		out[i] = entry
	}
	return out
}
