package sales

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned when a caller supplies a missing or invalid field.
	ErrValidation = errors.New("sales: validation failed")
	// ErrInvalidInstallmentCount is returned when the number of installments is out of range.
	ErrInvalidInstallmentCount = fmt.Errorf("%w: invalid installment count", ErrValidation)
	// ErrEntryNotFound is returned when no schedule entry matches a numero.
	ErrEntryNotFound = errors.New("sales: schedule entry not found")
	// ErrEntryAlreadyPaid is returned when a schedule entry was already settled.
	ErrEntryAlreadyPaid = errors.New("sales: schedule entry already paid")
	// ErrNoSchedule is returned for schedule operations on a single-payment ledger.
	ErrNoSchedule = errors.New("sales: ledger has no schedule")
	// ErrAmountDecrease is returned when an override would lower the amount paid.
	ErrAmountDecrease = errors.New("sales: amount paid cannot decrease")
	// ErrOrderNotFound is returned when an order is not found.
	ErrOrderNotFound = errors.New("sales: order not found")
	// ErrLedgerNotFound is returned when a payment ledger is not found.
	ErrLedgerNotFound = errors.New("sales: ledger not found")
	// ErrVersionConflict is returned when a ledger changed since it was read.
	ErrVersionConflict = errors.New("sales: ledger version conflict")
	// ErrNilAggregate is returned when saving a nil aggregate.
	ErrNilAggregate = errors.New("sales: nil aggregate")
)

func validationError(detail string) error {
	return fmt.Errorf("%w: %s", ErrValidation, detail)
}
