package sales

// LedgerStatus is the aggregate payment status of a ledger.
type LedgerStatus string

const (
	LedgerDownPayment LedgerStatus = "acompte"
	LedgerInProgress  LedgerStatus = "en_cours"
	LedgerCompleted   LedgerStatus = "termine"
)

// Valid reports whether s is a known ledger status.
func (s LedgerStatus) Valid() bool {
	switch s {
	case LedgerDownPayment, LedgerInProgress, LedgerCompleted:
		return true
	}
	return false
}

// DeriveLedgerStatus recomputes the ledger status from its full entry list.
func DeriveLedgerStatus(entries []ScheduleEntry) LedgerStatus {
	if len(entries) == 0 {
		return LedgerInProgress
	}
	for _, entry := range entries {
		if !entry.IsPaid() {
			return LedgerInProgress
		}
	}
	return LedgerCompleted
}

// ProjectPaymentState returns the order payment flag implied by a ledger status.
// A refunded order stays refunded.
func ProjectPaymentState(current PaymentState, status LedgerStatus) PaymentState {
	if current == PaymentRefunded {
		return PaymentRefunded
	}
	if status == LedgerCompleted {
		return PaymentPaid
	}
	return PaymentPending
}
