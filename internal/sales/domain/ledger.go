package sales

import (
	"errors"
	"time"
)

// LedgerKind tells single-payment ledgers apart from scheduled ones.
type LedgerKind string

const (
	LedgerSingle      LedgerKind = "unique"
	LedgerInstallment LedgerKind = "echelonne"
)

// PaymentLedger tracks the payments of one order (paiement).
// Remaining is always derived from total owed and amount paid.
type PaymentLedger struct {
	id       string
	tenantID string
	orderID  string
	clientID string
	kind     LedgerKind

	totalOwed  int64
	amountPaid int64
	status     LedgerStatus
	entries    []ScheduleEntry

	lastPaymentAt time.Time
	createdAt     time.Time
	updatedAt     time.Time
	version       int
}

// NewLedgerParams holds the inputs of a new ledger.
type NewLedgerParams struct {
	ID        string
	TenantID  string
	OrderID   string
	ClientID  string
	TotalOwed int64
	Entries   []ScheduleEntry
	CreatedAt time.Time
}

// NewPaymentLedger creates a ledger with nothing paid yet. A ledger with entries
// is an installment ledger and entry 0 must be the down payment.
func NewPaymentLedger(p NewLedgerParams) (*PaymentLedger, error) {
	if p.ID == "" {
		return nil, validationError("empty ledger id")
	}
	if p.TenantID == "" {
		return nil, validationError("empty tenant id")
	}
	if p.OrderID == "" {
		return nil, validationError("empty order id")
	}
	if p.TotalOwed < 0 {
		return nil, validationError("negative total")
	}
	kind := LedgerSingle
	if len(p.Entries) > 0 {
		kind = LedgerInstallment
		if err := validateEntries(p.Entries); err != nil {
			return nil, err
		}
	}
	return &PaymentLedger{
		id:        p.ID,
		tenantID:  p.TenantID,
		orderID:   p.OrderID,
		clientID:  p.ClientID,
		kind:      kind,
		totalOwed: p.TotalOwed,
		status:    LedgerInProgress,
		entries:   cloneEntries(p.Entries),
		createdAt: p.CreatedAt,
		updatedAt: p.CreatedAt,
	}, nil
}

func validateEntries(entries []ScheduleEntry) error {
	first := entries[0]
	if first.Numero != 0 || first.Type != EntryDownPayment {
		return validationError("first entry must be the down payment")
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Numero <= entries[i-1].Numero {
			return validationError("entries must be ordered by numero")
		}
	}
	return nil
}

// ApplyEntryPayment settles the entry with the given numero and adds the
// payment to the ledger total. The ledger is untouched on error.
func (l *PaymentLedger) ApplyEntryPayment(numero int, paid int64, paidAt time.Time) (ScheduleEntry, error) {
	if paid <= 0 {
		return ScheduleEntry{}, validationError("paid amount must be positive")
	}
	idx := l.entryIndex(numero)
	if idx < 0 {
		return ScheduleEntry{}, ErrEntryNotFound
	}
	if l.entries[idx].IsPaid() {
		return ScheduleEntry{}, ErrEntryAlreadyPaid
	}

	at := paidAt.UTC()
	entry := &l.entries[idx]
	entry.Status = EntryPaid
	entry.AmountPaid = paid
	entry.PaidAt = &at

	l.amountPaid += paid
	l.lastPaymentAt = at
	l.updatedAt = at
	l.status = DeriveLedgerStatus(l.entries)
	return cloneEntries(l.entries[idx : idx+1])[0], nil
}

// ApplyDownPayment settles entry 0 for the amount fixed in the schedule.
func (l *PaymentLedger) ApplyDownPayment(paidAt time.Time) (ScheduleEntry, error) {
	if l.kind != LedgerInstallment || len(l.entries) == 0 {
		return ScheduleEntry{}, ErrNoSchedule
	}
	down := l.entries[0]
	return l.ApplyEntryPayment(down.Numero, down.Amount, paidAt)
}

// ApplyLumpPayment adds a payment that is not tied to a schedule entry.
// An explicit status overrides derivation. Without one, a single-payment
// ledger completes once nothing remains and a scheduled ledger keeps the
// status derived from its entries.
func (l *PaymentLedger) ApplyLumpPayment(amount int64, status LedgerStatus, paidAt time.Time) error {
	if amount <= 0 {
		return validationError("payment amount must be positive")
	}
	if status != "" && !status.Valid() {
		return validationError("unknown ledger status")
	}

	at := paidAt.UTC()
	l.amountPaid += amount
	l.lastPaymentAt = at
	l.updatedAt = at
	switch {
	case status != "":
		l.status = status
	case l.kind == LedgerSingle && l.Remaining() <= 0:
		l.status = LedgerCompleted
	case l.kind == LedgerInstallment:
		l.status = DeriveLedgerStatus(l.entries)
	}
	return nil
}

// OverrideAmountPaid sets the amount paid to an absolute value. It is an
// administrative correction and never lowers the amount already paid.
func (l *PaymentLedger) OverrideAmountPaid(amount int64, at time.Time) error {
	if amount < 0 {
		return validationError("negative amount")
	}
	if amount < l.amountPaid {
		return ErrAmountDecrease
	}
	l.amountPaid = amount
	l.updatedAt = at.UTC()
	if l.kind == LedgerSingle && l.Remaining() <= 0 {
		l.status = LedgerCompleted
	}
	return nil
}

// MarkOverdue flags pending entries due before now and returns how many changed.
func (l *PaymentLedger) MarkOverdue(now time.Time) int {
	changed := 0
	for i := range l.entries {
		entry := &l.entries[i]
		if entry.Status == EntryPending && entry.DueDate.Before(now) {
			entry.Status = EntryOverdue
			changed++
		}
	}
	if changed > 0 {
		l.updatedAt = now.UTC()
	}
	return changed
}

// HasOverdue reports whether any entry is overdue.
func (l *PaymentLedger) HasOverdue() bool {
	for _, entry := range l.entries {
		if entry.Status == EntryOverdue {
			return true
		}
	}
	return false
}

func (l *PaymentLedger) entryIndex(numero int) int {
	for i, entry := range l.entries {
		if entry.Numero == numero {
			return i
		}
	}
	return -1
}

// Entry returns the entry with the given numero.
func (l *PaymentLedger) Entry(numero int) (ScheduleEntry, bool) {
	idx := l.entryIndex(numero)
	if idx < 0 {
		return ScheduleEntry{}, false
	}
	return cloneEntries(l.entries[idx : idx+1])[0], true
}

// ID returns the ledger identity.
func (l *PaymentLedger) ID() string { return l.id }

// TenantID returns the owning tenant.
func (l *PaymentLedger) TenantID() string { return l.tenantID }

// OrderID returns the order this ledger belongs to.
func (l *PaymentLedger) OrderID() string { return l.orderID }

// ClientID returns the client who placed the order.
func (l *PaymentLedger) ClientID() string { return l.clientID }

// Kind returns the ledger kind.
func (l *PaymentLedger) Kind() LedgerKind { return l.kind }

// TotalOwed returns the amount owed, fixed at creation.
func (l *PaymentLedger) TotalOwed() int64 { return l.totalOwed }

// AmountPaid returns the cumulative amount paid.
func (l *PaymentLedger) AmountPaid() int64 { return l.amountPaid }

// Remaining returns total owed minus amount paid.
func (l *PaymentLedger) Remaining() int64 { return l.totalOwed - l.amountPaid }

// Status returns the aggregate status.
func (l *PaymentLedger) Status() LedgerStatus { return l.status }

// Entries returns a copy of the schedule.
func (l *PaymentLedger) Entries() []ScheduleEntry { return cloneEntries(l.entries) }

// LastPaymentAt returns the time of the latest payment.
func (l *PaymentLedger) LastPaymentAt() time.Time { return l.lastPaymentAt }

// CreatedAt returns the creation time.
func (l *PaymentLedger) CreatedAt() time.Time { return l.createdAt }

// UpdatedAt returns the last mutation time.
func (l *PaymentLedger) UpdatedAt() time.Time { return l.updatedAt }

// Version returns the persisted version the ledger was loaded at.
func (l *PaymentLedger) Version() int { return l.version }

// MarkPersisted records the version stored by a repository.
func (l *PaymentLedger) MarkPersisted(version int) {
	if l != nil {
		l.version = version
	}
}

// Clone returns a detached copy.
func (l *PaymentLedger) Clone() *PaymentLedger {
	if l == nil {
		return nil
	}
	copy := *l
	copy.entries = cloneEntries(l.entries)
	return &copy
}

// LedgerDocument is the stored and exchanged shape of a ledger.
type LedgerDocument struct {
	ID            string          `json:"id"`
	TenantID      string          `json:"tenantId"`
	OrderID       string          `json:"commandeId"`
	ClientID      string          `json:"clientId,omitempty"`
	TotalOwed     int64           `json:"montantInitial"`
	AmountPaid    int64           `json:"montantPaye"`
	Remaining     int64           `json:"resteAPayer"`
	Status        LedgerStatus    `json:"statut"`
	Kind          LedgerKind      `json:"type"`
	Entries       []ScheduleEntry `json:"echeances"`
	LastPaymentAt *time.Time      `json:"dateDernierPaiement,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	Version       int             `json:"version"`
}

// Document returns the serializable form of the ledger.
func (l *PaymentLedger) Document() LedgerDocument {
	doc := LedgerDocument{
		ID:         l.id,
		TenantID:   l.tenantID,
		OrderID:    l.orderID,
		ClientID:   l.clientID,
		TotalOwed:  l.totalOwed,
		AmountPaid: l.amountPaid,
		Remaining:  l.Remaining(),
		Status:     l.status,
		Kind:       l.kind,
		Entries:    cloneEntries(l.entries),
		CreatedAt:  l.createdAt,
		UpdatedAt:  l.updatedAt,
		Version:    l.version,
	}
	if doc.Entries == nil {
		doc.Entries = []ScheduleEntry{}
	}
	if !l.lastPaymentAt.IsZero() {
		at := l.lastPaymentAt
		doc.LastPaymentAt = &at
	}
	return doc
}

// RestoreLedger rebuilds a ledger from its stored document. The stored
// remaining amount is ignored and recomputed.
func RestoreLedger(doc LedgerDocument) (*PaymentLedger, error) {
	if doc.ID == "" {
		return nil, errors.New("sales: stored ledger without id")
	}
	if !doc.Status.Valid() {
		return nil, errors.New("sales: stored ledger with unknown status")
	}
	kind := doc.Kind
	if kind == "" {
		kind = LedgerSingle
		if len(doc.Entries) > 0 {
			kind = LedgerInstallment
		}
	}
	if kind == LedgerInstallment {
		if len(doc.Entries) == 0 {
			return nil, errors.New("sales: stored installment ledger without entries")
		}
		if err := validateEntries(doc.Entries); err != nil {
			return nil, err
		}
	}
	l := &PaymentLedger{
		id:         doc.ID,
		tenantID:   doc.TenantID,
		orderID:    doc.OrderID,
		clientID:   doc.ClientID,
		kind:       kind,
		totalOwed:  doc.TotalOwed,
		amountPaid: doc.AmountPaid,
		status:     doc.Status,
		entries:    cloneEntries(doc.Entries),
		createdAt:  doc.CreatedAt,
		updatedAt:  doc.UpdatedAt,
		version:    doc.Version,
	}
	if doc.LastPaymentAt != nil {
		l.lastPaymentAt = *doc.LastPaymentAt
	}
	return l, nil
}
