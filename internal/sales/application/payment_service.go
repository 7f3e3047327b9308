package application

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sethvargo/go-retry"

	"secursales/internal/auth"
	"secursales/internal/observability/metrics"
	sales "secursales/internal/sales/domain"
)

const (
	defaultPaymentRetries = 5
	defaultRetryBase      = 10 * time.Millisecond
)

// PaymentServiceOption configures a PaymentService.
type PaymentServiceOption func(*PaymentService)

// WithPaymentClock overrides the clock.
func WithPaymentClock(clock Clock) PaymentServiceOption {
	return func(s *PaymentService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithPublisher sets the payment recorded publisher.
func WithPublisher(publisher PaymentPublisher) PaymentServiceOption {
	return func(s *PaymentService) {
		s.publisher = publisher
	}
}

// WithMaxRetries bounds the retries of a conflicting ledger write.
func WithMaxRetries(retries int) PaymentServiceOption {
	return func(s *PaymentService) {
		if retries >= 0 {
			s.maxRetries = uint64(retries)
		}
	}
}

// WithRetryBase sets the first backoff delay.
func WithRetryBase(base time.Duration) PaymentServiceOption {
	return func(s *PaymentService) {
		if base > 0 {
			s.retryBase = base
		}
	}
}

// WithPaymentLogger sets the logger used for publish failures.
func WithPaymentLogger(logger *log.Logger) PaymentServiceOption {
	return func(s *PaymentService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// PaymentService applies payments to ledgers. Every operation reads the
// ledger, mutates it and writes it back only if nobody else wrote in between.
type PaymentService struct {
	ledgers    sales.LedgerRepository
	publisher  PaymentPublisher
	clock      Clock
	maxRetries uint64
	retryBase  time.Duration
	logger     *log.Logger
}

// NewPaymentService constructs the service.
func NewPaymentService(ledgers sales.LedgerRepository, opts ...PaymentServiceOption) (*PaymentService, error) {
	if ledgers == nil {
		return nil, errors.New("payment service: nil ledger repository")
	}
	s := &PaymentService{
		ledgers:    ledgers,
		clock:      SystemClock{},
		maxRetries: defaultPaymentRetries,
		retryBase:  defaultRetryBase,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EntryPaymentResult is the settled entry and the ledger after the payment.
type EntryPaymentResult struct {
	Entry  sales.ScheduleEntry  `json:"echeance"`
	Ledger sales.LedgerDocument `json:"paiement"`
}

// Get loads a ledger.
func (s *PaymentService) Get(ctx context.Context, tenantID, id string) (*sales.PaymentLedger, error) {
	ledger, err := s.load(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return ledger, nil
}

// ApplyEntryPayment settles one schedule entry.
func (s *PaymentService) ApplyEntryPayment(ctx context.Context, tenantID, id string, numero int, amount int64, paidAt time.Time) (EntryPaymentResult, error) {
	var entry sales.ScheduleEntry
	ledger, err := s.mutate(ctx, tenantID, id, func(l *sales.PaymentLedger, now time.Time) error {
		var err error
		entry, err = l.ApplyEntryPayment(numero, amount, pick(paidAt, now))
		return err
	})
	if err != nil {
		return EntryPaymentResult{}, err
	}
	s.publish(ctx, ledger, PaymentKindEntry, numero, amount)
	return EntryPaymentResult{Entry: entry, Ledger: ledger.Document()}, nil
}

// ApplyDownPayment settles entry 0 for its scheduled amount.
func (s *PaymentService) ApplyDownPayment(ctx context.Context, tenantID, id string, paidAt time.Time) (EntryPaymentResult, error) {
	var entry sales.ScheduleEntry
	ledger, err := s.mutate(ctx, tenantID, id, func(l *sales.PaymentLedger, now time.Time) error {
		var err error
		entry, err = l.ApplyDownPayment(pick(paidAt, now))
		return err
	})
	if err != nil {
		return EntryPaymentResult{}, err
	}
	s.publish(ctx, ledger, PaymentKindDown, entry.Numero, entry.AmountPaid)
	return EntryPaymentResult{Entry: entry, Ledger: ledger.Document()}, nil
}

// ApplyLumpPayment adds a payment not tied to a schedule entry.
func (s *PaymentService) ApplyLumpPayment(ctx context.Context, tenantID, id string, amount int64, status sales.LedgerStatus, paidAt time.Time) (sales.LedgerDocument, error) {
	ledger, err := s.mutate(ctx, tenantID, id, func(l *sales.PaymentLedger, now time.Time) error {
		return l.ApplyLumpPayment(amount, status, pick(paidAt, now))
	})
	if err != nil {
		return sales.LedgerDocument{}, err
	}
	s.publish(ctx, ledger, PaymentKindLump, -1, amount)
	return ledger.Document(), nil
}

// OverrideAmountPaid sets the amount paid to an absolute value.
func (s *PaymentService) OverrideAmountPaid(ctx context.Context, tenantID, id string, amount int64) (sales.LedgerDocument, error) {
	var delta int64
	ledger, err := s.mutate(ctx, tenantID, id, func(l *sales.PaymentLedger, now time.Time) error {
		before := l.AmountPaid()
		if err := l.OverrideAmountPaid(amount, now); err != nil {
			return err
		}
		delta = amount - before
		return nil
	})
	if err != nil {
		return sales.LedgerDocument{}, err
	}
	s.publish(ctx, ledger, PaymentKindOverride, -1, delta)
	return ledger.Document(), nil
}

func (s *PaymentService) load(ctx context.Context, tenantID, id string) (*sales.PaymentLedger, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: ledger id required", sales.ErrValidation)
	}
	ledger, err := s.ledgers.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if ledger == nil {
		return nil, sales.ErrLedgerNotFound
	}
	if err := auth.EnsureClientAccess(ctx, ledger.ClientID()); err != nil {
		return nil, err
	}
	return ledger, nil
}

func (s *PaymentService) mutate(ctx context.Context, tenantID, id string, apply func(*sales.PaymentLedger, time.Time) error) (*sales.PaymentLedger, error) {
	var result *sales.PaymentLedger
	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		ledger, err := s.load(ctx, tenantID, id)
		if err != nil {
			if errors.Is(err, driver.ErrBadConn) {
				return retry.RetryableError(err)
			}
			return err
		}
		expected := ledger.Version()
		if err := apply(ledger, s.clock.Now().UTC()); err != nil {
			return err
		}
		if err := s.ledgers.Update(ctx, ledger, expected); err != nil {
			if errors.Is(err, sales.ErrVersionConflict) {
				metrics.IncLedgerConflict()
				return retry.RetryableError(err)
			}
			if errors.Is(err, driver.ErrBadConn) {
				return retry.RetryableError(err)
			}
			return err
		}
		result = ledger
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PaymentService) publish(ctx context.Context, ledger *sales.PaymentLedger, kind PaymentKind, numero int, amount int64) {
	if s.publisher == nil || ledger == nil {
		return
	}
	event := PaymentRecorded{
		TenantID:   ledger.TenantID(),
		LedgerID:   ledger.ID(),
		OrderID:    ledger.OrderID(),
		ClientID:   ledger.ClientID(),
		Kind:       kind,
		Numero:     numero,
		Amount:     amount,
		AmountPaid: ledger.AmountPaid(),
		Remaining:  ledger.Remaining(),
		Status:     ledger.Status(),
		OccurredAt: ledger.UpdatedAt(),
	}
	if err := s.publisher.PublishPaymentRecorded(ctx, event); err != nil {
		s.logger.Printf("payment publish error: ledger=%s kind=%s err=%v", ledger.ID(), kind, err)
	}
}

func pick(at, fallback time.Time) time.Time {
	if at.IsZero() {
		return fallback
	}
	return at
}
