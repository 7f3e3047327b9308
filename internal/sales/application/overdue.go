package application

import (
	"context"
	"errors"
	"log"
	"time"

	"secursales/internal/observability/metrics"
	sales "secursales/internal/sales/domain"
)

const defaultOverdueBatch = 200

// OverdueScanner flags past-due schedule entries across all tenants.
type OverdueScanner struct {
	ledgers   sales.LedgerRepository
	clock     Clock
	batchSize int
	logger    *log.Logger
}

// NewOverdueScanner constructs the scanner.
func NewOverdueScanner(ledgers sales.LedgerRepository, clock Clock, logger *log.Logger) (*OverdueScanner, error) {
	if ledgers == nil {
		return nil, errors.New("overdue scanner: nil ledger repository")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &OverdueScanner{
		ledgers:   ledgers,
		clock:     clock,
		batchSize: defaultOverdueBatch,
		logger:    logger,
	}, nil
}

// Run marks every pending entry due before now as overdue and returns the
// number of entries changed. Ledgers written concurrently are left for the
// next run.
func (s *OverdueScanner) Run(ctx context.Context) (int, error) {
	now := s.clock.Now().UTC()
	total := 0
	for {
		batch, err := s.ledgers.ListWithPendingDue(ctx, now, s.batchSize)
		if err != nil {
			return total, err
		}
		marked := 0
		for _, ledger := range batch {
			expected := ledger.Version()
			changed := ledger.MarkOverdue(now)
			if changed == 0 {
				continue
			}
			if err := s.ledgers.Update(ctx, ledger, expected); err != nil {
				if errors.Is(err, sales.ErrVersionConflict) {
					s.logger.Printf("overdue scan skipped: ledger=%s err=%v", ledger.ID(), err)
					continue
				}
				return total, err
			}
			marked += changed
		}
		total += marked
		if len(batch) < s.batchSize || marked == 0 {
			break
		}
	}
	metrics.AddOverdueMarked(total)
	return total, nil
}

// Scheduler runs the overdue scanner once a day.
type Scheduler struct {
	scanner *OverdueScanner
	dailyAt string
	logger  *log.Logger
}

// NewScheduler constructs a Scheduler. dailyAt is HH:MM in UTC.
func NewScheduler(scanner *OverdueScanner, dailyAt string, logger *log.Logger) *Scheduler {
	return &Scheduler{
		scanner: scanner,
		dailyAt: dailyAt,
		logger:  logger,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.scanner == nil {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !s.shouldRun(now.UTC()) {
				continue
			}
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) shouldRun(now time.Time) bool {
	hour, minute, err := parseDailyAt(s.dailyAt)
	if err != nil {
		return false
	}
	return now.Hour() == hour && now.Minute() == minute
}

func (s *Scheduler) runOnce(ctx context.Context) {
	marked, err := s.scanner.Run(ctx)
	if s.logger == nil {
		return
	}
	if err != nil {
		s.logger.Printf("overdue scan error: marked=%d err=%v", marked, err)
		return
	}
	s.logger.Printf("overdue scan done: marked=%d", marked)
}

func parseDailyAt(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
