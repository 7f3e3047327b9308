package interfaces

import (
	"context"
	"errors"
	"log"

	salesapp "secursales/internal/sales/application"
)

// LoggingPublisher logs payment recorded events.
type LoggingPublisher struct {
	logger *log.Logger
}

// NewLoggingPublisher constructs a logging publisher.
func NewLoggingPublisher(logger *log.Logger) *LoggingPublisher {
	if logger == nil {
		logger = log.Default()
	}
	return &LoggingPublisher{logger: logger}
}

// PublishPaymentRecorded logs the event.
func (p *LoggingPublisher) PublishPaymentRecorded(ctx context.Context, event salesapp.PaymentRecorded) error {
	_ = ctx
	if p == nil {
		return errors.New("payment publisher: nil publisher")
	}
	p.logger.Printf("payment recorded: tenant=%s ledger=%s order=%s kind=%s amount=%d paid=%d remaining=%d status=%s",
		event.TenantID, event.LedgerID, event.OrderID, event.Kind, event.Amount, event.AmountPaid, event.Remaining, event.Status)
	return nil
}
