package interfaces

import (
	"context"

	"secursales/internal/eventing"
	salesapp "secursales/internal/sales/application"
)

// OutboxPublisher writes payment recorded events to the outbox.
type OutboxPublisher struct {
	publisher *eventing.Publisher
}

// NewOutboxPublisher constructs an outbox publisher.
func NewOutboxPublisher(publisher *eventing.Publisher) *OutboxPublisher {
	return &OutboxPublisher{publisher: publisher}
}

// PublishPaymentRecorded writes event to outbox.
func (p *OutboxPublisher) PublishPaymentRecorded(ctx context.Context, event salesapp.PaymentRecorded) error {
	if p == nil || p.publisher == nil {
		return nil
	}
	return p.publisher.Publish(ctx, salesapp.PaymentRecordedEvent, event, eventing.Meta{
		TenantID:    event.TenantID,
		AggregateID: event.LedgerID,
		OccurredAt:  event.OccurredAt,
	})
}

// PaymentRecordedHandler decodes outbox envelopes and forwards them to next.
func PaymentRecordedHandler(next salesapp.PaymentPublisher) eventing.Handler {
	return func(ctx context.Context, env eventing.Envelope) error {
		var event salesapp.PaymentRecorded
		if err := env.Decode(&event); err != nil {
			return err
		}
		return next.PublishPaymentRecorded(ctx, event)
	}
}
