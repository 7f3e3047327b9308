package eventing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// Handler consumes one delivered envelope.
type Handler func(ctx context.Context, env Envelope) error

// Dispatcher relays pending outbox records to registered handlers.
type Dispatcher struct {
	outbox OutboxStore
	logger *log.Logger

	mu       sync.RWMutex
	handlers map[string][]Handler
	running  sync.Mutex
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(outbox OutboxStore, logger *log.Logger) (*Dispatcher, error) {
	if outbox == nil {
		return nil, errors.New("dispatcher: nil outbox")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{outbox: outbox, logger: logger, handlers: make(map[string][]Handler)}, nil
}

// Handle registers a handler for an event type.
func (d *Dispatcher) Handle(eventType string, handler Handler) {
	if handler == nil {
		return
	}
	d.mu.Lock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
	d.mu.Unlock()
}

// Dispatch delivers up to limit pending records and returns how many were sent.
// A record without handlers, or whose handler fails, is marked failed.
func (d *Dispatcher) Dispatch(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 50
	}
	d.running.Lock()
	defer d.running.Unlock()

	records, err := d.outbox.ListPending(ctx, limit)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, record := range records {
		if err := d.deliver(ctx, record.Envelope); err != nil {
			d.logger.Printf("outbox delivery failed: id=%s type=%s err=%v", record.ID, record.Envelope.EventType, err)
			if markErr := d.outbox.MarkFailed(ctx, record.ID, err.Error()); markErr != nil {
				return sent, markErr
			}
			continue
		}
		if err := d.outbox.MarkSent(ctx, record.ID); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

func (d *Dispatcher) deliver(ctx context.Context, env Envelope) error {
	d.mu.RLock()
	handlers := d.handlers[env.EventType]
	d.mu.RUnlock()
	if len(handlers) == 0 {
		return fmt.Errorf("no handler for %s", env.EventType)
	}
	ctx = WithEnvelope(ctx, env)
	for _, handler := range handlers {
		if err := handler(ctx, env); err != nil {
			return err
		}
	}
	return nil
}

// Run dispatches on every tick until ctx is done.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.Dispatch(ctx, 100); err != nil && ctx.Err() == nil {
				d.logger.Printf("outbox dispatch error: %v", err)
			}
		}
	}
}

// Publisher writes events to the outbox and triggers a dispatch.
type Publisher struct {
	outbox   OutboxWriter
	dispatch *Dispatcher
}

// NewPublisher constructs a publisher. dispatch may be nil when delivery runs elsewhere.
func NewPublisher(outbox OutboxWriter, dispatch *Dispatcher) *Publisher {
	return &Publisher{outbox: outbox, dispatch: dispatch}
}

// Publish stores the event. Delivery errors are left to the dispatcher.
func (p *Publisher) Publish(ctx context.Context, eventType string, event any, meta Meta) error {
	if p == nil || p.outbox == nil {
		return nil
	}
	if meta.CorrelationID == "" {
		meta.CorrelationID = CorrelationIDFromContext(ctx)
	}
	env, err := BuildEnvelope(eventType, event, meta)
	if err != nil {
		return err
	}
	if _, err := p.outbox.Insert(ctx, env); err != nil {
		return err
	}
	if p.dispatch != nil {
		_, _ = p.dispatch.Dispatch(ctx, 10)
	}
	return nil
}
