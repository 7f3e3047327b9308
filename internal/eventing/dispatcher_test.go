package eventing

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"
	"time"
)

type sample struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

func TestBuildEnvelopeDefaults(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("X", 3600))
	env, err := BuildEnvelope("sample", sample{Name: "a", Amount: 5}, Meta{TenantID: "t1", OccurredAt: at})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if env.EventID == "" || env.CorrelationID != env.EventID {
		t.Fatalf("expected generated ids, got %+v", env)
	}
	if env.SchemaVersion != 1 || env.TenantID != "t1" || !env.OccurredAt.Equal(at) || env.OccurredAt.Location() != time.UTC {
		t.Fatalf("unexpected metadata: %+v", env)
	}
	var got sample
	if err := env.Decode(&got); err != nil || got.Amount != 5 {
		t.Fatalf("decode: %+v %v", got, err)
	}

	if _, err := BuildEnvelope("", sample{}, Meta{}); err == nil {
		t.Fatalf("expected error for empty type")
	}
}

func TestDispatcherDeliversAndMarks(t *testing.T) {
	ctx := context.Background()
	outbox := NewMemoryOutbox()
	var logs bytes.Buffer
	dispatcher, err := NewDispatcher(outbox, log.New(&logs, "", 0))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	var delivered []string
	dispatcher.Handle("ok", func(ctx context.Context, env Envelope) error {
		if got, ok := EnvelopeFromContext(ctx); !ok || got.EventID != env.EventID {
			t.Fatalf("envelope missing from context")
		}
		delivered = append(delivered, env.EventID)
		return nil
	})
	dispatcher.Handle("broken", func(ctx context.Context, env Envelope) error {
		return errors.New("boom")
	})

	publisher := NewPublisher(outbox, nil)
	ctx = WithCorrelationID(ctx, "req-1")
	for _, eventType := range []string{"ok", "broken", "orphan", "ok"} {
		if err := publisher.Publish(ctx, eventType, sample{Name: eventType}, Meta{}); err != nil {
			t.Fatalf("publish %s: %v", eventType, err)
		}
	}

	sent, err := dispatcher.Dispatch(ctx, 10)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if sent != 2 || len(delivered) != 2 {
		t.Fatalf("expected 2 deliveries, got sent=%d delivered=%d", sent, len(delivered))
	}

	records := outbox.Records()
	want := []string{StatusSent, StatusFailed, StatusFailed, StatusSent}
	for i, record := range records {
		if record.Status != want[i] {
			t.Fatalf("record %d: expected %s, got %s", i, want[i], record.Status)
		}
		if record.Envelope.CorrelationID != "req-1" {
			t.Fatalf("record %d: correlation not propagated", i)
		}
	}
	if records[1].Attempts != 1 || records[1].LastError != "boom" {
		t.Fatalf("unexpected failure bookkeeping: %+v", records[1])
	}

	sent, err = dispatcher.Dispatch(ctx, 10)
	if err != nil || sent != 0 {
		t.Fatalf("expected nothing left, got %d %v", sent, err)
	}
}

func TestMemoryOutboxIgnoresDuplicateEventID(t *testing.T) {
	outbox := NewMemoryOutbox()
	env, _ := BuildEnvelope("ok", sample{}, Meta{EventID: "e1"})
	first, _ := outbox.Insert(context.Background(), env)
	second, _ := outbox.Insert(context.Background(), env)
	if first != second || len(outbox.Records()) != 1 {
		t.Fatalf("expected single record, got %d", len(outbox.Records()))
	}
}

func TestPublisherTriggersDispatch(t *testing.T) {
	outbox := NewMemoryOutbox()
	dispatcher, _ := NewDispatcher(outbox, log.New(&bytes.Buffer{}, "", 0))
	calls := 0
	dispatcher.Handle("ok", func(ctx context.Context, env Envelope) error {
		calls++
		return nil
	})
	if err := NewPublisher(outbox, dispatcher).Publish(context.Background(), "ok", sample{}, Meta{}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected immediate delivery, got %d", calls)
	}
}
