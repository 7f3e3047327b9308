package eventing

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outbox record states.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// OutboxWriter inserts outbox records.
type OutboxWriter interface {
	Insert(ctx context.Context, env Envelope) (string, error)
}

// OutboxStore provides access to outbox records.
type OutboxStore interface {
	OutboxWriter
	ListPending(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason string) error
}

// OutboxRecord represents a stored outbox entry.
type OutboxRecord struct {
	ID        string
	Envelope  Envelope
	Status    string
	Attempts  int
	LastError string
	CreatedAt time.Time
}

// MemoryOutbox keeps outbox records in memory.
type MemoryOutbox struct {
	mu      sync.Mutex
	seq     int
	records map[string]*OutboxRecord
	order   map[string]int
}

// NewMemoryOutbox constructs an empty outbox.
func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{records: make(map[string]*OutboxRecord), order: make(map[string]int)}
}

// Insert stores the envelope as pending. Inserting an event id twice is a no-op.
func (m *MemoryOutbox) Insert(ctx context.Context, env Envelope) (string, error) {
	_ = ctx
	if env.EventID == "" {
		return "", errors.New("outbox: empty event id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, record := range m.records {
		if record.Envelope.EventID == env.EventID {
			return id, nil
		}
	}
	id := uuid.NewString()
	m.seq++
	m.records[id] = &OutboxRecord{ID: id, Envelope: env, Status: StatusPending, CreatedAt: time.Now().UTC()}
	m.order[id] = m.seq
	return id, nil
}

// ListPending returns pending records in insertion order.
func (m *MemoryOutbox) ListPending(ctx context.Context, limit int) ([]OutboxRecord, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []OutboxRecord
	for _, record := range m.records {
		if record.Status == StatusPending {
			result = append(result, *record)
		}
	}
	sort.Slice(result, func(i, j int) bool { return m.order[result[i].ID] < m.order[result[j].ID] })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// MarkSent marks a record as delivered.
func (m *MemoryOutbox) MarkSent(ctx context.Context, id string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	record := m.records[id]
	if record == nil {
		return errors.New("outbox: record not found")
	}
	record.Status = StatusSent
	return nil
}

// MarkFailed marks a record as failed and counts the attempt.
func (m *MemoryOutbox) MarkFailed(ctx context.Context, id string, reason string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	record := m.records[id]
	if record == nil {
		return errors.New("outbox: record not found")
	}
	record.Status = StatusFailed
	record.Attempts++
	record.LastError = reason
	return nil
}

// Records returns a snapshot of every record.
func (m *MemoryOutbox) Records() []OutboxRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]OutboxRecord, 0, len(m.records))
	for _, record := range m.records {
		result = append(result, *record)
	}
	sort.Slice(result, func(i, j int) bool { return m.order[result[i].ID] < m.order[result[j].ID] })
	return result
}
