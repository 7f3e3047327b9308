package application

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"secursales/internal/auth"
	sales "secursales/internal/sales/domain"
	"secursales/internal/sales/infrastructure/memory"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%03d", g.n)
}

type stubCatalog map[string]int64

func (c stubCatalog) UnitPrice(ctx context.Context, tenantID, productID string) (int64, bool, error) {
	_ = ctx
	price, ok := c[tenantID+"/"+productID]
	return price, ok, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []PaymentRecorded
}

func (p *recordingPublisher) PublishPaymentRecorded(ctx context.Context, event PaymentRecorded) error {
	_ = ctx
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

type fixture struct {
	store     *memory.Store
	clock     *fixedClock
	orders    *OrderService
	payments  *PaymentService
	publisher *recordingPublisher
}

var testStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	clock := &fixedClock{now: testStart}
	catalog := stubCatalog{
		"t1/p-phone":  100000,
		"t1/p-fridge": 450000,
	}
	pricer, err := DefaultConfig().Pricer()
	if err != nil {
		t.Fatalf("pricer: %v", err)
	}
	orders, err := NewOrderService(store.Orders(), store.Ledgers(), catalog, pricer,
		WithOrderClock(clock), WithIDGenerator(&seqIDs{}))
	if err != nil {
		t.Fatalf("order service: %v", err)
	}
	publisher := &recordingPublisher{}
	payments, err := NewPaymentService(store.Ledgers(),
		WithPaymentClock(clock), WithPublisher(publisher), WithRetryBase(time.Millisecond), WithMaxRetries(10))
	if err != nil {
		t.Fatalf("payment service: %v", err)
	}
	return &fixture{store: store, clock: clock, orders: orders, payments: payments, publisher: publisher}
}

func agentCtx() context.Context {
	return auth.WithIdentity(context.Background(), "t1", auth.RoleAgent, "agent-1")
}

func clientCtx(subject string) context.Context {
	return auth.WithIdentity(context.Background(), "t1", auth.RoleClient, subject)
}

func placeInstallment(t *testing.T, f *fixture, clientID string, months int) OrderDetails {
	t.Helper()
	details, err := f.orders.PlaceOrder(clientCtx(clientID), PlaceOrderInput{
		TenantID:         "t1",
		ClientID:         clientID,
		ProductID:        "p-phone",
		Quantity:         1,
		IsInstallment:    true,
		InstallmentCount: months,
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if details.Ledger == nil {
		t.Fatalf("expected ledger")
	}
	return details
}

func ledgerOf(t *testing.T, f *fixture, id string) *sales.PaymentLedger {
	t.Helper()
	ledger, err := f.store.Ledgers().Get(context.Background(), "t1", id)
	if err != nil || ledger == nil {
		t.Fatalf("get ledger: %v", err)
	}
	return ledger
}
