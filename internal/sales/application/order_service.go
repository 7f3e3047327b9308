package application

import (
	"context"
	"errors"
	"fmt"

	"secursales/internal/auth"
	sales "secursales/internal/sales/domain"
)

// QuoteInput describes an order to price without placing it.
type QuoteInput struct {
	TenantID         string
	ProductID        string
	Quantity         int
	IsInstallment    bool
	InstallmentCount int
}

// PlaceOrderInput describes an order to place.
type PlaceOrderInput struct {
	TenantID         string
	ClientID         string
	ProductID        string
	Quantity         int
	IsInstallment    bool
	InstallmentCount int
}

// OrderDetails is an order together with its payment ledger.
type OrderDetails struct {
	Order  sales.Order           `json:"order"`
	Ledger *sales.LedgerDocument `json:"paiement,omitempty"`
}

// OrderServiceOption configures an OrderService.
type OrderServiceOption func(*OrderService)

// WithOrderClock overrides the clock.
func WithOrderClock(clock Clock) OrderServiceOption {
	return func(s *OrderService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides the identity generator.
func WithIDGenerator(ids IDGenerator) OrderServiceOption {
	return func(s *OrderService) {
		if ids != nil {
			s.ids = ids
		}
	}
}

// OrderService handles order placement and back-office order updates.
type OrderService struct {
	orders  sales.OrderRepository
	ledgers sales.LedgerRepository
	catalog ProductCatalog
	pricer  *sales.Pricer
	ids     IDGenerator
	clock   Clock
}

// NewOrderService constructs the service.
func NewOrderService(
	orders sales.OrderRepository,
	ledgers sales.LedgerRepository,
	catalog ProductCatalog,
	pricer *sales.Pricer,
	opts ...OrderServiceOption,
) (*OrderService, error) {
	if orders == nil {
		return nil, errors.New("order service: nil order repository")
	}
	if ledgers == nil {
		return nil, errors.New("order service: nil ledger repository")
	}
	if catalog == nil {
		return nil, errors.New("order service: nil product catalog")
	}
	if pricer == nil {
		return nil, errors.New("order service: nil pricer")
	}
	s := &OrderService{
		orders:  orders,
		ledgers: ledgers,
		catalog: catalog,
		pricer:  pricer,
		ids:     UUIDGenerator{},
		clock:   SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Quote prices an order at the current catalog price and previews its schedule.
func (s *OrderService) Quote(ctx context.Context, in QuoteInput) (sales.Quote, error) {
	price, err := s.unitPrice(ctx, in.TenantID, in.ProductID)
	if err != nil {
		return sales.Quote{}, err
	}
	return s.pricer.Quote(sales.PriceRequest{
		UnitPrice:     price,
		Quantity:      in.Quantity,
		IsInstallment: in.IsInstallment,
		Months:        in.InstallmentCount,
	}, s.clock.Now().UTC())
}

// PlaceOrder prices the order, builds its schedule and stores the order with
// a fresh ledger in one write.
func (s *OrderService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (OrderDetails, error) {
	if in.TenantID == "" {
		return OrderDetails{}, fmt.Errorf("%w: tenant id required", sales.ErrValidation)
	}
	if in.ClientID == "" {
		return OrderDetails{}, fmt.Errorf("%w: client id required", sales.ErrValidation)
	}
	if err := auth.EnsureClientAccess(ctx, in.ClientID); err != nil {
		return OrderDetails{}, err
	}

	price, err := s.unitPrice(ctx, in.TenantID, in.ProductID)
	if err != nil {
		return OrderDetails{}, err
	}
	req := sales.PriceRequest{
		UnitPrice:     price,
		Quantity:      in.Quantity,
		IsInstallment: in.IsInstallment,
		Months:        in.InstallmentCount,
	}
	total, err := s.pricer.Total(req)
	if err != nil {
		return OrderDetails{}, err
	}

	now := s.clock.Now().UTC()
	var entries []sales.ScheduleEntry
	months := 0
	if in.IsInstallment {
		months = in.InstallmentCount
		entries, err = s.pricer.Schedule(total, months, now)
		if err != nil {
			return OrderDetails{}, err
		}
	}

	order := &sales.Order{
		ID:               s.ids.NewID(),
		TenantID:         in.TenantID,
		ClientID:         in.ClientID,
		ProductID:        in.ProductID,
		Quantity:         in.Quantity,
		UnitPrice:        price,
		TotalAmount:      total,
		IsInstallment:    in.IsInstallment,
		InstallmentCount: months,
		Status:           sales.OrderPreparation,
		PaymentState:     sales.PaymentPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	ledger, err := sales.NewPaymentLedger(sales.NewLedgerParams{
		ID:        s.ids.NewID(),
		TenantID:  in.TenantID,
		OrderID:   order.ID,
		ClientID:  in.ClientID,
		TotalOwed: total,
		Entries:   entries,
		CreatedAt: now,
	})
	if err != nil {
		return OrderDetails{}, err
	}
	if err := s.orders.Create(ctx, order, ledger); err != nil {
		return OrderDetails{}, err
	}
	doc := ledger.Document()
	return OrderDetails{Order: *order, Ledger: &doc}, nil
}

// Get loads an order with its ledger.
func (s *OrderService) Get(ctx context.Context, tenantID, id string) (OrderDetails, error) {
	order, err := s.loadOrder(ctx, tenantID, id)
	if err != nil {
		return OrderDetails{}, err
	}
	details := OrderDetails{Order: *order}
	ledger, err := s.ledgers.GetByOrder(ctx, tenantID, order.ID)
	if err != nil {
		return OrderDetails{}, err
	}
	if ledger != nil {
		doc := ledger.Document()
		details.Ledger = &doc
	}
	return details, nil
}

// List returns tenant orders. Clients only ever see their own orders.
func (s *OrderService) List(ctx context.Context, tenantID string, filter sales.OrderFilter) ([]sales.Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown order status", sales.ErrValidation)
	}
	if auth.RoleFromContext(ctx) == auth.RoleClient {
		filter.ClientID = auth.SubjectFromContext(ctx)
	}
	orders, err := s.orders.List(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []sales.Order{}
	}
	return orders, nil
}

// UpdateStatus moves an order through fulfilment.
func (s *OrderService) UpdateStatus(ctx context.Context, tenantID, id string, status sales.OrderStatus) (sales.Order, error) {
	if !status.Valid() {
		return sales.Order{}, fmt.Errorf("%w: unknown order status", sales.ErrValidation)
	}
	if _, err := s.loadOrder(ctx, tenantID, id); err != nil {
		return sales.Order{}, err
	}
	if err := s.orders.UpdateStatus(ctx, tenantID, id, status, s.clock.Now().UTC()); err != nil {
		return sales.Order{}, err
	}
	order, err := s.loadOrder(ctx, tenantID, id)
	if err != nil {
		return sales.Order{}, err
	}
	return *order, nil
}

// MarkRefunded flags the order payment as refunded. The flag survives later
// ledger writes.
func (s *OrderService) MarkRefunded(ctx context.Context, tenantID, id string) (sales.Order, error) {
	if _, err := s.loadOrder(ctx, tenantID, id); err != nil {
		return sales.Order{}, err
	}
	if err := s.orders.MarkRefunded(ctx, tenantID, id, s.clock.Now().UTC()); err != nil {
		return sales.Order{}, err
	}
	order, err := s.loadOrder(ctx, tenantID, id)
	if err != nil {
		return sales.Order{}, err
	}
	return *order, nil
}

// Delete removes an order and its ledger.
func (s *OrderService) Delete(ctx context.Context, tenantID, id string) error {
	if _, err := s.loadOrder(ctx, tenantID, id); err != nil {
		return err
	}
	return s.orders.Delete(ctx, tenantID, id)
}

func (s *OrderService) loadOrder(ctx context.Context, tenantID, id string) (*sales.Order, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: order id required", sales.ErrValidation)
	}
	order, err := s.orders.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, sales.ErrOrderNotFound
	}
	if err := auth.EnsureClientAccess(ctx, order.ClientID); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderService) unitPrice(ctx context.Context, tenantID, productID string) (int64, error) {
	if productID == "" {
		return 0, fmt.Errorf("%w: product id required", sales.ErrValidation)
	}
	price, ok, err := s.catalog.UnitPrice(ctx, tenantID, productID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: unknown product %s", sales.ErrValidation, productID)
	}
	return price, nil
}
