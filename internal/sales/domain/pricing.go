package sales

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultMaxInstallments is the upper bound on installment months.
const DefaultMaxInstallments = 24

// PriceRequest holds the inputs of an order price computation.
type PriceRequest struct {
	UnitPrice     int64
	Quantity      int
	IsInstallment bool
	Months        int
}

// Quote is a priced order preview.
type Quote struct {
	UnitPrice     int64           `json:"unitPrice"`
	Quantity      int             `json:"quantity"`
	Principal     int64           `json:"principal"`
	IsInstallment bool            `json:"isInstallment"`
	Months        int             `json:"installmentCount"`
	MarkupRate    decimal.Decimal `json:"markupRate"`
	Total         int64           `json:"totalAmount"`
	Schedule      []ScheduleEntry `json:"echeances,omitempty"`
}

// ComputeTotal returns the payable total for an order. Installment orders carry
// a markup that scales linearly with the number of months.
// Callers must reject totals that do not fit in int64; see Pricer.Validate.
func ComputeTotal(table *MarkupTable, unitPrice int64, quantity int, isInstallment bool, months int) int64 {
	_, _, total := exactTotal(table, unitPrice, quantity, isInstallment, months)
	return total.IntPart()
}

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// exactTotal prices an order without leaving decimal arithmetic.
func exactTotal(table *MarkupTable, unitPrice int64, quantity int, isInstallment bool, months int) (principal, rate, total decimal.Decimal) {
	principal = decimal.NewFromInt(unitPrice).Mul(decimal.NewFromInt(int64(quantity)))
	if !isInstallment || months <= 0 || principal.GreaterThan(maxAmount) {
		return principal, decimal.Zero, principal.Round(0)
	}
	rate = table.RateFor(principal.IntPart())
	factor := decimal.NewFromInt(1).Add(rate.Mul(decimal.NewFromInt(int64(months))))
	return principal, rate, principal.Mul(factor).Round(0)
}

// Pricer applies the markup table and installment policy to orders.
type Pricer struct {
	markup          *MarkupTable
	maxInstallments int
	intervalDays    int
}

// PricerOption configures a Pricer.
type PricerOption func(*Pricer)

// WithMaxInstallments overrides the installment upper bound.
func WithMaxInstallments(max int) PricerOption {
	return func(p *Pricer) {
		if max > 0 {
			p.maxInstallments = max
		}
	}
}

// WithIntervalDays overrides the spacing between installments.
func WithIntervalDays(days int) PricerOption {
	return func(p *Pricer) {
		if days > 0 {
			p.intervalDays = days
		}
	}
}

// NewPricer constructs a Pricer.
func NewPricer(markup *MarkupTable, opts ...PricerOption) (*Pricer, error) {
	if markup == nil {
		return nil, errors.New("pricer: nil markup table")
	}
	p := &Pricer{
		markup:          markup,
		maxInstallments: DefaultMaxInstallments,
		intervalDays:    DefaultInstallmentIntervalDays,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Validate guards the inputs before any price is computed.
func (p *Pricer) Validate(req PriceRequest) error {
	if req.UnitPrice <= 0 {
		return validationError("unit price required")
	}
	if req.Quantity <= 0 {
		return validationError("quantity must be positive")
	}
	if req.IsInstallment && (req.Months < 1 || req.Months > p.maxInstallments) {
		return ErrInvalidInstallmentCount
	}
	if _, _, total := exactTotal(p.markup, req.UnitPrice, req.Quantity, req.IsInstallment, req.Months); total.GreaterThan(maxAmount) {
		return validationError("order total out of range")
	}
	return nil
}

// Total validates the request and returns the payable total.
func (p *Pricer) Total(req PriceRequest) (int64, error) {
	if err := p.Validate(req); err != nil {
		return 0, err
	}
	return ComputeTotal(p.markup, req.UnitPrice, req.Quantity, req.IsInstallment, req.Months), nil
}

// Schedule generates installment entries with the configured interval.
func (p *Pricer) Schedule(total int64, months int, start time.Time) ([]ScheduleEntry, error) {
	if months > p.maxInstallments {
		return nil, ErrInvalidInstallmentCount
	}
	return GenerateScheduleEvery(total, months, start, p.intervalDays)
}

// Quote prices a request and previews its schedule.
func (p *Pricer) Quote(req PriceRequest, start time.Time) (Quote, error) {
	if err := p.Validate(req); err != nil {
		return Quote{}, err
	}
	principal, rate, exact := exactTotal(p.markup, req.UnitPrice, req.Quantity, req.IsInstallment, req.Months)
	total := exact.IntPart()
	quote := Quote{
		UnitPrice:     req.UnitPrice,
		Quantity:      req.Quantity,
		Principal:     principal.IntPart(),
		IsInstallment: req.IsInstallment,
		Total:         total,
		MarkupRate:    decimal.Zero,
	}
	if !req.IsInstallment {
		return quote, nil
	}
	quote.Months = req.Months
	quote.MarkupRate = rate
	var err error
	quote.Schedule, err = p.Schedule(total, req.Months, start)
	if err != nil {
		return Quote{}, err
	}
	return quote, nil
}

// MarkupTable returns the table used by the pricer.
func (p *Pricer) MarkupTable() *MarkupTable { return p.markup }
