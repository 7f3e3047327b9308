package sales

import (
	"errors"

	"github.com/shopspring/decimal"
)

// MarkupTier is one row of the deferred-payment markup table.
// UpTo is an inclusive upper bound on the principal.
type MarkupTier struct {
	UpTo int64
	Rate decimal.Decimal
}

// MarkupTable maps a principal to the markup rate charged for deferred payment.
// Larger principals carry a lower relative markup.
type MarkupTable struct {
	tiers []MarkupTier
	above decimal.Decimal
}

// DefaultMarkupTable returns the standard credit pricing table.
func DefaultMarkupTable() *MarkupTable {
	return &MarkupTable{
		tiers: []MarkupTier{
			{UpTo: 150000, Rate: decimal.RequireFromString("0.10")},
			{UpTo: 300000, Rate: decimal.RequireFromString("0.075")},
			{UpTo: 500000, Rate: decimal.RequireFromString("0.05")},
			{UpTo: 750000, Rate: decimal.RequireFromString("0.035")},
		},
		above: decimal.RequireFromString("0.025"),
	}
}

// NewMarkupTable builds a table from tiers and the rate applied above the last tier.
// Thresholds must be strictly ascending and rates non-increasing.
func NewMarkupTable(tiers []MarkupTier, above decimal.Decimal) (*MarkupTable, error) {
	if len(tiers) == 0 {
		return nil, errors.New("markup table: no tiers")
	}
	if above.IsNegative() {
		return nil, errors.New("markup table: negative rate")
	}
	copied := make([]MarkupTier, len(tiers))
	copy(copied, tiers)
	for i, tier := range copied {
		if tier.UpTo <= 0 {
			return nil, errors.New("markup table: threshold must be positive")
		}
		if tier.Rate.IsNegative() {
			return nil, errors.New("markup table: negative rate")
		}
		if i == 0 {
			continue
		}
		prev := copied[i-1]
		if tier.UpTo <= prev.UpTo {
			return nil, errors.New("markup table: thresholds must be strictly ascending")
		}
		if tier.Rate.GreaterThan(prev.Rate) {
			return nil, errors.New("markup table: rates must not increase")
		}
	}
	if above.GreaterThan(copied[len(copied)-1].Rate) {
		return nil, errors.New("markup table: rates must not increase")
	}
	return &MarkupTable{tiers: copied, above: above}, nil
}

// RateFor returns the markup rate for a principal. First matching tier wins.
func (t *MarkupTable) RateFor(principal int64) decimal.Decimal {
	if t == nil {
		t = DefaultMarkupTable()
	}
	for _, tier := range t.tiers {
		if principal <= tier.UpTo {
			return tier.Rate
		}
	}
	return t.above
}

// Tiers returns a copy of the configured tiers.
func (t *MarkupTable) Tiers() []MarkupTier {
	if t == nil {
		return nil
	}
	out := make([]MarkupTier, len(t.tiers))
	copy(out, t.tiers)
	return out
}
