package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrProductNotFound is returned when a product is not found.
	ErrProductNotFound = errors.New("catalog: product not found")
	// ErrInvalidProduct is returned when product fields are invalid.
	ErrInvalidProduct = errors.New("catalog: invalid product")
)

// Product is a sellable item with its current unit price in XOF.
type Product struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenantId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	UnitPrice   int64     `json:"unitPrice"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Validate checks product invariants.
func (p Product) Validate() error {
	if p.ID == "" || p.TenantID == "" {
		return fmt.Errorf("%w: id and tenant required", ErrInvalidProduct)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name required", ErrInvalidProduct)
	}
	if p.UnitPrice <= 0 {
		return fmt.Errorf("%w: unit price must be positive", ErrInvalidProduct)
	}
	return nil
}

// Repository persists products. Get returns nil, nil when not found.
type Repository interface {
	Create(ctx context.Context, product Product) error
	Get(ctx context.Context, tenantID, id string) (*Product, error)
	List(ctx context.Context, tenantID string, activeOnly bool) ([]Product, error)
	Update(ctx context.Context, product Product) error
	Delete(ctx context.Context, tenantID, id string) error
}
