package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	catalog "secursales/internal/catalog/domain"
)

// ProductInput carries writable product fields.
type ProductInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	UnitPrice   int64  `json:"unitPrice"`
	Active      *bool  `json:"active,omitempty"`
}

// Service manages the product catalog.
type Service struct {
	repo catalog.Repository
	now  func() time.Time
}

// NewService constructs a catalog service.
func NewService(repo catalog.Repository) (*Service, error) {
	if repo == nil {
		return nil, errors.New("catalog service: nil repository")
	}
	return &Service{repo: repo, now: time.Now}, nil
}

// Create adds a product.
func (s *Service) Create(ctx context.Context, tenantID string, in ProductInput) (catalog.Product, error) {
	now := s.now().UTC()
	product := catalog.Product{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		UnitPrice:   in.UnitPrice,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Active != nil {
		product.Active = *in.Active
	}
	if err := product.Validate(); err != nil {
		return catalog.Product{}, err
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return catalog.Product{}, err
	}
	return product, nil
}

// Get loads a product.
func (s *Service) Get(ctx context.Context, tenantID, id string) (catalog.Product, error) {
	product, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return catalog.Product{}, err
	}
	if product == nil {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return *product, nil
}

// List returns tenant products.
func (s *Service) List(ctx context.Context, tenantID string, activeOnly bool) ([]catalog.Product, error) {
	products, err := s.repo.List(ctx, tenantID, activeOnly)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []catalog.Product{}
	}
	return products, nil
}

// Update replaces the writable fields of a product. Orders already placed
// keep the unit price they were placed at.
func (s *Service) Update(ctx context.Context, tenantID, id string, in ProductInput) (catalog.Product, error) {
	product, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return catalog.Product{}, err
	}
	product.Name = strings.TrimSpace(in.Name)
	product.Description = in.Description
	product.UnitPrice = in.UnitPrice
	if in.Active != nil {
		product.Active = *in.Active
	}
	product.UpdatedAt = s.now().UTC()
	if err := product.Validate(); err != nil {
		return catalog.Product{}, err
	}
	if err := s.repo.Update(ctx, product); err != nil {
		return catalog.Product{}, err
	}
	return product, nil
}

// Delete removes a product.
func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	if _, err := s.Get(ctx, tenantID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, tenantID, id)
}

// UnitPrice returns the price of an active product. Inactive or unknown
// products report ok false.
func (s *Service) UnitPrice(ctx context.Context, tenantID, productID string) (int64, bool, error) {
	product, err := s.repo.Get(ctx, tenantID, productID)
	if err != nil {
		return 0, false, fmt.Errorf("catalog lookup: %w", err)
	}
	if product == nil || !product.Active {
		return 0, false, nil
	}
	return product.UnitPrice, true, nil
}
