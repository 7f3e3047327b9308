package memory

import (
	"context"
	"sort"
	"sync"

	catalog "secursales/internal/catalog/domain"
)

// Repository is an in-memory product repository.
type Repository struct {
	mu       sync.RWMutex
	products map[string]catalog.Product
}

// NewRepository constructs an empty repository.
func NewRepository() *Repository {
	return &Repository{products: make(map[string]catalog.Product)}
}

// Create stores a product.
func (r *Repository) Create(ctx context.Context, product catalog.Product) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[product.ID] = product
	return nil
}

// Get loads a product.
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*catalog.Product, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	product, ok := r.products[id]
	if !ok || product.TenantID != tenantID {
		return nil, nil
	}
	return &product, nil
}

// List returns tenant products ordered by name.
func (r *Repository) List(ctx context.Context, tenantID string, activeOnly bool) ([]catalog.Product, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []catalog.Product
	for _, product := range r.products {
		if product.TenantID != tenantID || (activeOnly && !product.Active) {
			continue
		}
		result = append(result, product)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Update replaces a product.
func (r *Repository) Update(ctx context.Context, product catalog.Product) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.products[product.ID]
	if !ok || current.TenantID != product.TenantID {
		return catalog.ErrProductNotFound
	}
	r.products[product.ID] = product
	return nil
}

// Delete removes a product.
func (r *Repository) Delete(ctx context.Context, tenantID, id string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.products[id]
	if !ok || current.TenantID != tenantID {
		return catalog.ErrProductNotFound
	}
	delete(r.products, id)
	return nil
}
