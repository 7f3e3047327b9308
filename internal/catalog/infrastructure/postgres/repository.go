package postgres

import (
	"context"
	"database/sql"
	"errors"

	catalog "secursales/internal/catalog/domain"
)

// Repository persists products.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a product.
func (r *Repository) Create(ctx context.Context, product catalog.Product) error {
	if r == nil || r.db == nil {
		return errors.New("product repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO produits (id, tenant_id, name, description, unit_price, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		product.ID, product.TenantID, product.Name, product.Description, product.UnitPrice, product.Active,
		product.CreatedAt, product.UpdatedAt)
	return err
}

// Get loads a product.
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*catalog.Product, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("product repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, tenant_id, name, description, unit_price, active, created_at, updated_at
FROM produits
WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	return scanProduct(row)
}

// List returns tenant products ordered by name.
func (r *Repository) List(ctx context.Context, tenantID string, activeOnly bool) ([]catalog.Product, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("product repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, tenant_id, name, description, unit_price, active, created_at, updated_at
FROM produits
WHERE tenant_id = $1 AND (active OR NOT $2)
ORDER BY name ASC`, tenantID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []catalog.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		if product != nil {
			result = append(result, *product)
		}
	}
	return result, rows.Err()
}

// Update replaces the writable product fields.
func (r *Repository) Update(ctx context.Context, product catalog.Product) error {
	if r == nil || r.db == nil {
		return errors.New("product repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE produits
SET name = $1, description = $2, unit_price = $3, active = $4, updated_at = $5
WHERE tenant_id = $6 AND id = $7`,
		product.Name, product.Description, product.UnitPrice, product.Active, product.UpdatedAt,
		product.TenantID, product.ID)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// Delete removes a product.
func (r *Repository) Delete(ctx context.Context, tenantID, id string) error {
	if r == nil || r.db == nil {
		return errors.New("product repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM produits WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*catalog.Product, error) {
	var product catalog.Product
	err := row.Scan(
		&product.ID,
		&product.TenantID,
		&product.Name,
		&product.Description,
		&product.UnitPrice,
		&product.Active,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	product.CreatedAt = product.CreatedAt.UTC()
	product.UpdatedAt = product.UpdatedAt.UTC()
	return &product, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}
