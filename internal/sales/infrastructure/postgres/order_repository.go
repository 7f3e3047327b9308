package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sales "secursales/internal/sales/domain"
)

// OrderRepository persists orders and creates their ledgers.
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository constructs a repository.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts the order and its ledger in one transaction.
func (r *OrderRepository) Create(ctx context.Context, order *sales.Order, ledger *sales.PaymentLedger) error {
	if r == nil || r.db == nil {
		return errors.New("order repo: nil db")
	}
	if order == nil || ledger == nil {
		return sales.ErrNilAggregate
	}
	if err := order.Validate(); err != nil {
		return err
	}
	doc := ledger.Document()
	echeances, err := json.Marshal(doc.Entries)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO commandes (
	id, tenant_id, client_id, product_id, quantity, unit_price, total_amount,
	is_installment, installment_count, status, payment_state, created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)`,
		order.ID, order.TenantID, order.ClientID, order.ProductID, order.Quantity, order.UnitPrice, order.TotalAmount,
		order.IsInstallment, order.InstallmentCount, order.Status, order.PaymentState, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO paiements (
	id, tenant_id, commande_id, client_id, type, montant_initial, montant_paye, reste_a_payer,
	statut, echeances, date_dernier_paiement, version, created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,1,$12,$13
)`,
		doc.ID, doc.TenantID, doc.OrderID, doc.ClientID, doc.Kind, doc.TotalOwed, doc.AmountPaid, doc.Remaining,
		doc.Status, echeances, nullTime(doc.LastPaymentAt), doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	ledger.MarkPersisted(1)
	return nil
}

// Get loads an order.
func (r *OrderRepository) Get(ctx context.Context, tenantID, id string) (*sales.Order, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("order repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+orderColumns+`
FROM commandes
WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	return scanOrder(row)
}

// List returns tenant orders, newest first.
func (r *OrderRepository) List(ctx context.Context, tenantID string, filter sales.OrderFilter) ([]sales.Order, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("order repo: nil db")
	}
	clauses := []string{"tenant_id = $1"}
	args := []any{tenantID}
	if filter.ClientID != "" {
		args = append(args, filter.ClientID)
		clauses = append(clauses, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+orderColumns+`
FROM commandes
WHERE `+strings.Join(clauses, " AND ")+`
ORDER BY created_at DESC, id ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []sales.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		if order != nil {
			result = append(result, *order)
		}
	}
	return result, rows.Err()
}

// UpdateStatus sets the fulfilment status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, tenantID, id string, status sales.OrderStatus, at time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("order repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE commandes
SET status = $1, updated_at = $2
WHERE tenant_id = $3 AND id = $4`, status, at, tenantID, id)
	if err != nil {
		return err
	}
	return expectOneRow(res, sales.ErrOrderNotFound)
}

// MarkRefunded flags the order payment as refunded.
func (r *OrderRepository) MarkRefunded(ctx context.Context, tenantID, id string, at time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("order repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE commandes
SET payment_state = 'rembourse', updated_at = $1
WHERE tenant_id = $2 AND id = $3`, at, tenantID, id)
	if err != nil {
		return err
	}
	return expectOneRow(res, sales.ErrOrderNotFound)
}

// Delete removes an order. Its ledger goes with it through the foreign key.
func (r *OrderRepository) Delete(ctx context.Context, tenantID, id string) error {
	if r == nil || r.db == nil {
		return errors.New("order repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM commandes WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return err
	}
	return expectOneRow(res, sales.ErrOrderNotFound)
}

const orderColumns = `id, tenant_id, client_id, product_id, quantity, unit_price, total_amount,
	is_installment, installment_count, status, payment_state, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*sales.Order, error) {
	var order sales.Order
	err := row.Scan(
		&order.ID,
		&order.TenantID,
		&order.ClientID,
		&order.ProductID,
		&order.Quantity,
		&order.UnitPrice,
		&order.TotalAmount,
		&order.IsInstallment,
		&order.InstallmentCount,
		&order.Status,
		&order.PaymentState,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return &order, nil
}

func expectOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
