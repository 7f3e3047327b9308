package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	sales "secursales/internal/sales/domain"
)

// LedgerRepository persists payment ledgers. The schedule is stored as a
// JSONB document on the ledger row.
type LedgerRepository struct {
	db *sql.DB
}

// NewLedgerRepository constructs a repository.
func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Get loads a ledger.
func (r *LedgerRepository) Get(ctx context.Context, tenantID, id string) (*sales.PaymentLedger, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("ledger repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+ledgerColumns+`
FROM paiements
WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	return scanLedger(row)
}

// GetByOrder loads the ledger of an order.
func (r *LedgerRepository) GetByOrder(ctx context.Context, tenantID, orderID string) (*sales.PaymentLedger, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("ledger repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+ledgerColumns+`
FROM paiements
WHERE tenant_id = $1 AND commande_id = $2`, tenantID, orderID)
	return scanLedger(row)
}

// Update writes the ledger if its stored version is still expectedVersion,
// and refreshes the order payment state in the same transaction.
func (r *LedgerRepository) Update(ctx context.Context, ledger *sales.PaymentLedger, expectedVersion int) error {
	if r == nil || r.db == nil {
		return errors.New("ledger repo: nil db")
	}
	if ledger == nil {
		return sales.ErrNilAggregate
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
	res, err := tx.ExecContext(ctx, `
UPDATE paiements
SET montant_paye = $1, reste_a_payer = $2, statut = $3, echeances = $4,
	date_dernier_paiement = $5, updated_at = $6, version = version + 1
WHERE tenant_id = $7 AND id = $8 AND version = $9`,
		doc.AmountPaid, doc.Remaining, doc.Status, echeances,
		nullTime(doc.LastPaymentAt), doc.UpdatedAt, doc.TenantID, doc.ID, expectedVersion,
	)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if n == 0 {
		_ = tx.Rollback()
		return r.missOrConflict(ctx, doc.TenantID, doc.ID)
	}

	_, err = tx.ExecContext(ctx, `
UPDATE commandes
SET payment_state = $1, updated_at = $2
WHERE tenant_id = $3 AND id = $4 AND payment_state <> 'rembourse'`,
		sales.ProjectPaymentState(sales.PaymentPending, doc.Status), doc.UpdatedAt, doc.TenantID, doc.OrderID,
	)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	ledger.MarkPersisted(expectedVersion + 1)
	return nil
}

// ListWithPendingDue returns installment ledgers holding a pending entry due
// before the given time.
func (r *LedgerRepository) ListWithPendingDue(ctx context.Context, before time.Time, limit int) ([]*sales.PaymentLedger, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("ledger repo: nil db")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+ledgerColumns+`
FROM paiements p
WHERE p.type = 'echelonne' AND p.statut <> 'termine'
	AND EXISTS (
		SELECT 1 FROM jsonb_array_elements(p.echeances) e
		WHERE e->>'statut' = 'en_attente' AND (e->>'dateEcheance')::timestamptz < $1
	)
ORDER BY p.id
LIMIT $2`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*sales.PaymentLedger
	for rows.Next() {
		ledger, err := scanLedger(rows)
		if err != nil {
			return nil, err
		}
		if ledger != nil {
			result = append(result, ledger)
		}
	}
	return result, rows.Err()
}

func (r *LedgerRepository) missOrConflict(ctx context.Context, tenantID, id string) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM paiements WHERE tenant_id = $1 AND id = $2`, tenantID, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return sales.ErrLedgerNotFound
	}
	if err != nil {
		return err
	}
	return sales.ErrVersionConflict
}

const ledgerColumns = `id, tenant_id, commande_id, client_id, type, montant_initial, montant_paye,
	statut, echeances, date_dernier_paiement, version, created_at, updated_at`

func scanLedger(row rowScanner) (*sales.PaymentLedger, error) {
	var doc sales.LedgerDocument
	var echeances []byte
	var lastPayment sql.NullTime
	err := row.Scan(
		&doc.ID,
		&doc.TenantID,
		&doc.OrderID,
		&doc.ClientID,
		&doc.Kind,
		&doc.TotalOwed,
		&doc.AmountPaid,
		&doc.Status,
		&echeances,
		&lastPayment,
		&doc.Version,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(echeances) > 0 {
		if err := json.Unmarshal(echeances, &doc.Entries); err != nil {
			return nil, err
		}
	}
	if lastPayment.Valid {
		at := lastPayment.Time.UTC()
		doc.LastPaymentAt = &at
	}
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	return sales.RestoreLedger(doc)
}
