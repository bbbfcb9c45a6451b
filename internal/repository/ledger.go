package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// LedgerRepository appends to ledger_entries, the append-only money trail.
// Idempotency keys ("charge-<txn>", "refund-<txn>") make double application
// of the same billing event a no-op at the storage layer.
type LedgerRepository interface {
	ExistsByIdem(ctx context.Context, tx *sqlx.Tx, idem string) (bool, error)
	Insert(ctx context.Context, tx *sqlx.Tx, accountID int64, op string, amount int64, ref, idem string) error
}

type ledgerRepo struct{}

func NewLedgerRepository() LedgerRepository { return &ledgerRepo{} }

func (r *ledgerRepo) ExistsByIdem(ctx context.Context, tx *sqlx.Tx, idem string) (bool, error) {
	var one int
	err := tx.QueryRowxContext(ctx,
		`SELECT 1 FROM ledger_entries WHERE idempotency_key = ? LIMIT 1`, idem,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *ledgerRepo) Insert(ctx context.Context, tx *sqlx.Tx, accountID int64, op string, amount int64, ref, idem string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (account_id, op, amount, ref, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, NOW())
		ON DUPLICATE KEY UPDATE id = id
	`, accountID, op, amount, ref, idem)
	return err
}
