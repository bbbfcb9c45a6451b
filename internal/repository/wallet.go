package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// WalletRepository mutates the wallet columns on accounts. Every mutation
// runs inside a caller-supplied transaction after GetForUpdate has locked the
// row, so concurrent debits on the same account serialize instead of
// interleaving.
type WalletRepository interface {
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, accountID int64) (balance int64, err error)
	ApplyDebit(ctx context.Context, tx *sqlx.Tx, accountID, amount int64) error
	ApplyCredit(ctx context.Context, tx *sqlx.Tx, accountID, amount int64) error
	ApplyDelta(ctx context.Context, tx *sqlx.Tx, accountID, delta int64) error
}

type walletRepo struct{}

func NewWalletRepository() WalletRepository { return &walletRepo{} }

func (r *walletRepo) GetForUpdate(ctx context.Context, tx *sqlx.Tx, accountID int64) (int64, error) {
	var bal int64
	err := tx.QueryRowxContext(ctx, `
		SELECT balance
		FROM accounts
		WHERE id = ?
		FOR UPDATE
	`, accountID).Scan(&bal)
	return bal, err
}

// ApplyDebit charges the wallet and bumps the billed-operation counters:
// requests, succeeded and lifetime spend.
func (r *walletRepo) ApplyDebit(ctx context.Context, tx *sqlx.Tx, accountID, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance   = balance - ?,
		    requests  = requests + 1,
		    succeeded = succeeded + 1,
		    spent     = spent + ?,
		    updated_at = NOW()
		WHERE id = ?
	`, amount, amount, accountID)
	return err
}

// ApplyCredit refunds the wallet. The failed counter distinguishes "refunded"
// from "never attempted".
func (r *walletRepo) ApplyCredit(ctx context.Context, tx *sqlx.Tx, accountID, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = balance + ?,
		    failed  = failed + 1,
		    updated_at = NOW()
		WHERE id = ?
	`, amount, accountID)
	return err
}

// ApplyDelta is the unconditional administrative adjustment.
func (r *walletRepo) ApplyDelta(ctx context.Context, tx *sqlx.Tx, accountID, delta int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = balance + ?, updated_at = NOW()
		WHERE id = ?
	`, delta, accountID)
	return err
}
