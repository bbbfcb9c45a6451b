package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/numgate/numgate/internal/model"
)

type AccountsRepository interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*model.Account, error)
	GetByIdentityUID(ctx context.Context, uid string) (*model.Account, error)
	GetByID(ctx context.Context, id int64) (*model.Account, error)
	Insert(ctx context.Context, a *model.Account) (int64, error)
	RotateAPIKey(ctx context.Context, tx *sqlx.Tx, accountID int64, newKey string) error
	SetReferrerIfEmpty(ctx context.Context, tx *sqlx.Tx, accountID int64, code string) error
	List(ctx context.Context, limit, offset int) ([]model.Account, error)
	Totals(ctx context.Context) (count int64, balance int64, err error)
	Purge(ctx context.Context, tx *sqlx.Tx, accountID int64) error
}

type AccountsRepositoryImpl struct {
	db *sqlx.DB
}

func NewAccountsRepository(db *sqlx.DB) *AccountsRepositoryImpl {
	return &AccountsRepositoryImpl{db: db}
}

var _ AccountsRepository = (*AccountsRepositoryImpl)(nil)

const accountCols = `id, identity_uid, name, email, balance, requests, succeeded, failed, spent,
       api_key, referrer_code, role, status, created_at, updated_at`

func (r *AccountsRepositoryImpl) getOne(ctx context.Context, where string, arg any) (*model.Account, error) {
	var a model.Account
	err := r.db.GetContext(ctx, &a, `SELECT `+accountCols+` FROM accounts WHERE `+where+` LIMIT 1`, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountsRepositoryImpl) GetByAPIKey(ctx context.Context, apiKey string) (*model.Account, error) {
	return r.getOne(ctx, "api_key = ?", apiKey)
}

func (r *AccountsRepositoryImpl) GetByIdentityUID(ctx context.Context, uid string) (*model.Account, error) {
	return r.getOne(ctx, "identity_uid = ?", uid)
}

func (r *AccountsRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *AccountsRepositoryImpl) Insert(ctx context.Context, a *model.Account) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts
		    (identity_uid, name, email, balance, api_key, referrer_code, role, status, created_at, updated_at)
		VALUES
		    (?, ?, ?, 0, ?, ?, 'user', 'active', NOW(), NOW())
	`, a.IdentityUID, a.Name, a.Email, a.APIKey, a.Referrer)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RotateAPIKey swaps in the new credential; the previous one stops resolving
// immediately (single current credential per account).
func (r *AccountsRepositoryImpl) RotateAPIKey(ctx context.Context, tx *sqlx.Tx, accountID int64, newKey string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts SET api_key = ?, updated_at = NOW() WHERE id = ?
	`, newKey, accountID)
	return err
}

// SetReferrerIfEmpty records a first-touch referrer. Never overwrites.
func (r *AccountsRepositoryImpl) SetReferrerIfEmpty(ctx context.Context, tx *sqlx.Tx, accountID int64, code string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts SET referrer_code = ?, updated_at = NOW()
		WHERE id = ? AND referrer_code IS NULL
	`, code, accountID)
	return err
}

func (r *AccountsRepositoryImpl) List(ctx context.Context, limit, offset int) ([]model.Account, error) {
	var out []model.Account
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+accountCols+` FROM accounts ORDER BY id DESC LIMIT ? OFFSET ?
	`, limit, offset)
	return out, err
}

func (r *AccountsRepositoryImpl) Totals(ctx context.Context) (int64, int64, error) {
	var row struct {
		Count   int64 `db:"cnt"`
		Balance int64 `db:"bal"`
	}
	err := r.db.GetContext(ctx, &row, `
		SELECT COUNT(*) AS cnt, COALESCE(SUM(balance), 0) AS bal FROM accounts
	`)
	return row.Count, row.Balance, err
}

// Purge removes the account and everything keyed to it: history, active slot,
// ledger rows, key audit. Used only by the administrative surface.
func (r *AccountsRepositoryImpl) Purge(ctx context.Context, tx *sqlx.Tx, accountID int64) error {
	stmts := []string{
		`DELETE FROM rentals WHERE account_id = ?`,
		`DELETE FROM rental_history WHERE account_id = ?`,
		`DELETE FROM ledger_entries WHERE account_id = ?`,
		`DELETE FROM key_audit WHERE account_id = ?`,
		`DELETE FROM accounts WHERE id = ?`,
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q, accountID); err != nil {
			return err
		}
	}
	return nil
}
