package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/numgate/numgate/internal/model"
)

type WithdrawalsRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, partnerID, amount int64) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.Withdrawal, error)
	MarkPaid(ctx context.Context, tx *sqlx.Tx, id int64) error
	ListByPartner(ctx context.Context, partnerID int64, limit int) ([]model.Withdrawal, error)
}

type WithdrawalsRepositoryImpl struct {
	db *sqlx.DB
}

func NewWithdrawalsRepository(db *sqlx.DB) *WithdrawalsRepositoryImpl {
	return &WithdrawalsRepositoryImpl{db: db}
}

var _ WithdrawalsRepository = (*WithdrawalsRepositoryImpl)(nil)

func (r *WithdrawalsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, partnerID, amount int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO withdrawals (partner_id, amount, status, created_at, updated_at)
		VALUES (?, ?, 'requested', NOW(), NOW())
	`, partnerID, amount)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *WithdrawalsRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.Withdrawal, error) {
	var w model.Withdrawal
	err := r.db.GetContext(ctx, &w, `
		SELECT id, partner_id, amount, status, created_at, updated_at
		  FROM withdrawals WHERE id = ? LIMIT 1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WithdrawalsRepositoryImpl) MarkPaid(ctx context.Context, tx *sqlx.Tx, id int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE withdrawals SET status = 'paid', updated_at = NOW()
		WHERE id = ? AND status = 'requested'
	`, id)
	return err
}

func (r *WithdrawalsRepositoryImpl) ListByPartner(ctx context.Context, partnerID int64, limit int) ([]model.Withdrawal, error) {
	var out []model.Withdrawal
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, partner_id, amount, status, created_at, updated_at
		  FROM withdrawals
		 WHERE partner_id = ?
		 ORDER BY created_at DESC
		 LIMIT ?
	`, partnerID, limit)
	return out, err
}
