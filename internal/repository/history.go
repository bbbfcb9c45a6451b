package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/numgate/numgate/internal/model"
)

type HistoryRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, h *model.HistoryRecord) error
	MarkResolved(ctx context.Context, tx *sqlx.Tx, id string, status model.RentalStatus, otp sql.NullString, refund int64) error
	ListByAccount(ctx context.Context, accountID int64, limit, offset int) ([]model.HistoryRecord, error)
}

type HistoryRepositoryImpl struct {
	db *sqlx.DB
}

func NewHistoryRepository(db *sqlx.DB) *HistoryRepositoryImpl {
	return &HistoryRepositoryImpl{db: db}
}

var _ HistoryRepository = (*HistoryRepositoryImpl)(nil)

func (r *HistoryRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, h *model.HistoryRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO rental_history
		    (id, account_id, txn_id, phone, service, base_price, final_price,
		     commission, partner_id, status, refund, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	`, h.ID, h.AccountID, h.TxnID, h.Phone, h.Service, h.BasePrice, h.FinalPrice,
		h.Commission, h.PartnerID, h.Status, h.CreatedAt, h.CreatedAt)
	return err
}

// MarkResolved mutates the history row in place as the rental resolves.
func (r *HistoryRepositoryImpl) MarkResolved(ctx context.Context, tx *sqlx.Tx, id string, status model.RentalStatus, otp sql.NullString, refund int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE rental_history
		SET status = ?, otp = ?, refund = ?, updated_at = NOW()
		WHERE id = ?
	`, status, otp, refund, id)
	return err
}

func (r *HistoryRepositoryImpl) ListByAccount(ctx context.Context, accountID int64, limit, offset int) ([]model.HistoryRecord, error) {
	var out []model.HistoryRecord
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, account_id, txn_id, phone, service, base_price, final_price,
		       commission, partner_id, status, otp, refund, created_at, updated_at
		  FROM rental_history
		 WHERE account_id = ?
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?
	`, accountID, limit, offset)
	return out, err
}
