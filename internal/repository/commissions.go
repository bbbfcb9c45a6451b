package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/numgate/numgate/internal/model"
)

type CommissionsRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, e *model.CommissionEntry) error
	ListByPartner(ctx context.Context, partnerID int64, limit, offset int) ([]model.CommissionEntry, error)
}

type CommissionsRepositoryImpl struct {
	db *sqlx.DB
}

func NewCommissionsRepository(db *sqlx.DB) *CommissionsRepositoryImpl {
	return &CommissionsRepositoryImpl{db: db}
}

var _ CommissionsRepository = (*CommissionsRepositoryImpl)(nil)

func (r *CommissionsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, e *model.CommissionEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO commission_entries
		    (partner_id, account_id, service, base_price, commission, txn_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, NOW())
	`, e.PartnerID, e.AccountID, e.Service, e.BasePrice, e.Commission, e.TxnID)
	return err
}

func (r *CommissionsRepositoryImpl) ListByPartner(ctx context.Context, partnerID int64, limit, offset int) ([]model.CommissionEntry, error) {
	var out []model.CommissionEntry
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, partner_id, account_id, service, base_price, commission, txn_id, created_at
		  FROM commission_entries
		 WHERE partner_id = ?
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?
	`, partnerID, limit, offset)
	return out, err
}
