package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/numgate/numgate/internal/model"
)

type KeyAuditRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, e *model.KeyAuditEntry) error
	ListByAccount(ctx context.Context, accountID int64, limit int) ([]model.KeyAuditEntry, error)
}

type KeyAuditRepositoryImpl struct {
	db *sqlx.DB
}

func NewKeyAuditRepository(db *sqlx.DB) *KeyAuditRepositoryImpl {
	return &KeyAuditRepositoryImpl{db: db}
}

var _ KeyAuditRepository = (*KeyAuditRepositoryImpl)(nil)

func (r *KeyAuditRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, e *model.KeyAuditEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO key_audit (account_id, old_prefix, new_prefix, ip, reason, created_at)
		VALUES (?, ?, ?, ?, ?, NOW())
	`, e.AccountID, e.OldPrefix, e.NewPrefix, e.IP, e.Reason)
	return err
}

func (r *KeyAuditRepositoryImpl) ListByAccount(ctx context.Context, accountID int64, limit int) ([]model.KeyAuditEntry, error) {
	var out []model.KeyAuditEntry
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, account_id, old_prefix, new_prefix, ip, reason, created_at
		  FROM key_audit
		 WHERE account_id = ?
		 ORDER BY created_at DESC
		 LIMIT ?
	`, accountID, limit)
	return out, err
}
