package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/numgate/numgate/internal/model"
)

// ErrPartnerExists means the account already holds a partner record
// (UNIQUE on account_id).
var ErrPartnerExists = errors.New("partner record exists")

// ErrInsufficientPending means a withdrawal asked for more than the pending
// balance holds.
var ErrInsufficientPending = errors.New("insufficient pending balance")

type PartnersRepository interface {
	GetByCode(ctx context.Context, code string) (*model.PartnerRecord, error)
	GetByAccount(ctx context.Context, accountID int64) (*model.PartnerRecord, error)
	GetByID(ctx context.Context, id int64) (*model.PartnerRecord, error)
	Insert(ctx context.Context, p *model.PartnerRecord) (int64, error)
	AddSale(ctx context.Context, tx *sqlx.Tx, partnerID, baseAmount, commission int64) error
	DebitPending(ctx context.Context, tx *sqlx.Tx, partnerID, amount int64) error
	MarkWithdrawn(ctx context.Context, tx *sqlx.Tx, partnerID, amount int64) error
	SetStatus(ctx context.Context, partnerID int64, status model.PartnerStatus) error
}

type PartnersRepositoryImpl struct {
	db *sqlx.DB
}

func NewPartnersRepository(db *sqlx.DB) *PartnersRepositoryImpl {
	return &PartnersRepositoryImpl{db: db}
}

var _ PartnersRepository = (*PartnersRepositoryImpl)(nil)

const partnerCols = `id, account_id, code, markup_kind, markup_value, sales_count, sales_volume,
       earned, pending, withdrawn, status, created_at, updated_at`

func (r *PartnersRepositoryImpl) getOne(ctx context.Context, where string, arg any) (*model.PartnerRecord, error) {
	var p model.PartnerRecord
	err := r.db.GetContext(ctx, &p, `SELECT `+partnerCols+` FROM partners WHERE `+where+` LIMIT 1`, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PartnersRepositoryImpl) GetByCode(ctx context.Context, code string) (*model.PartnerRecord, error) {
	return r.getOne(ctx, "code = ?", code)
}

func (r *PartnersRepositoryImpl) GetByAccount(ctx context.Context, accountID int64) (*model.PartnerRecord, error) {
	return r.getOne(ctx, "account_id = ?", accountID)
}

func (r *PartnersRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.PartnerRecord, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *PartnersRepositoryImpl) Insert(ctx context.Context, p *model.PartnerRecord) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO partners
		    (account_id, code, markup_kind, markup_value, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'active', NOW(), NOW())
	`, p.AccountID, p.Code, p.MarkupKind, p.MarkupValue)

	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return 0, ErrPartnerExists
	}
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// AddSale attributes one confirmed sale: commission lands in earned and
// pending, volume and count advance. Runs in the acquire transaction.
func (r *PartnersRepositoryImpl) AddSale(ctx context.Context, tx *sqlx.Tx, partnerID, baseAmount, commission int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE partners
		SET sales_count  = sales_count + 1,
		    sales_volume = sales_volume + ?,
		    earned       = earned + ?,
		    pending      = pending + ?,
		    updated_at   = NOW()
		WHERE id = ?
	`, baseAmount, commission, commission, partnerID)
	return err
}

// DebitPending moves money out of pending for a withdrawal request. The
// guarded UPDATE keeps pending non-negative under concurrent requests.
func (r *PartnersRepositoryImpl) DebitPending(ctx context.Context, tx *sqlx.Tx, partnerID, amount int64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE partners
		SET pending = pending - ?, updated_at = NOW()
		WHERE id = ? AND pending >= ?
	`, amount, partnerID, amount)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInsufficientPending
	}
	return nil
}

func (r *PartnersRepositoryImpl) MarkWithdrawn(ctx context.Context, tx *sqlx.Tx, partnerID, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE partners
		SET withdrawn = withdrawn + ?, updated_at = NOW()
		WHERE id = ?
	`, amount, partnerID)
	return err
}

func (r *PartnersRepositoryImpl) SetStatus(ctx context.Context, partnerID int64, status model.PartnerStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE partners SET status = ?, updated_at = NOW() WHERE id = ?
	`, status, partnerID)
	return err
}
