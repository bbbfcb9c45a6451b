package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/numgate/numgate/internal/model"
)

// ErrSlotTaken means the account already holds an active rental. The rentals
// table is keyed by account_id, so the collision is enforced by the primary
// key, not by a read-then-write check.
var ErrSlotTaken = errors.New("rental slot taken")

type RentalsRepository interface {
	GetByAccount(ctx context.Context, accountID int64) (*model.Rental, error)
	Insert(ctx context.Context, tx *sqlx.Tx, r *model.Rental) error
	Delete(ctx context.Context, tx *sqlx.Tx, accountID int64, txnID string) error
	CountActive(ctx context.Context) (int64, error)
}

type RentalsRepositoryImpl struct {
	db *sqlx.DB
}

func NewRentalsRepository(db *sqlx.DB) *RentalsRepositoryImpl {
	return &RentalsRepositoryImpl{db: db}
}

var _ RentalsRepository = (*RentalsRepositoryImpl)(nil)

func (r *RentalsRepositoryImpl) GetByAccount(ctx context.Context, accountID int64) (*model.Rental, error) {
	var out model.Rental
	err := r.db.GetContext(ctx, &out, `
		SELECT account_id, history_id, txn_id, phone, service, base_price, final_price,
		       commission, partner_id, created_at, expires_at
		  FROM rentals
		 WHERE account_id = ? LIMIT 1
	`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *RentalsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, rent *model.Rental) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO rentals
		    (account_id, history_id, txn_id, phone, service, base_price, final_price,
		     commission, partner_id, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rent.AccountID, rent.HistoryID, rent.TxnID, rent.Phone, rent.Service,
		rent.BasePrice, rent.FinalPrice, rent.Commission, rent.PartnerID,
		rent.CreatedAt, rent.ExpiresAt)

	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return ErrSlotTaken
	}
	return err
}

// Delete clears the slot only when the stored txn id still matches, so a
// stale caller cannot clear a newer rental.
func (r *RentalsRepositoryImpl) Delete(ctx context.Context, tx *sqlx.Tx, accountID int64, txnID string) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM rentals WHERE account_id = ? AND txn_id = ?
	`, accountID, txnID)
	return err
}

func (r *RentalsRepositoryImpl) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM rentals`)
	return n, err
}
