package model

import (
	"database/sql"
	"time"
)

// HistoryRecord mirrors a rental's lifecycle for audit. Created at
// acquisition, updated in place as the rental resolves, never deleted except
// by an administrative account purge. It also locates a rental by provider
// transaction id after the active slot has been cleared.
type HistoryRecord struct {
	ID         string         `db:"id"` // ULID
	AccountID  int64          `db:"account_id"`
	TxnID      string         `db:"txn_id"`
	Phone      string         `db:"phone"`
	Service    string         `db:"service"`
	BasePrice  int64          `db:"base_price"`
	FinalPrice int64          `db:"final_price"`
	Commission int64          `db:"commission"`
	PartnerID  sql.NullInt64  `db:"partner_id"`
	Status     RentalStatus   `db:"status"`
	OTP        sql.NullString `db:"otp"`
	Refund     int64          `db:"refund"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}
