package model

import (
	"database/sql"
	"time"
)

type RentalStatus string

const (
	RentalActive    RentalStatus = "active"
	RentalSuccess   RentalStatus = "success"
	RentalCancelled RentalStatus = "cancelled"
	RentalExpired   RentalStatus = "expired"
)

// Rental is the single active number lease for an account. The table is keyed
// by account_id alone, so a second acquire collides on the primary key instead
// of silently overwriting the slot. Terminal transitions delete the row; the
// full lifecycle lives on in rental_history.
type Rental struct {
	AccountID  int64         `db:"account_id"`
	HistoryID  string        `db:"history_id"` // ULID shared with the history row
	TxnID      string        `db:"txn_id"`     // provider-issued transaction id
	Phone      string        `db:"phone"`
	Service    string        `db:"service"` // catalog code
	BasePrice  int64         `db:"base_price"`
	FinalPrice int64         `db:"final_price"`
	Commission int64         `db:"commission"`
	PartnerID  sql.NullInt64 `db:"partner_id"`
	CreatedAt  time.Time     `db:"created_at"`
	ExpiresAt  time.Time     `db:"expires_at"` // created_at + TTL, fixed at acquisition
}

// Expired reports whether the lease TTL has lapsed at the given instant.
func (r *Rental) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Remaining returns the time left on the lease, floored at zero.
func (r *Rental) Remaining(now time.Time) time.Duration {
	d := r.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
