package model

import "time"

// CommissionEntry is one priced sale attributed to a partner. Append-only;
// refunds do not claw entries back (partner keeps commission on cancelled
// sales, by policy).
type CommissionEntry struct {
	ID         int64     `db:"id"`
	PartnerID  int64     `db:"partner_id"`
	AccountID  int64     `db:"account_id"` // the buyer
	Service    string    `db:"service"`
	BasePrice  int64     `db:"base_price"`
	Commission int64     `db:"commission"`
	TxnID      string    `db:"txn_id"`
	CreatedAt  time.Time `db:"created_at"`
}

type WithdrawalStatus string

const (
	WithdrawalRequested WithdrawalStatus = "requested"
	WithdrawalPaid      WithdrawalStatus = "paid"
)

// Withdrawal is a partner's request to pay out pending commission.
type Withdrawal struct {
	ID        int64            `db:"id"`
	PartnerID int64            `db:"partner_id"`
	Amount    int64            `db:"amount"`
	Status    WithdrawalStatus `db:"status"`
	CreatedAt time.Time        `db:"created_at"`
	UpdatedAt time.Time        `db:"updated_at"`
}
