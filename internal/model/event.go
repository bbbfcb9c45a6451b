package model

import "time"

// Event stages mirror the rental lifecycle plus a "rejected" stage for
// provider refusals that never produced a rental.
const (
	StageAcquired  = "acquired"
	StageOTP       = "otp"
	StageCancelled = "cancelled"
	StageExpired   = "expired"
)

// RentalEvent is the envelope written to the outbox in the same transaction
// as each lifecycle transition, published to Kafka and drained into the
// ClickHouse reporting table. It is never read on the rental critical path.
type RentalEvent struct {
	ID         string    `json:"id" db:"id"` // history ULID
	AccountID  int64     `json:"account_id" db:"account_id"`
	TxnID      string    `json:"txn_id" db:"txn_id"`
	Service    string    `json:"service" db:"service"`
	Stage      string    `json:"stage" db:"stage"`
	Price      int64     `json:"price" db:"price"`
	Commission int64     `json:"commission" db:"commission"`
	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
}
