package model

import "time"

type MarkupKind string

const (
	MarkupPercent MarkupKind = "percent"
	MarkupFlat    MarkupKind = "flat"
)

type PartnerStatus string

const (
	PartnerActive    PartnerStatus = "active"
	PartnerSuspended PartnerStatus = "suspended"
)

// PartnerRecord is one account's commission identity. The markup rule is a
// tagged union: percent of base price or a flat surcharge, never both.
// At most one record exists per owning account (UNIQUE on account_id).
type PartnerRecord struct {
	ID          int64         `db:"id"`
	AccountID   int64         `db:"account_id"`
	Code        string        `db:"code"` // referral code handed out to buyers
	MarkupKind  MarkupKind    `db:"markup_kind"`
	MarkupValue int64         `db:"markup_value"` // percent points or flat units
	SalesCount  int64         `db:"sales_count"`
	SalesVolume int64         `db:"sales_volume"` // cumulative base prices sold
	Earned      int64         `db:"earned"`       // lifetime commission
	Pending     int64         `db:"pending"`      // earned, not yet withdrawn
	Withdrawn   int64         `db:"withdrawn"`
	Status      PartnerStatus `db:"status"`
	CreatedAt   time.Time     `db:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at"`
}

func (p *PartnerRecord) Active() bool { return p != nil && p.Status == PartnerActive }
