package model

import "time"

// KeyAuditEntry records one credential rotation. Only truncated prefixes are
// stored; full keys never land in the audit trail.
type KeyAuditEntry struct {
	ID        int64     `db:"id"`
	AccountID int64     `db:"account_id"`
	OldPrefix string    `db:"old_prefix"`
	NewPrefix string    `db:"new_prefix"`
	IP        string    `db:"ip"`
	Reason    string    `db:"reason"`
	CreatedAt time.Time `db:"created_at"`
}
