package model

import (
	"database/sql"
	"time"
)

type AccountRole string

const (
	RoleUser  AccountRole = "user"
	RoleAdmin AccountRole = "admin"
)

// Account is a registered user with a prepaid wallet and a single current
// API credential. Balance and lifetime counters only ever change inside a
// row-locking transaction.
type Account struct {
	ID          int64          `db:"id"`
	IdentityUID string         `db:"identity_uid"` // subject from the identity provider
	Name        string         `db:"name"`
	Email       string         `db:"email"`
	Balance     int64          `db:"balance"`
	Requests    int64          `db:"requests"`
	Succeeded   int64          `db:"succeeded"`
	Failed      int64          `db:"failed"`
	Spent       int64          `db:"spent"`
	APIKey      string         `db:"api_key"`
	Referrer    sql.NullString `db:"referrer_code"` // partner code that referred this account; first-attribution-wins
	Role        AccountRole    `db:"role"`
	Status      string         `db:"status"` // active|suspended
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (a *Account) IsAdmin() bool { return a.Role == RoleAdmin }
