package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/numgate/numgate/internal/config"
	"github.com/numgate/numgate/internal/db"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo accounts and a demo partner",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		log.Println(">> Seeding demo accounts...")
		if err := seedAccounts(sqlDB); err != nil {
			return err
		}
		if err := seedPartner(sqlDB); err != nil {
			return err
		}
		log.Println(">> Seed completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

type seedAccount struct {
	identityUID string
	name        string
	email       string
	apiKey      string
	balance     int64
	role        string
	status      string
}

// seedAccounts inserts deterministic demo accounts (idempotent upsert on email).
func seedAccounts(dbx *sqlx.DB) error {
	accounts := []seedAccount{
		{
			identityUID: "seed-buyer-1",
			name:        "Demo Buyer",
			email:       "buyer@example.com",
			apiKey:      "nbk_00000000000000000000000001",
			balance:     103,
			role:        "user",
			status:      "active",
		},
		{
			identityUID: "seed-buyer-2",
			name:        "Broke Buyer",
			email:       "broke@example.com",
			apiKey:      "nbk_00000000000000000000000002",
			balance:     0,
			role:        "user",
			status:      "active",
		},
		{
			identityUID: "seed-partner-1",
			name:        "Demo Partner",
			email:       "partner@example.com",
			apiKey:      "nbk_00000000000000000000000003",
			balance:     500,
			role:        "user",
			status:      "active",
		},
		{
			identityUID: "seed-admin-1",
			name:        "Admin",
			email:       "admin@example.com",
			apiKey:      "nbk_00000000000000000000000004",
			balance:     0,
			role:        "admin",
			status:      "active",
		},
		{
			identityUID: "seed-suspended-1",
			name:        "Suspended User",
			email:       "suspended@example.com",
			apiKey:      "nbk_00000000000000000000000005",
			balance:     50,
			role:        "user",
			status:      "suspended",
		},
	}

	const q = `
INSERT INTO accounts
    (identity_uid, name, email, balance, requests, succeeded, failed, spent,
     api_key, role, status, created_at, updated_at)
VALUES
    (?, ?, ?, ?, 0, 0, 0, 0, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    name       = VALUES(name),
    balance    = VALUES(balance),
    role       = VALUES(role),
    status     = VALUES(status),
    updated_at = VALUES(updated_at)
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	for _, a := range accounts {
		if _, err := tx.Exec(q, a.identityUID, a.name, a.email, a.balance, a.apiKey, a.role, a.status, now, now); err != nil {
			return fmt.Errorf("insert account %q: %w", a.email, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit accounts: %w", err)
	}
	return nil
}

// seedPartner attaches a 15%-markup partner record to the demo partner account.
func seedPartner(dbx *sqlx.DB) error {
	const q = `
INSERT INTO partners
    (account_id, code, markup_kind, markup_value, sales_count, sales_volume,
     earned, pending, withdrawn, status, created_at, updated_at)
SELECT a.id, 'DEMOPARTNER', 'percent', 15, 0, 0, 0, 0, 0, 'active', NOW(), NOW()
FROM accounts a
LEFT JOIN partners p ON p.account_id = a.id
WHERE a.email = 'partner@example.com' AND p.account_id IS NULL
`
	if _, err := dbx.Exec(q); err != nil {
		return fmt.Errorf("seed partner: %w", err)
	}
	return nil
}
