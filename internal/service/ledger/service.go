package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/numgate/numgate/internal/repository"
)

// ErrInsufficientFunds is returned when a debit would drive the balance
// negative. Balances never go below zero.
var ErrInsufficientFunds = errors.New("insufficient funds")

const (
	OpCharge = "charge"
	OpRefund = "refund"
	OpAdmin  = "admin"
)

// Service performs the atomic wallet mutations. Every operation takes a
// caller-supplied transaction: the row lock from GetForUpdate plus the
// idempotency key on the ledger row is what makes "charge exactly once"
// hold under concurrency.
type Service struct {
	wallet  repository.WalletRepository
	entries repository.LedgerRepository
}

func New(wallet repository.WalletRepository, entries repository.LedgerRepository) *Service {
	return &Service{wallet: wallet, entries: entries}
}

// Debit charges the account inside tx. The balance check happens after the
// row is locked, so concurrent debits on the same account cannot interleave
// and double-spend.
func (s *Service) Debit(ctx context.Context, tx *sqlx.Tx, accountID, amount int64, ref string) error {
	if amount < 0 {
		return fmt.Errorf("negative debit amount %d", amount)
	}

	idem := OpCharge + "-" + ref
	dup, err := s.entries.ExistsByIdem(ctx, tx, idem)
	if err != nil {
		return fmt.Errorf("ledger idem check: %w", err)
	}
	if dup {
		// already charged for this transaction; nothing to do
		return nil
	}

	bal, err := s.wallet.GetForUpdate(ctx, tx, accountID)
	if err != nil {
		return fmt.Errorf("wallet lock: %w", err)
	}
	if bal < amount {
		return ErrInsufficientFunds
	}

	if err := s.wallet.ApplyDebit(ctx, tx, accountID, amount); err != nil {
		return fmt.Errorf("wallet debit: %w", err)
	}
	if err := s.entries.Insert(ctx, tx, accountID, OpCharge, amount, ref, idem); err != nil {
		return fmt.Errorf("ledger charge entry: %w", err)
	}
	return nil
}

// Credit refunds the account inside tx. Used only for refunds; the failed
// counter moves so "refunded" and "never attempted" stay distinguishable.
func (s *Service) Credit(ctx context.Context, tx *sqlx.Tx, accountID, amount int64, ref string) error {
	if amount < 0 {
		return fmt.Errorf("negative credit amount %d", amount)
	}

	idem := OpRefund + "-" + ref
	dup, err := s.entries.ExistsByIdem(ctx, tx, idem)
	if err != nil {
		return fmt.Errorf("ledger idem check: %w", err)
	}
	if dup {
		return nil
	}

	if _, err := s.wallet.GetForUpdate(ctx, tx, accountID); err != nil {
		return fmt.Errorf("wallet lock: %w", err)
	}
	if err := s.wallet.ApplyCredit(ctx, tx, accountID, amount); err != nil {
		return fmt.Errorf("wallet credit: %w", err)
	}
	if err := s.entries.Insert(ctx, tx, accountID, OpRefund, amount, ref, idem); err != nil {
		return fmt.Errorf("ledger refund entry: %w", err)
	}
	return nil
}

// AdminAdjust is the unconditional administrative adjustment plus its audit
// ledger row. The reason string travels into the ledger ref.
func (s *Service) AdminAdjust(ctx context.Context, tx *sqlx.Tx, accountID, delta int64, reason, idem string) error {
	if _, err := s.wallet.GetForUpdate(ctx, tx, accountID); err != nil {
		return fmt.Errorf("wallet lock: %w", err)
	}
	if err := s.wallet.ApplyDelta(ctx, tx, accountID, delta); err != nil {
		return fmt.Errorf("wallet adjust: %w", err)
	}
	if err := s.entries.Insert(ctx, tx, accountID, OpAdmin, delta, reason, idem); err != nil {
		return fmt.Errorf("ledger admin entry: %w", err)
	}
	return nil
}
