package rental

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/gommon/log"
	"github.com/numgate/numgate/internal/catalog"
	"github.com/numgate/numgate/internal/metrics"
	"github.com/numgate/numgate/internal/model"
	"github.com/numgate/numgate/internal/provider"
	"github.com/numgate/numgate/internal/repository"
	"github.com/numgate/numgate/internal/service/commission"
	ledgersvc "github.com/numgate/numgate/internal/service/ledger"
	"github.com/numgate/numgate/internal/util"
)

const eventsTopic = "rental.events"

var (
	ErrInvalidService   = errors.New("invalid service")
	ErrRentalInProgress = errors.New("rental in progress")
	ErrNotFound         = errors.New("rental not found")
	ErrRentalExpired    = errors.New("rental expired")
)

// CannotCancelError means an OTP already arrived; the code rides along so the
// caller does not lose it. The slot stays active; the next poll performs the
// normal success transition.
type CannotCancelError struct {
	OTP string
}

func (e *CannotCancelError) Error() string { return "cannot cancel: otp received" }

// Service is the rental state machine: none → active → success | cancelled |
// expired. Exactly one active rental per account; the slot row's primary key
// enforces it. Expiry is lazy: evaluated on the next Poll or Cancel, never
// by a background timer.
type Service struct {
	db         *sqlx.DB
	catalog    *catalog.Catalog
	provider   provider.NumberProvider
	ledger     *ledgersvc.Service
	commission *commission.Engine
	rentals    repository.RentalsRepository
	history    repository.HistoryRepository
	outbox     repository.OutboxRepository

	ttl     time.Duration
	otpMin  int
	otpMax  int
	now     func() time.Time
	retries int // bounded tx retries on deadlock

	// runTx executes a state transition transactionally. Defaults to withTx
	// on the live database; tests supply a pass-through.
	runTx func(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

func New(
	db *sqlx.DB,
	cat *catalog.Catalog,
	prov provider.NumberProvider,
	ledger *ledgersvc.Service,
	engine *commission.Engine,
	rentals repository.RentalsRepository,
	history repository.HistoryRepository,
	outbox repository.OutboxRepository,
	ttl time.Duration,
	otpMin, otpMax int,
) *Service {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	s := &Service{
		db:         db,
		catalog:    cat,
		provider:   prov,
		ledger:     ledger,
		commission: engine,
		rentals:    rentals,
		history:    history,
		outbox:     outbox,
		ttl:        ttl,
		otpMin:     otpMin,
		otpMax:     otpMax,
		now:        time.Now,
		retries:    3,
	}
	s.runTx = s.withTx
	return s
}

// withTx runs fn in a transaction, retrying a bounded number of times on
// MySQL deadlock/lock-timeout aborts before giving up.
func (s *Service) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	var last error
	for attempt := 0; attempt < s.retries; attempt++ {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			if isRetryableTxErr(err) {
				last = err
				continue
			}
			return err
		}
		if err := tx.Commit(); err != nil {
			if isRetryableTxErr(err) {
				last = err
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("tx retries exhausted: %w", last)
}

// 1213 deadlock, 1205 lock wait timeout
func isRetryableTxErr(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	return me.Number == 1213 || me.Number == 1205
}

func (s *Service) emit(ctx context.Context, tx *sqlx.Tx, historyID string, accountID int64, txnID, service, stage string, price, comm int64) error {
	ev := model.RentalEvent{
		ID:         historyID,
		AccountID:  accountID,
		TxnID:      txnID,
		Service:    service,
		Stage:      stage,
		Price:      price,
		Commission: comm,
		OccurredAt: s.now().UTC(),
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.outbox.Insert(ctx, tx, "rental", historyID, eventsTopic, payload)
}

// Acquire runs none → active. Funds are verified before the provider is
// called; the debit and the slot write land in one transaction only after the
// provider confirmed a number. If that transaction fails the provider
// transaction is cancelled (compensating action) so no number stays leased
// without a matching charge.
func (s *Service) Acquire(ctx context.Context, acct *model.Account, serviceCode, refCode, referer string) (*model.Rental, error) {
	entry, ok := s.catalog.Lookup(serviceCode)
	if !ok {
		return nil, ErrInvalidService
	}

	res, err := s.commission.Resolve(ctx, acct, refCode, referer)
	if err != nil {
		return nil, err
	}
	finalPrice, comm := commission.Quote(entry.Price, res.Partner)

	// Pre-checks before any provider traffic: an occupied slot or an
	// underfunded wallet must never reach getNumber.
	if existing, err := s.rentals.GetByAccount(ctx, acct.ID); err != nil {
		return nil, fmt.Errorf("slot lookup: %w", err)
	} else if existing != nil {
		return nil, ErrRentalInProgress
	}
	if acct.Balance < finalPrice {
		return nil, ledgersvc.ErrInsufficientFunds
	}

	txnID, phone, err := s.provider.GetNumber(ctx, entry.Country, entry.Service)
	if err != nil {
		metrics.RentalsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	now := s.now()
	rent := &model.Rental{
		AccountID:  acct.ID,
		HistoryID:  util.NewULID(),
		TxnID:      txnID,
		Phone:      phone,
		Service:    entry.Code,
		BasePrice:  entry.Price,
		FinalPrice: finalPrice,
		Commission: comm,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}
	if res.Partner != nil {
		rent.PartnerID = sql.NullInt64{Int64: res.Partner.ID, Valid: true}
	}

	err = s.runTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.ledger.Debit(ctx, tx, acct.ID, finalPrice, txnID); err != nil {
			return err
		}
		if err := s.rentals.Insert(ctx, tx, rent); err != nil {
			if errors.Is(err, repository.ErrSlotTaken) {
				return ErrRentalInProgress
			}
			return err
		}
		hist := &model.HistoryRecord{
			ID:         rent.HistoryID,
			AccountID:  acct.ID,
			TxnID:      txnID,
			Phone:      phone,
			Service:    entry.Code,
			BasePrice:  entry.Price,
			FinalPrice: finalPrice,
			Commission: comm,
			PartnerID:  rent.PartnerID,
			Status:     model.RentalActive,
			CreatedAt:  now,
		}
		if err := s.history.Insert(ctx, tx, hist); err != nil {
			return fmt.Errorf("history insert: %w", err)
		}
		if res.Partner != nil {
			if err := s.commission.Attribute(ctx, tx, res.Partner, acct.ID, entry.Code, entry.Price, comm, txnID); err != nil {
				return err
			}
		}
		if err := s.commission.RememberReferrer(ctx, tx, acct, res.Code); err != nil {
			return fmt.Errorf("remember referrer: %w", err)
		}
		return s.emit(ctx, tx, rent.HistoryID, acct.ID, txnID, entry.Code, model.StageAcquired, finalPrice, comm)
	})
	if err != nil {
		// Compensate: release the leased number. The debit rolled back with
		// the transaction, so nothing was charged.
		s.compensateCancel(txnID)
		return nil, err
	}

	metrics.RentalsTotal.WithLabelValues("acquired").Inc()
	return rent, nil
}

func (s *Service) compensateCancel(txnID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.provider.Cancel(ctx, txnID); err != nil {
		log.Errorf("compensating cancel for txn %s failed: %v", txnID, err)
	}
}

// PollResult is the caller-visible outcome of a successful Poll.
type PollResult struct {
	Status    model.RentalStatus
	OTP       string
	Remaining time.Duration
}

// Poll checks an active rental for its OTP. Expiry is evaluated first: once
// the TTL has lapsed the rental expires regardless of what the provider
// would answer.
func (s *Service) Poll(ctx context.Context, acct *model.Account, txnID string) (PollResult, error) {
	rent, err := s.lookup(ctx, acct.ID, txnID)
	if err != nil {
		return PollResult{}, err
	}

	now := s.now()
	if rent.Expired(now) {
		if err := s.expire(ctx, rent); err != nil {
			return PollResult{}, err
		}
		return PollResult{}, ErrRentalExpired
	}

	status, err := s.provider.GetStatus(ctx, txnID)
	if err != nil {
		return PollResult{}, err
	}

	otp, found := provider.ExtractOTP(status, s.otpMin, s.otpMax)
	if !found {
		return PollResult{Status: model.RentalActive, Remaining: rent.Remaining(now)}, nil
	}

	err = s.runTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.history.MarkResolved(ctx, tx, rent.HistoryID, model.RentalSuccess,
			sql.NullString{String: otp, Valid: true}, 0); err != nil {
			return err
		}
		if err := s.rentals.Delete(ctx, tx, rent.AccountID, rent.TxnID); err != nil {
			return err
		}
		return s.emit(ctx, tx, rent.HistoryID, rent.AccountID, rent.TxnID, rent.Service, model.StageOTP, rent.FinalPrice, rent.Commission)
	})
	if err != nil {
		return PollResult{}, err
	}

	metrics.RentalsTotal.WithLabelValues("otp").Inc()
	return PollResult{Status: model.RentalSuccess, OTP: otp}, nil
}

// Cancel runs active → cancelled with a full refund of the charged price,
// or active → expired with none. The provider status is re-checked first: if
// an OTP already arrived the cancellation is refused and the code returned.
// Partner commission from the sale is not clawed back on refund; that is
// business policy, not an oversight.
func (s *Service) Cancel(ctx context.Context, acct *model.Account, txnID string) (refund int64, err error) {
	rent, err := s.lookup(ctx, acct.ID, txnID)
	if err != nil {
		return 0, err
	}

	status, err := s.provider.GetStatus(ctx, txnID)
	if err != nil {
		return 0, err
	}
	if otp, found := provider.ExtractOTP(status, s.otpMin, s.otpMax); found {
		return 0, &CannotCancelError{OTP: otp}
	}

	if rent.Expired(s.now()) {
		if err := s.expire(ctx, rent); err != nil {
			return 0, err
		}
		return 0, ErrRentalExpired
	}

	if err := s.provider.Cancel(ctx, txnID); err != nil {
		return 0, err
	}

	refund = rent.FinalPrice
	err = s.runTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.ledger.Credit(ctx, tx, rent.AccountID, refund, rent.TxnID); err != nil {
			return err
		}
		if err := s.history.MarkResolved(ctx, tx, rent.HistoryID, model.RentalCancelled, sql.NullString{}, refund); err != nil {
			return err
		}
		if err := s.rentals.Delete(ctx, tx, rent.AccountID, rent.TxnID); err != nil {
			return err
		}
		return s.emit(ctx, tx, rent.HistoryID, rent.AccountID, rent.TxnID, rent.Service, model.StageCancelled, rent.FinalPrice, rent.Commission)
	})
	if err != nil {
		return 0, err
	}

	metrics.RentalsTotal.WithLabelValues("cancelled").Inc()
	return refund, nil
}

func (s *Service) lookup(ctx context.Context, accountID int64, txnID string) (*model.Rental, error) {
	rent, err := s.rentals.GetByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("slot lookup: %w", err)
	}
	if rent == nil || rent.TxnID != txnID {
		return nil, ErrNotFound
	}
	return rent, nil
}

// expire clears the slot with zero refund: money captured at acquisition is
// only released by an explicit, observed cancel within the TTL.
func (s *Service) expire(ctx context.Context, rent *model.Rental) error {
	err := s.runTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.history.MarkResolved(ctx, tx, rent.HistoryID, model.RentalExpired, sql.NullString{}, 0); err != nil {
			return err
		}
		if err := s.rentals.Delete(ctx, tx, rent.AccountID, rent.TxnID); err != nil {
			return err
		}
		return s.emit(ctx, tx, rent.HistoryID, rent.AccountID, rent.TxnID, rent.Service, model.StageExpired, rent.FinalPrice, rent.Commission)
	})
	if err != nil {
		return err
	}
	metrics.RentalsTotal.WithLabelValues("expired").Inc()
	return nil
}
