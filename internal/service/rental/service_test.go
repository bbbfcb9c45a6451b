package rental

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/numgate/numgate/internal/catalog"
	"github.com/numgate/numgate/internal/config"
	"github.com/numgate/numgate/internal/model"
	"github.com/numgate/numgate/internal/provider"
	"github.com/numgate/numgate/internal/repository"
	"github.com/numgate/numgate/internal/service/commission"
	ledgersvc "github.com/numgate/numgate/internal/service/ledger"
)

type fakeProvider struct {
	getNumberErr error
	status       string
	statusErr    error
	statusCalls  int
	cancelled    []string
}

func (f *fakeProvider) GetNumber(context.Context, string, string) (string, string, error) {
	if f.getNumberErr != nil {
		return "", "", f.getNumberErr
	}
	return "txn-1", "+15551234567", nil
}

func (f *fakeProvider) GetStatus(context.Context, string) (string, error) {
	f.statusCalls++
	return f.status, f.statusErr
}

func (f *fakeProvider) Cancel(_ context.Context, txnID string) error {
	f.cancelled = append(f.cancelled, txnID)
	return nil
}

type fakeRentals struct {
	slot    *model.Rental
	deleted []string
}

func (f *fakeRentals) GetByAccount(context.Context, int64) (*model.Rental, error) {
	return f.slot, nil
}
func (f *fakeRentals) Insert(_ context.Context, _ *sqlx.Tx, r *model.Rental) error {
	f.slot = r
	return nil
}
func (f *fakeRentals) Delete(_ context.Context, _ *sqlx.Tx, _ int64, txnID string) error {
	f.deleted = append(f.deleted, txnID)
	f.slot = nil
	return nil
}
func (f *fakeRentals) CountActive(context.Context) (int64, error) { return 0, nil }

type resolvedCall struct {
	id     string
	status model.RentalStatus
	otp    sql.NullString
	refund int64
}

type fakeHistory struct {
	inserted []*model.HistoryRecord
	resolved []resolvedCall
}

func (f *fakeHistory) Insert(_ context.Context, _ *sqlx.Tx, h *model.HistoryRecord) error {
	f.inserted = append(f.inserted, h)
	return nil
}
func (f *fakeHistory) MarkResolved(_ context.Context, _ *sqlx.Tx, id string, status model.RentalStatus, otp sql.NullString, refund int64) error {
	f.resolved = append(f.resolved, resolvedCall{id: id, status: status, otp: otp, refund: refund})
	return nil
}
func (f *fakeHistory) ListByAccount(context.Context, int64, int, int) ([]model.HistoryRecord, error) {
	return nil, nil
}

type fakeOutbox struct {
	events []model.RentalEvent
}

func (f *fakeOutbox) Insert(_ context.Context, _ *sqlx.Tx, _, _, _ string, payload []byte) error {
	var ev model.RentalEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return err
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeOutbox) lastStage() string {
	if len(f.events) == 0 {
		return ""
	}
	return f.events[len(f.events)-1].Stage
}

type fakeWallet struct {
	balance  int64
	debited  int64
	credited int64
}

func (f *fakeWallet) GetForUpdate(context.Context, *sqlx.Tx, int64) (int64, error) {
	return f.balance, nil
}
func (f *fakeWallet) ApplyDebit(_ context.Context, _ *sqlx.Tx, _, amount int64) error {
	f.debited += amount
	f.balance -= amount
	return nil
}
func (f *fakeWallet) ApplyCredit(_ context.Context, _ *sqlx.Tx, _, amount int64) error {
	f.credited += amount
	f.balance += amount
	return nil
}
func (f *fakeWallet) ApplyDelta(_ context.Context, _ *sqlx.Tx, _, delta int64) error {
	f.balance += delta
	return nil
}

type fakeLedgerEntries struct {
	idems map[string]bool
	ops   []string
}

func (f *fakeLedgerEntries) ExistsByIdem(_ context.Context, _ *sqlx.Tx, idem string) (bool, error) {
	return f.idems[idem], nil
}
func (f *fakeLedgerEntries) Insert(_ context.Context, _ *sqlx.Tx, _ int64, op string, _ int64, _, idem string) error {
	if f.idems == nil {
		f.idems = make(map[string]bool)
	}
	f.idems[idem] = true
	f.ops = append(f.ops, op)
	return nil
}

type fakePartners struct{}

func (fakePartners) GetByCode(context.Context, string) (*model.PartnerRecord, error) {
	return nil, nil
}
func (fakePartners) GetByAccount(context.Context, int64) (*model.PartnerRecord, error) {
	return nil, nil
}
func (fakePartners) GetByID(context.Context, int64) (*model.PartnerRecord, error) { return nil, nil }
func (fakePartners) Insert(context.Context, *model.PartnerRecord) (int64, error)  { return 0, nil }
func (fakePartners) AddSale(context.Context, *sqlx.Tx, int64, int64, int64) error { return nil }
func (fakePartners) DebitPending(context.Context, *sqlx.Tx, int64, int64) error   { return nil }
func (fakePartners) MarkWithdrawn(context.Context, *sqlx.Tx, int64, int64) error  { return nil }
func (fakePartners) SetStatus(context.Context, int64, model.PartnerStatus) error  { return nil }

var _ repository.RentalsRepository = (*fakeRentals)(nil)
var _ repository.HistoryRepository = (*fakeHistory)(nil)
var _ repository.OutboxRepository = (*fakeOutbox)(nil)
var _ repository.WalletRepository = (*fakeWallet)(nil)
var _ repository.LedgerRepository = (*fakeLedgerEntries)(nil)
var _ provider.NumberProvider = (*fakeProvider)(nil)
var _ repository.PartnersRepository = fakePartners{}

// harness wires the state machine to in-memory fakes with a pass-through
// transaction runner and a fixed clock.
type harness struct {
	svc     *Service
	prov    *fakeProvider
	rentals *fakeRentals
	history *fakeHistory
	outbox  *fakeOutbox
	wallet  *fakeWallet
	entries *fakeLedgerEntries
}

func newHarness(prov *fakeProvider, rentals *fakeRentals) *harness {
	cat := catalog.New([]config.CatalogEntry{
		{Code: "india_115", Service: "wa", Country: "india", Price: 103},
	})
	h := &harness{
		prov:    prov,
		rentals: rentals,
		history: &fakeHistory{},
		outbox:  &fakeOutbox{},
		wallet:  &fakeWallet{balance: 1000},
		entries: &fakeLedgerEntries{},
	}
	engine := commission.New(fakePartners{}, nil, nil)
	ledger := ledgersvc.New(h.wallet, h.entries)

	s := New(nil, cat, prov, ledger, engine, rentals, h.history, h.outbox, 15*time.Minute, 4, 8)
	s.now = func() time.Time { return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC) }
	s.runTx = func(ctx context.Context, fn func(tx *sqlx.Tx) error) error { return fn(nil) }
	h.svc = s
	return h
}

func slotAt(s *Service, expiresIn time.Duration) *model.Rental {
	now := s.now()
	return &model.Rental{
		AccountID:  1,
		HistoryID:  "01HZX0000000000000000000AA",
		TxnID:      "txn-1",
		Phone:      "+15551234567",
		Service:    "india_115",
		BasePrice:  103,
		FinalPrice: 103,
		CreatedAt:  now.Add(expiresIn - 15*time.Minute),
		ExpiresAt:  now.Add(expiresIn),
	}
}

func TestAcquireUnknownService(t *testing.T) {
	h := newHarness(&fakeProvider{}, &fakeRentals{})
	acct := &model.Account{ID: 1, Balance: 1000, Status: "active"}

	_, err := h.svc.Acquire(context.Background(), acct, "nope", "", "")
	if !errors.Is(err, ErrInvalidService) {
		t.Fatalf("want ErrInvalidService, got %v", err)
	}
}

func TestAcquireOccupiedSlot(t *testing.T) {
	prov := &fakeProvider{}
	h := newHarness(prov, &fakeRentals{slot: &model.Rental{AccountID: 1, TxnID: "other"}})
	acct := &model.Account{ID: 1, Balance: 1000, Status: "active"}

	_, err := h.svc.Acquire(context.Background(), acct, "india_115", "", "")
	if !errors.Is(err, ErrRentalInProgress) {
		t.Fatalf("want ErrRentalInProgress, got %v", err)
	}
	if len(prov.cancelled) != 0 || h.wallet.debited != 0 {
		t.Fatal("provider and wallet must not be touched when the slot is occupied")
	}
}

func TestAcquireInsufficientFunds(t *testing.T) {
	h := newHarness(&fakeProvider{}, &fakeRentals{})
	acct := &model.Account{ID: 1, Balance: 102, Status: "active"}

	_, err := h.svc.Acquire(context.Background(), acct, "india_115", "", "")
	if !errors.Is(err, ledgersvc.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}
}

func TestAcquireProviderReject(t *testing.T) {
	reject := &provider.RejectError{Message: "NO_NUMBERS"}
	h := newHarness(&fakeProvider{getNumberErr: reject}, &fakeRentals{})
	acct := &model.Account{ID: 1, Balance: 1000, Status: "active"}

	_, err := h.svc.Acquire(context.Background(), acct, "india_115", "", "")
	var got *provider.RejectError
	if !errors.As(err, &got) {
		t.Fatalf("want RejectError, got %v", err)
	}
	if h.wallet.debited != 0 {
		t.Fatal("rejected acquire must not charge the wallet")
	}
}

func TestAcquireThenCancelRefundsFullPrice(t *testing.T) {
	prov := &fakeProvider{status: "STATUS_WAIT_CODE"}
	h := newHarness(prov, &fakeRentals{})
	acct := &model.Account{ID: 1, Balance: 1000, Status: "active"}

	rent, err := h.svc.Acquire(context.Background(), acct, "india_115", "", "")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if rent.FinalPrice != 103 {
		t.Fatalf("final price = %d, want 103", rent.FinalPrice)
	}
	if h.wallet.debited != 103 || !h.entries.idems["charge-txn-1"] {
		t.Fatalf("charge missing: debited=%d idems=%v", h.wallet.debited, h.entries.idems)
	}
	if len(h.history.inserted) != 1 || h.history.inserted[0].Status != model.RentalActive {
		t.Fatalf("history = %+v", h.history.inserted)
	}
	if h.outbox.lastStage() != model.StageAcquired {
		t.Fatalf("event stage = %q", h.outbox.lastStage())
	}

	refund, err := h.svc.Cancel(context.Background(), acct, rent.TxnID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if refund != rent.FinalPrice {
		t.Fatalf("refund = %d, want charged price %d", refund, rent.FinalPrice)
	}
	if h.wallet.credited != 103 || h.wallet.balance != 1000 {
		t.Fatalf("wallet after round trip: credited=%d balance=%d", h.wallet.credited, h.wallet.balance)
	}
	if !h.entries.idems["refund-txn-1"] {
		t.Fatal("refund ledger entry missing")
	}
	if len(prov.cancelled) != 1 || prov.cancelled[0] != "txn-1" {
		t.Fatalf("provider cancel calls = %v", prov.cancelled)
	}
	if h.rentals.slot != nil {
		t.Fatal("slot must be cleared after cancel")
	}
	last := h.history.resolved[len(h.history.resolved)-1]
	if last.status != model.RentalCancelled || last.refund != 103 {
		t.Fatalf("resolved = %+v", last)
	}
}

func TestPollUnknownTxn(t *testing.T) {
	tests := []struct {
		name string
		slot *model.Rental
	}{
		{"no active rental", nil},
		{"txn mismatch", &model.Rental{AccountID: 1, TxnID: "other"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(&fakeProvider{}, &fakeRentals{slot: tt.slot})
			_, err := h.svc.Poll(context.Background(), &model.Account{ID: 1}, "txn-1")
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("want ErrNotFound, got %v", err)
			}
		})
	}
}

func TestPollStillWaiting(t *testing.T) {
	prov := &fakeProvider{status: "STATUS_WAIT_CODE"}
	h := newHarness(prov, &fakeRentals{})
	h.rentals.slot = slotAt(h.svc, 14*time.Minute)

	res, err := h.svc.Poll(context.Background(), &model.Account{ID: 1}, "txn-1")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if res.Status != model.RentalActive || res.OTP != "" {
		t.Fatalf("result = %+v", res)
	}
	if res.Remaining != 14*time.Minute {
		t.Fatalf("remaining = %s, want 14m", res.Remaining)
	}
}

func TestPollPastTTLExpiresRegardlessOfProvider(t *testing.T) {
	// provider would answer with an OTP; expiry must win without asking it
	prov := &fakeProvider{status: "STATUS_OK:4321"}
	h := newHarness(prov, &fakeRentals{})
	h.rentals.slot = slotAt(h.svc, -time.Second)

	_, err := h.svc.Poll(context.Background(), &model.Account{ID: 1}, "txn-1")
	if !errors.Is(err, ErrRentalExpired) {
		t.Fatalf("want ErrRentalExpired, got %v", err)
	}
	if prov.statusCalls != 0 {
		t.Fatalf("provider consulted %d times on an expired rental", prov.statusCalls)
	}
	if h.rentals.slot != nil || len(h.rentals.deleted) != 1 {
		t.Fatal("expired rental must clear the slot")
	}
	last := h.history.resolved[len(h.history.resolved)-1]
	if last.status != model.RentalExpired || last.refund != 0 {
		t.Fatalf("resolved = %+v, want expired with zero refund", last)
	}
	if h.wallet.credited != 0 {
		t.Fatalf("expiry must not refund, credited=%d", h.wallet.credited)
	}
	if h.outbox.lastStage() != model.StageExpired {
		t.Fatalf("event stage = %q", h.outbox.lastStage())
	}
}

func TestCancelRefusedAfterOTP(t *testing.T) {
	prov := &fakeProvider{status: "STATUS_OK:4321"}
	h := newHarness(prov, &fakeRentals{})
	h.rentals.slot = slotAt(h.svc, 14*time.Minute)

	_, err := h.svc.Cancel(context.Background(), &model.Account{ID: 1}, "txn-1")
	var cc *CannotCancelError
	if !errors.As(err, &cc) {
		t.Fatalf("want CannotCancelError, got %v", err)
	}
	if cc.OTP != "4321" {
		t.Fatalf("otp = %q", cc.OTP)
	}
	if len(prov.cancelled) != 0 {
		t.Fatal("provider cancel must not fire once an OTP arrived")
	}
	if h.rentals.slot == nil {
		t.Fatal("slot must stay active after a refused cancel")
	}
}
