package commission

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/numgate/numgate/internal/model"
	"github.com/numgate/numgate/internal/repository"
)

// Engine resolves partner codes and attributes commission on confirmed
// sales. Resolution never surfaces an error to the buyer: an unknown or
// suspended code simply quotes the base price.
type Engine struct {
	partners    repository.PartnersRepository
	accounts    repository.AccountsRepository
	commissions repository.CommissionsRepository
}

func New(partners repository.PartnersRepository, accounts repository.AccountsRepository, commissions repository.CommissionsRepository) *Engine {
	return &Engine{partners: partners, accounts: accounts, commissions: commissions}
}

// Quote computes the buyer price for a base price under a partner's markup
// rule. A nil partner quotes base. Percent markup rounds half-up so the
// partner payout and the customer charge always reconcile exactly.
func Quote(base int64, p *model.PartnerRecord) (final, commission int64) {
	if p == nil {
		return base, 0
	}
	switch p.MarkupKind {
	case model.MarkupPercent:
		commission = RoundHalfUpPct(base, p.MarkupValue)
	case model.MarkupFlat:
		commission = p.MarkupValue
	}
	if commission < 0 {
		commission = 0
	}
	return base + commission, commission
}

// RoundHalfUpPct computes round(base * pct / 100) with half-up rounding in
// integer arithmetic.
func RoundHalfUpPct(base, pct int64) int64 {
	return (base*pct + 50) / 100
}

// ParseReferrerURL pulls a partner code out of an inbound Referer URL
// (?ref=CODE). Empty when absent or unparseable.
func ParseReferrerURL(referer string) string {
	if referer == "" {
		return ""
	}
	u, err := url.Parse(referer)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(u.Query().Get("ref"))
}

// Resolution is a resolved partner plus the code that resolved it, so the
// caller can persist first-touch attribution.
type Resolution struct {
	Partner *model.PartnerRecord
	Code    string
}

// Resolve finds the commissionable partner for a purchase. Precedence:
// explicit code, then the buyer's stored referrer, then the Referer URL.
// Self-referral, unknown codes and suspended partners all resolve to no
// partner, never to an error.
func (e *Engine) Resolve(ctx context.Context, buyer *model.Account, explicitCode, referer string) (Resolution, error) {
	codes := []string{
		strings.TrimSpace(explicitCode),
		strings.TrimSpace(buyer.Referrer.String),
		ParseReferrerURL(referer),
	}

	for _, code := range codes {
		if code == "" {
			continue
		}
		p, err := e.partners.GetByCode(ctx, code)
		if err != nil {
			return Resolution{}, fmt.Errorf("partner lookup: %w", err)
		}
		if p == nil || !p.Active() {
			continue
		}
		if p.AccountID == buyer.ID {
			// partners earn nothing on their own purchases
			continue
		}
		return Resolution{Partner: p, Code: code}, nil
	}
	return Resolution{}, nil
}

// Attribute records one confirmed sale inside the acquire transaction:
// partner earnings move, counters advance, and a commission-ledger entry is
// appended. Refunds never claw this back.
func (e *Engine) Attribute(ctx context.Context, tx *sqlx.Tx, p *model.PartnerRecord, buyerID int64, service string, base, commission int64, txnID string) error {
	if err := e.partners.AddSale(ctx, tx, p.ID, base, commission); err != nil {
		return fmt.Errorf("partner add sale: %w", err)
	}
	entry := &model.CommissionEntry{
		PartnerID:  p.ID,
		AccountID:  buyerID,
		Service:    service,
		BasePrice:  base,
		Commission: commission,
		TxnID:      txnID,
	}
	if err := e.commissions.Insert(ctx, tx, entry); err != nil {
		return fmt.Errorf("commission entry: %w", err)
	}
	return nil
}

// RememberReferrer persists a first-touch referrer on the buyer so later
// purchases attribute without re-supplying the code. First attribution wins.
func (e *Engine) RememberReferrer(ctx context.Context, tx *sqlx.Tx, buyer *model.Account, code string) error {
	if code == "" || buyer.Referrer.Valid {
		return nil
	}
	return e.accounts.SetReferrerIfEmpty(ctx, tx, buyer.ID, code)
}
