package http

import (
	"net/http"
	"strings"

	"github.com/jmoiron/sqlx"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/numgate/numgate/internal/catalog"
	"github.com/numgate/numgate/internal/http/middleware"
	"github.com/numgate/numgate/internal/model"
	"github.com/numgate/numgate/internal/repository"
	"github.com/numgate/numgate/internal/service/commission"
	"github.com/numgate/numgate/internal/util"
)

type partnerRegisterReq struct {
	MarkupKind  string `json:"markup_kind"`  // "percent" | "flat"
	MarkupValue int64  `json:"markup_value"` // percent points or flat units
}

// partnerRegisterHandler creates the one partner record an account may hold.
func partnerRegisterHandler(partners repository.PartnersRepository, allowReferred bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		acct, okAuth := middleware.AccountFromCtx(c)
		if !okAuth {
			return fail(c, http.StatusUnauthorized, "unauthenticated")
		}
		if acct.Referrer.Valid && !allowReferred {
			return fail(c, http.StatusForbidden, "referred accounts cannot register as partners")
		}

		var req partnerRegisterReq
		if err := c.Bind(&req); err != nil {
			return fail(c, http.StatusBadRequest, "bad request")
		}

		kind := model.MarkupKind(strings.ToLower(strings.TrimSpace(req.MarkupKind)))
		if kind != model.MarkupPercent && kind != model.MarkupFlat {
			return fail(c, http.StatusBadRequest, "markup_kind must be percent or flat")
		}
		if req.MarkupValue <= 0 || (kind == model.MarkupPercent && req.MarkupValue > 100) {
			return fail(c, http.StatusBadRequest, "invalid markup_value")
		}

		p := &model.PartnerRecord{
			AccountID:   acct.ID,
			Code:        util.NewULID(),
			MarkupKind:  kind,
			MarkupValue: req.MarkupValue,
		}
		id, err := partners.Insert(c.Request().Context(), p)
		if err != nil {
			return failErr(c, err)
		}

		return ok(c, map[string]any{"partner_id": id, "code": p.Code})
	}
}

// loadPartner resolves the caller's partner record or fails the request.
func loadPartner(c echo.Context, partners repository.PartnersRepository) (*model.PartnerRecord, error) {
	acct, okAuth := middleware.AccountFromCtx(c)
	if !okAuth {
		return nil, fail(c, http.StatusUnauthorized, "unauthenticated")
	}
	p, err := partners.GetByAccount(c.Request().Context(), acct.ID)
	if err != nil {
		log.Errorf("partner lookup failed: %v", err)
		return nil, fail(c, http.StatusInternalServerError, "db error")
	}
	if p == nil {
		return nil, fail(c, http.StatusNotFound, "no partner record")
	}
	return p, nil
}

func partnerInfoHandler(partners repository.PartnersRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, errResp := loadPartner(c, partners)
		if p == nil {
			return errResp
		}
		return ok(c, map[string]any{
			"partner_id":   p.ID,
			"code":         p.Code,
			"markup_kind":  p.MarkupKind,
			"markup_value": p.MarkupValue,
			"status":       p.Status,
		})
	}
}

func partnerStatsHandler(partners repository.PartnersRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, errResp := loadPartner(c, partners)
		if p == nil {
			return errResp
		}
		return ok(c, map[string]any{
			"sales_count":  p.SalesCount,
			"sales_volume": p.SalesVolume,
			"earned":       p.Earned,
			"pending":      p.Pending,
			"withdrawn":    p.Withdrawn,
		})
	}
}

// partnerPricesHandler shows the catalog with the partner's own markup
// applied, i.e. what their referred buyers will pay.
func partnerPricesHandler(partners repository.PartnersRepository, cat *catalog.Catalog) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, errResp := loadPartner(c, partners)
		if p == nil {
			return errResp
		}

		entries := cat.List()
		out := make([]map[string]any, 0, len(entries))
		for _, e := range entries {
			final, comm := commission.Quote(e.Price, p)
			out = append(out, map[string]any{
				"code":       e.Code,
				"service":    e.Service,
				"country":    e.Country,
				"base":       e.Price,
				"final":      final,
				"commission": comm,
			})
		}
		return ok(c, map[string]any{"prices": out})
	}
}

func partnerSalesHandler(partners repository.PartnersRepository, commissions repository.CommissionsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, errResp := loadPartner(c, partners)
		if p == nil {
			return errResp
		}
		limit, offset := pageParams(c)
		rows, err := commissions.ListByPartner(c.Request().Context(), p.ID, limit, offset)
		if err != nil {
			log.Errorf("commission list failed: %v", err)
			return fail(c, http.StatusInternalServerError, "db error")
		}
		return ok(c, map[string]any{"count": len(rows), "results": rows})
	}
}

type withdrawReq struct {
	Amount int64 `json:"amount"`
}

// partnerWithdrawHandler moves pending commission into a withdrawal request.
func partnerWithdrawHandler(db *sqlx.DB, partners repository.PartnersRepository, withdrawals repository.WithdrawalsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, errResp := loadPartner(c, partners)
		if p == nil {
			return errResp
		}

		var req withdrawReq
		if err := c.Bind(&req); err != nil {
			return fail(c, http.StatusBadRequest, "bad request")
		}
		if req.Amount <= 0 {
			return fail(c, http.StatusBadRequest, "amount must be positive")
		}

		tx, err := db.BeginTxx(c.Request().Context(), nil)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "db error")
		}
		defer func() { _ = tx.Rollback() }()

		if err := partners.DebitPending(c.Request().Context(), tx, p.ID, req.Amount); err != nil {
			return failErr(c, err)
		}
		id, err := withdrawals.Insert(c.Request().Context(), tx, p.ID, req.Amount)
		if err != nil {
			log.Errorf("withdrawal insert failed: %v", err)
			return fail(c, http.StatusInternalServerError, "db error")
		}
		if err := tx.Commit(); err != nil {
			return fail(c, http.StatusInternalServerError, "db error")
		}

		return ok(c, map[string]any{"withdrawal_id": id, "amount": req.Amount, "status": "requested"})
	}
}
