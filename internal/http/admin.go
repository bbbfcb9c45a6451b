package http

import (
	"net/http"
	"strings"

	"github.com/jmoiron/sqlx"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/numgate/numgate/internal/http/middleware"
	"github.com/numgate/numgate/internal/model"
	"github.com/numgate/numgate/internal/repository"
	ledgersvc "github.com/numgate/numgate/internal/service/ledger"
	"github.com/numgate/numgate/internal/util"
)

// adminStatsHandler aggregates account totals from MySQL and rental stage
// counts from the ClickHouse reporting table.
func adminStatsHandler(accounts repository.AccountsRepository, rentals repository.RentalsRepository, events repository.EventsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		count, balance, err := accounts.Totals(c.Request().Context())
		if err != nil {
			log.Errorf("account totals failed: %v", err)
			return fail(c, http.StatusInternalServerError, "db error")
		}
		active, err := rentals.CountActive(c.Request().Context())
		if err != nil {
			log.Errorf("active count failed: %v", err)
			return fail(c, http.StatusInternalServerError, "db error")
		}

		stages, err := events.CountByStage(c.Request().Context())
		if err != nil {
			// reporting store is best-effort; keep the MySQL numbers
			log.Errorf("clickhouse stage counts failed: %v", err)
			stages = map[string]int64{}
		}

		return ok(c, map[string]any{
			"accounts":       count,
			"total_balance":  balance,
			"active_rentals": active,
			"stages":         stages,
		})
	}
}

func adminUsersHandler(accounts repository.AccountsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit, offset := pageParams(c)
		rows, err := accounts.List(c.Request().Context(), limit, offset)
		if err != nil {
			log.Errorf("account list failed: %v", err)
			return fail(c, http.StatusInternalServerError, "db error")
		}

		out := make([]map[string]any, 0, len(rows))
		for _, a := range rows {
			out = append(out, map[string]any{
				"id":       a.ID,
				"name":     a.Name,
				"email":    a.Email,
				"balance":  a.Balance,
				"requests": a.Requests,
				"spent":    a.Spent,
				"role":     a.Role,
				"status":   a.Status,
			})
		}
		return ok(c, map[string]any{"count": len(out), "results": out})
	}
}

type adjustReq struct {
	AccountID int64  `json:"account_id"`
	Delta     int64  `json:"delta"`
	Reason    string `json:"reason"`
}

func adminAdjustHandler(db *sqlx.DB, ledger *ledgersvc.Service, accounts repository.AccountsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		admin, _ := middleware.AccountFromCtx(c)

		var req adjustReq
		if err := c.Bind(&req); err != nil {
			return fail(c, http.StatusBadRequest, "bad request")
		}
		req.Reason = strings.TrimSpace(req.Reason)
		if req.AccountID <= 0 || req.Delta == 0 || req.Reason == "" {
			return fail(c, http.StatusBadRequest, "account_id, delta and reason are required")
		}

		target, err := accounts.GetByID(c.Request().Context(), req.AccountID)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "db error")
		}
		if target == nil {
			return fail(c, http.StatusNotFound, "account not found")
		}
		if req.Delta < 0 && target.Balance+req.Delta < 0 {
			return fail(c, http.StatusBadRequest, "adjustment would drive balance negative")
		}

		idem := "admin-" + util.NewULID()
		tx, err := db.BeginTxx(c.Request().Context(), nil)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "db error")
		}
		defer func() { _ = tx.Rollback() }()

		if err := ledger.AdminAdjust(c.Request().Context(), tx, req.AccountID, req.Delta, req.Reason, idem); err != nil {
			log.Errorf("admin adjust by %d failed: %v", admin.ID, err)
			return fail(c, http.StatusInternalServerError, "db error")
		}
		if err := tx.Commit(); err != nil {
			return fail(c, http.StatusInternalServerError, "db error")
		}

		return ok(c, map[string]any{"account_id": req.AccountID, "delta": req.Delta})
	}
}

type partnerStatusReq struct {
	PartnerID int64  `json:"partner_id"`
	Status    string `json:"status"`
}

func adminPartnerStatusHandler(partners repository.PartnersRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req partnerStatusReq
		if err := c.Bind(&req); err != nil {
			return fail(c, http.StatusBadRequest, "bad request")
		}
		st := model.PartnerStatus(strings.ToLower(strings.TrimSpace(req.Status)))
		if req.PartnerID <= 0 || (st != model.PartnerActive && st != model.PartnerSuspended) {
			return fail(c, http.StatusBadRequest, "partner_id and status (active|suspended) are required")
		}

		p, err := partners.GetByID(c.Request().Context(), req.PartnerID)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "db error")
		}
		if p == nil {
			return fail(c, http.StatusNotFound, "partner not found")
		}

		if err := partners.SetStatus(c.Request().Context(), req.PartnerID, st); err != nil {
			log.Errorf("partner status failed: %v", err)
			return fail(c, http.StatusInternalServerError, "db error")
		}
		return ok(c, map[string]any{"partner_id": req.PartnerID, "status": st})
	}
}

type completeWithdrawalReq struct {
	WithdrawalID int64 `json:"withdrawal_id"`
}

func adminCompleteWithdrawalHandler(db *sqlx.DB, withdrawals repository.WithdrawalsRepository, partners repository.PartnersRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req completeWithdrawalReq
		if err := c.Bind(&req); err != nil || req.WithdrawalID <= 0 {
			return fail(c, http.StatusBadRequest, "withdrawal_id is required")
		}

		w, err := withdrawals.GetByID(c.Request().Context(), req.WithdrawalID)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "db error")
		}
		if w == nil {
			return fail(c, http.StatusNotFound, "withdrawal not found")
		}
		if w.Status != model.WithdrawalRequested {
			return fail(c, http.StatusConflict, "withdrawal already settled")
		}

		tx, err := db.BeginTxx(c.Request().Context(), nil)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "db error")
		}
		defer func() { _ = tx.Rollback() }()

		if err := withdrawals.MarkPaid(c.Request().Context(), tx, w.ID); err != nil {
			return fail(c, http.StatusInternalServerError, "db error")
		}
		if err := partners.MarkWithdrawn(c.Request().Context(), tx, w.PartnerID, w.Amount); err != nil {
			return fail(c, http.StatusInternalServerError, "db error")
		}
		if err := tx.Commit(); err != nil {
			return fail(c, http.StatusInternalServerError, "db error")
		}

		return ok(c, map[string]any{"withdrawal_id": w.ID, "status": "paid"})
	}
}

type purgeReq struct {
	AccountID int64 `json:"account_id"`
}

// adminPurgeHandler removes an account and everything keyed to it.
func adminPurgeHandler(db *sqlx.DB, accounts repository.AccountsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req purgeReq
		if err := c.Bind(&req); err != nil || req.AccountID <= 0 {
			return fail(c, http.StatusBadRequest, "account_id is required")
		}

		target, err := accounts.GetByID(c.Request().Context(), req.AccountID)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "db error")
		}
		if target == nil {
			return fail(c, http.StatusNotFound, "account not found")
		}

		tx, err := db.BeginTxx(c.Request().Context(), nil)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "db error")
		}
		defer func() { _ = tx.Rollback() }()

		if err := accounts.Purge(c.Request().Context(), tx, req.AccountID); err != nil {
			log.Errorf("purge failed: %v", err)
			return fail(c, http.StatusInternalServerError, "db error")
		}
		if err := tx.Commit(); err != nil {
			return fail(c, http.StatusInternalServerError, "db error")
		}

		return ok(c, map[string]any{"account_id": req.AccountID, "purged": true})
	}
}
