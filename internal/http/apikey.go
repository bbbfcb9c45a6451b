package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/numgate/numgate/internal/http/middleware"
	"github.com/numgate/numgate/internal/model"
	"github.com/numgate/numgate/internal/repository"
	"github.com/numgate/numgate/internal/util"
	"github.com/redis/go-redis/v9"
)

type changeKeyReq struct {
	Reason string `json:"reason"`
}

// changeAPIKeyHandler rotates the account credential. The old key stops
// resolving the moment the transaction commits. Rotation is budgeted per
// account per hour; the audit row keeps only truncated prefixes.
func changeAPIKeyHandler(db *sqlx.DB, accounts repository.AccountsRepository, audit repository.KeyAuditRepository, rds *redis.Client, maxPerHour int) echo.HandlerFunc {
	return func(c echo.Context) error {
		acct, okAuth := middleware.AccountFromCtx(c)
		if !okAuth {
			return fail(c, http.StatusUnauthorized, "unauthenticated")
		}

		var req changeKeyReq
		_ = c.Bind(&req) // reason is optional
		req.Reason = strings.TrimSpace(req.Reason)
		if len(req.Reason) > 200 {
			return fail(c, http.StatusBadRequest, "reason too long")
		}
		if req.Reason == "" {
			req.Reason = "user requested"
		}

		if !middleware.AllowRotation(c.Request().Context(), rds, acct.ID, maxPerHour, time.Hour) {
			return fail(c, http.StatusTooManyRequests, "rotation limit reached")
		}

		newKey := util.NewAPIKey()

		tx, err := db.BeginTxx(c.Request().Context(), nil)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "db error")
		}
		defer func() { _ = tx.Rollback() }()

		if err := accounts.RotateAPIKey(c.Request().Context(), tx, acct.ID, newKey); err != nil {
			log.Errorf("rotate key failed: %v", err)
			return fail(c, http.StatusInternalServerError, "db error")
		}
		entry := &model.KeyAuditEntry{
			AccountID: acct.ID,
			OldPrefix: util.KeyPrefix(acct.APIKey),
			NewPrefix: util.KeyPrefix(newKey),
			IP:        c.RealIP(),
			Reason:    req.Reason,
		}
		if err := audit.Insert(c.Request().Context(), tx, entry); err != nil {
			log.Errorf("key audit failed: %v", err)
			return fail(c, http.StatusInternalServerError, "db error")
		}
		if err := tx.Commit(); err != nil {
			return fail(c, http.StatusInternalServerError, "db error")
		}

		return ok(c, map[string]any{"api_key": newKey})
	}
}
