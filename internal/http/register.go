package http

import (
	"database/sql"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/numgate/numgate/internal/identity"
	"github.com/numgate/numgate/internal/model"
	"github.com/numgate/numgate/internal/repository"
	"github.com/numgate/numgate/internal/util"
)

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Ref      string `json:"ref"` // optional partner code
}

// registerHandler creates the upstream identity, then the local account with
// its initial API credential. No auth.
func registerHandler(idp *identity.Client, accounts repository.AccountsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req registerReq
		if err := c.Bind(&req); err != nil {
			return fail(c, http.StatusBadRequest, "bad request")
		}

		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		req.Name = strings.TrimSpace(req.Name)
		req.Ref = strings.TrimSpace(req.Ref)

		if req.Email == "" || !strings.Contains(req.Email, "@") {
			return fail(c, http.StatusBadRequest, "valid email is required")
		}
		if len(req.Password) < 8 {
			return fail(c, http.StatusBadRequest, "password must be at least 8 characters")
		}
		if req.Name == "" || len(req.Name) > 100 {
			return fail(c, http.StatusBadRequest, "name is required")
		}

		sub, err := idp.CreateUser(c.Request().Context(), req.Email, req.Password, req.Name)
		if err != nil {
			return failErr(c, err)
		}

		acct := &model.Account{
			IdentityUID: sub.UID,
			Name:        req.Name,
			Email:       req.Email,
			APIKey:      util.NewAPIKey(),
		}
		if req.Ref != "" {
			acct.Referrer = sql.NullString{String: req.Ref, Valid: true}
		}

		id, err := accounts.Insert(c.Request().Context(), acct)
		if err != nil {
			log.Errorf("account insert failed: %v", err)
			return fail(c, http.StatusInternalServerError, "db error")
		}

		return ok(c, map[string]any{
			"account_id": id,
			"api_key":    acct.APIKey,
		})
	}
}

type resetReq struct {
	Email string `json:"email"`
}

// resetPasswordHandler asks the identity provider for a reset link. The
// response never reveals whether the email exists.
func resetPasswordHandler(idp *identity.Client) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req resetReq
		if err := c.Bind(&req); err != nil {
			return fail(c, http.StatusBadRequest, "bad request")
		}
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		if req.Email == "" {
			return fail(c, http.StatusBadRequest, "email is required")
		}

		if _, err := idp.ResetLink(c.Request().Context(), req.Email); err != nil {
			log.Errorf("reset link failed: %v", err)
		}
		return ok(c, map[string]any{"status": "sent"})
	}
}
