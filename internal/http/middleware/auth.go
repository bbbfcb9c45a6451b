package middleware

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"
	"github.com/numgate/numgate/internal/identity"
	"github.com/numgate/numgate/internal/model"
	"github.com/numgate/numgate/internal/repository"
	"github.com/numgate/numgate/internal/util"
)

const (
	ctxAccount    = "account"
	ctxAuthMethod = "auth_method"

	AuthMethodAPIKey = "api_key"
	AuthMethodBearer = "bearer"
)

// AccountFromCtx extracts the authenticated account set by Auth.
func AccountFromCtx(c echo.Context) (*model.Account, bool) {
	a, ok := c.Get(ctxAccount).(*model.Account)
	return a, ok
}

// AuthMethodFromCtx reports which credential path authenticated the request.
func AuthMethodFromCtx(c echo.Context) string {
	m, _ := c.Get(ctxAuthMethod).(string)
	return m
}

// Auth authenticates via either an API key (api_key query param or X-API-Key
// header) or a bearer identity token. The key path takes precedence when both
// are present, so behavior is deterministic. Keys that do not match the
// service's format are rejected before any lookup.
func Auth(accounts repository.AccountsRepository, verifier identity.TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := strings.TrimSpace(c.QueryParam("api_key"))
			if key == "" {
				key = strings.TrimSpace(c.Request().Header.Get("X-API-Key"))
			}

			if key != "" {
				if !util.ValidAPIKeyFormat(key) {
					return c.JSON(http.StatusUnauthorized, map[string]any{"success": false, "error": "invalid api key"})
				}
				acct, err := accounts.GetByAPIKey(c.Request().Context(), key)
				if err != nil {
					return c.JSON(http.StatusInternalServerError, map[string]any{"success": false, "error": "auth error"})
				}
				if acct == nil || acct.Status != "active" {
					return c.JSON(http.StatusUnauthorized, map[string]any{"success": false, "error": "invalid api key"})
				}
				c.Set(ctxAccount, acct)
				c.Set(ctxAuthMethod, AuthMethodAPIKey)
				return next(c)
			}

			authz := strings.TrimSpace(c.Request().Header.Get("Authorization"))
			token, found := strings.CutPrefix(authz, "Bearer ")
			if !found || token == "" {
				return c.JSON(http.StatusUnauthorized, map[string]any{"success": false, "error": "missing credentials"})
			}

			sub, err := verifier.Verify(c.Request().Context(), token)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]any{"success": false, "error": "invalid token"})
			}
			acct, err := accounts.GetByIdentityUID(c.Request().Context(), sub.UID)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, map[string]any{"success": false, "error": "auth error"})
			}
			if acct == nil || acct.Status != "active" {
				return c.JSON(http.StatusUnauthorized, map[string]any{"success": false, "error": "unknown account"})
			}
			c.Set(ctxAccount, acct)
			c.Set(ctxAuthMethod, AuthMethodBearer)
			return next(c)
		}
	}
}

// RequireBearer restricts a route group to bearer-authenticated sessions
// (partner and admin surfaces).
func RequireBearer() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if AuthMethodFromCtx(c) != AuthMethodBearer {
				return c.JSON(http.StatusForbidden, map[string]any{"success": false, "error": "bearer token required"})
			}
			return next(c)
		}
	}
}

// RequireAdmin checks the account's stored role. Admin is data on the
// account, not a hardcoded identity.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			acct, ok := AccountFromCtx(c)
			if !ok || !acct.IsAdmin() {
				return c.JSON(http.StatusForbidden, map[string]any{"success": false, "error": "admin only"})
			}
			return next(c)
		}
	}
}
