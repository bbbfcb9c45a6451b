package http

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"
	"github.com/numgate/numgate/internal/catalog"
	"github.com/numgate/numgate/internal/http/middleware"
	"github.com/numgate/numgate/internal/service/rental"
)

// servicesHandler lists the sellable catalog. Public, no auth.
func servicesHandler(cat *catalog.Catalog) echo.HandlerFunc {
	return func(c echo.Context) error {
		return ok(c, map[string]any{"services": cat.List()})
	}
}

func balanceHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		acct, okAuth := middleware.AccountFromCtx(c)
		if !okAuth {
			return fail(c, http.StatusUnauthorized, "unauthenticated")
		}
		return ok(c, map[string]any{"balance": acct.Balance})
	}
}

// getNumberHandler acquires a rental. The response deliberately omits the raw
// commission breakdown; buyers see the final price only.
func getNumberHandler(svc *rental.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		acct, okAuth := middleware.AccountFromCtx(c)
		if !okAuth {
			return fail(c, http.StatusUnauthorized, "unauthenticated")
		}

		serviceCode := strings.TrimSpace(c.QueryParam("service"))
		if serviceCode == "" {
			return fail(c, http.StatusBadRequest, "service is required")
		}
		refCode := strings.TrimSpace(c.QueryParam("ref"))
		referer := c.Request().Header.Get("Referer")

		rent, err := svc.Acquire(c.Request().Context(), acct, serviceCode, refCode, referer)
		if err != nil {
			return failErr(c, err)
		}

		return ok(c, map[string]any{
			"txn_id":      rent.TxnID,
			"phone":       rent.Phone,
			"service":     rent.Service,
			"price":       rent.FinalPrice,
			"ttl_seconds": int64(rent.ExpiresAt.Sub(rent.CreatedAt).Seconds()),
		})
	}
}

func getOtpHandler(svc *rental.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		acct, okAuth := middleware.AccountFromCtx(c)
		if !okAuth {
			return fail(c, http.StatusUnauthorized, "unauthenticated")
		}

		txnID := strings.TrimSpace(c.QueryParam("txn_id"))
		if txnID == "" {
			return fail(c, http.StatusBadRequest, "txn_id is required")
		}

		res, err := svc.Poll(c.Request().Context(), acct, txnID)
		if err != nil {
			return failErr(c, err)
		}

		if res.OTP != "" {
			return ok(c, map[string]any{"status": "success", "otp": res.OTP})
		}
		return ok(c, map[string]any{
			"status":            "waiting",
			"remaining_seconds": int64(res.Remaining.Seconds()),
		})
	}
}

func cancelNumberHandler(svc *rental.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		acct, okAuth := middleware.AccountFromCtx(c)
		if !okAuth {
			return fail(c, http.StatusUnauthorized, "unauthenticated")
		}

		txnID := strings.TrimSpace(c.QueryParam("txn_id"))
		if txnID == "" {
			return fail(c, http.StatusBadRequest, "txn_id is required")
		}

		refund, err := svc.Cancel(c.Request().Context(), acct, txnID)
		if err != nil {
			return failErr(c, err)
		}
		return ok(c, map[string]any{"status": "cancelled", "refund": refund})
	}
}
