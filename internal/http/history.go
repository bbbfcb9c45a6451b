package http

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v4"
	"github.com/numgate/numgate/internal/http/middleware"
	"github.com/numgate/numgate/internal/model"
	"github.com/numgate/numgate/internal/repository"
)

func pageParams(c echo.Context) (limit, offset int) {
	limit = 50
	offset = 0
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// getHistoryHandler lists past and current rentals for the account, newest
// first. Commission breakdown is withheld from the buyer-facing rows.
func getHistoryHandler(history repository.HistoryRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		acct, okAuth := middleware.AccountFromCtx(c)
		if !okAuth {
			return fail(c, http.StatusUnauthorized, "unauthenticated")
		}

		limit, offset := pageParams(c)
		rows, err := history.ListByAccount(c.Request().Context(), acct.ID, limit, offset)
		if err != nil {
			c.Logger().Errorf("history list failed: %v", err)
			return fail(c, http.StatusInternalServerError, "query failed")
		}

		out := make([]map[string]any, 0, len(rows))
		for _, h := range rows {
			row := map[string]any{
				"id":         h.ID,
				"txn_id":     h.TxnID,
				"phone":      h.Phone,
				"service":    h.Service,
				"price":      h.FinalPrice,
				"status":     h.Status,
				"refund":     h.Refund,
				"created_at": h.CreatedAt,
			}
			if h.Status == model.RentalSuccess && h.OTP.Valid {
				row["otp"] = h.OTP.String
			}
			out = append(out, row)
		}

		return ok(c, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(out),
			"results": out,
		})
	}
}
