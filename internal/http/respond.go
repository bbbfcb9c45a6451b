package http

import (
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/numgate/numgate/internal/identity"
	"github.com/numgate/numgate/internal/provider"
	"github.com/numgate/numgate/internal/repository"
	ledgersvc "github.com/numgate/numgate/internal/service/ledger"
	"github.com/numgate/numgate/internal/service/rental"
)

// Every response carries a success flag; failures carry an error message and
// never a stack trace or credential.

func ok(c echo.Context, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["success"] = true
	return c.JSON(http.StatusOK, payload)
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]any{"success": false, "error": msg})
}

// failErr maps the service error taxonomy onto HTTP statuses. Retryable
// provider failures (502/504) stay distinct from terminal business failures.
func failErr(c echo.Context, err error) error {
	var cc *rental.CannotCancelError
	if errors.As(err, &cc) {
		return c.JSON(http.StatusConflict, map[string]any{
			"success": false,
			"error":   "otp already received",
			"otp":     cc.OTP,
		})
	}

	switch {
	case errors.Is(err, identity.ErrUnauthenticated):
		return fail(c, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, ledgersvc.ErrInsufficientFunds):
		return fail(c, http.StatusPaymentRequired, "insufficient funds")
	case errors.Is(err, rental.ErrInvalidService):
		return fail(c, http.StatusBadRequest, "invalid service")
	case errors.Is(err, rental.ErrNotFound):
		return fail(c, http.StatusNotFound, "rental not found")
	case errors.Is(err, rental.ErrRentalInProgress):
		return fail(c, http.StatusConflict, "rental in progress")
	case errors.Is(err, rental.ErrRentalExpired):
		return fail(c, http.StatusGone, "time expired")
	case errors.Is(err, identity.ErrDuplicate), errors.Is(err, repository.ErrPartnerExists):
		return fail(c, http.StatusConflict, "already exists")
	case errors.Is(err, repository.ErrInsufficientPending):
		return fail(c, http.StatusPaymentRequired, "insufficient pending balance")
	case errors.Is(err, provider.ErrTimeout):
		return fail(c, http.StatusGatewayTimeout, "provider timeout, retry")
	case errors.Is(err, provider.ErrUnavailable):
		return fail(c, http.StatusBadGateway, "provider unavailable, retry")
	}

	var rej *provider.RejectError
	if errors.As(err, &rej) {
		// surface the provider's own refusal message
		return fail(c, http.StatusBadGateway, rej.Message)
	}
	var mal *provider.MalformedError
	if errors.As(err, &mal) {
		return fail(c, http.StatusBadGateway, "provider error")
	}

	log.Errorf("internal error: %v", err)
	return fail(c, http.StatusInternalServerError, "internal error")
}
