package handler

import (
	"digital-shop/internal/cart"
	"digital-shop/internal/service"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// toHTTPError maps domain errors to client-facing responses. Anything
// unrecognised is returned as is and ends up as a 500.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrEmailRequired),
		errors.Is(err, service.ErrAmountTooLarge),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrInvalidPrice):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidSignature):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	case errors.Is(err, service.ErrAuthenticationRequired):
		return echo.NewHTTPError(http.StatusUnauthorized, "please log in to continue")
	case errors.Is(err, service.ErrNotOwner):
		return echo.NewHTTPError(http.StatusForbidden, "you do not have access to this item")
	case errors.Is(err, service.ErrDownloadLimitExceeded):
		return echo.NewHTTPError(http.StatusForbidden, "you have reached your download limit for this product")
	case errors.Is(err, service.ErrPaymentNotSucceeded):
		return echo.NewHTTPError(http.StatusPaymentRequired, "payment was not successful")
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrOrderItemNotFound),
		errors.Is(err, service.ErrCheckoutNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrFileUnavailable):
		return echo.NewHTTPError(http.StatusNotFound, "file not found")
	case errors.Is(err, service.ErrGatewayTimeout):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "payment provider unavailable, please try again")
	default:
		return err
	}
}
