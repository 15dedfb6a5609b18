package handler

import (
	"digital-shop/internal/dto"
	"digital-shop/internal/logkey"
	"digital-shop/internal/middleware"
	"digital-shop/internal/service"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

const maxWebhookBody = 65536

type CheckoutHandler struct {
	checkoutService service.CheckoutService
}

func NewCheckoutHandler(checkoutService service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
	}
}

func (h *CheckoutHandler) BeginCheckout(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CheckoutRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}

	resp, err := h.checkoutService.BeginCheckout(ctx, &service.BeginCheckoutRequest{
		SessionID: middleware.SessionID(c),
		Cart:      middleware.Cart(c),
		Buyer:     middleware.Buyer(c),
		Email:     req.Email,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, resp)
}

// ConfirmPayment handles the buyer's return from the payment page.
func (h *CheckoutHandler) ConfirmPayment(c echo.Context) error {
	ctx := c.Request().Context()

	intentID := c.QueryParam("payment_intent")
	if intentID == "" {
		intentID = c.QueryParam("intent")
	}
	if intentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing payment_intent")
	}

	order, err := h.checkoutService.ConfirmFromRedirect(ctx, intentID, middleware.Buyer(c))
	if errors.Is(err, service.ErrAuthenticationRequired) {
		return c.JSON(http.StatusAccepted, map[string]string{
			"status":  "processing",
			"message": "Payment received. Your order confirmation will be sent by email.",
		})
	}
	if err != nil {
		return toHTTPError(err)
	}

	middleware.Cart(c).Clear()
	return c.JSON(http.StatusOK, service.ToOrderDTO(order))
}

func (h *CheckoutHandler) PaymentWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	err = h.checkoutService.ConfirmFromWebhook(ctx, c.Request().Header, body)
	if errors.Is(err, service.ErrInvalidSignature) {
		return toHTTPError(err)
	}
	if err != nil {
		slog.ErrorContext(ctx, "webhook failed, provider will retry", slog.String(logkey.Error, err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "processing failed")
	}

	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}
