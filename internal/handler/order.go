package handler

import (
	"digital-shop/internal/middleware"
	"digital-shop/internal/service"
	"net/http"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	purchaseService service.PurchaseService
}

func NewOrderHandler(purchaseService service.PurchaseService) *OrderHandler {
	return &OrderHandler{
		purchaseService: purchaseService,
	}
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()

	orders, err := h.purchaseService.ListOrders(ctx, middleware.Buyer(c).UserID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()

	order, err := h.purchaseService.GetOrder(ctx, middleware.Buyer(c), c.Param("order_id"))
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) Library(c echo.Context) error {
	ctx := c.Request().Context()

	library, err := h.purchaseService.Library(ctx, middleware.Buyer(c).UserID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, library)
}

func (h *OrderHandler) ListProducts(c echo.Context) error {
	ctx := c.Request().Context()

	products, err := h.purchaseService.Catalog(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, products)
}
