package handler

import (
	"context"
	"digital-shop/internal/cart"
	"digital-shop/internal/dto"
	"digital-shop/internal/middleware"
	"digital-shop/internal/model"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type productCatalog interface {
	cart.Catalog
	FindByID(ctx context.Context, productID uint) (*model.Product, error)
}

type CartHandler struct {
	catalog productCatalog
}

func NewCartHandler(catalog productCatalog) *CartHandler {
	return &CartHandler{
		catalog: catalog,
	}
}

func (h *CartHandler) GetCart(c echo.Context) error {
	return h.render(c, middleware.Cart(c))
}

func (h *CartHandler) AddItem(c echo.Context) error {
	var req dto.CartItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	product, err := h.findProduct(c, req.ProductID)
	if err != nil {
		return err
	}

	sessionCart := middleware.Cart(c)
	if err := sessionCart.Add(product, req.Quantity, req.Override); err != nil {
		return toHTTPError(err)
	}
	return h.render(c, sessionCart)
}

func (h *CartHandler) UpdateItem(c echo.Context) error {
	productID, err := parseID(c, "product_id")
	if err != nil {
		return err
	}

	var req dto.UpdateCartItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	product, err := h.findProduct(c, productID)
	if err != nil {
		return err
	}

	sessionCart := middleware.Cart(c)
	if err := sessionCart.Update(product, req.Quantity); err != nil {
		return toHTTPError(err)
	}
	return h.render(c, sessionCart)
}

func (h *CartHandler) RemoveItem(c echo.Context) error {
	productID, err := parseID(c, "product_id")
	if err != nil {
		return err
	}

	sessionCart := middleware.Cart(c)
	sessionCart.Remove(productID)
	return h.render(c, sessionCart)
}

func (h *CartHandler) ClearCart(c echo.Context) error {
	sessionCart := middleware.Cart(c)
	sessionCart.Clear()
	return h.render(c, sessionCart)
}

func (h *CartHandler) findProduct(c echo.Context, productID uint) (*model.Product, error) {
	product, err := h.catalog.FindByID(c.Request().Context(), productID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, echo.NewHTTPError(http.StatusNotFound, "product not found")
	}
	return product, err
}

func (h *CartHandler) render(c echo.Context, sessionCart *cart.Cart) error {
	resp := dto.CartResponse{
		Items:     []dto.CartLine{},
		ItemCount: sessionCart.Len(),
		Total:     sessionCart.Total().StringFixed(2),
	}
	for line, err := range sessionCart.Lines(c.Request().Context(), h.catalog) {
		if err != nil {
			return err
		}
		resp.Items = append(resp.Items, dto.CartLine{
			ProductID: line.Product.ID,
			Title:     line.Product.Title,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.StringFixed(2),
			LineTotal: line.LineTotal.StringFixed(2),
		})
	}

	return c.JSON(http.StatusOK, resp)
}

func parseID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return uint(id), nil
}
