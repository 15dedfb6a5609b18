package handler

import (
	"digital-shop/internal/middleware"
	"digital-shop/internal/service"
	"strconv"

	"github.com/labstack/echo/v4"
)

type DownloadHandler struct {
	downloadService service.DownloadService
}

func NewDownloadHandler(downloadService service.DownloadService) *DownloadHandler {
	return &DownloadHandler{
		downloadService: downloadService,
	}
}

func (h *DownloadHandler) Download(c echo.Context) error {
	orderItemID, err := parseID(c, "order_item_id")
	if err != nil {
		return err
	}

	capability, err := h.downloadService.Authorize(c.Request().Context(), middleware.Buyer(c), orderItemID)
	if err != nil {
		return toHTTPError(err)
	}

	header := c.Response().Header()
	header.Set(echo.HeaderContentType, capability.ContentType)
	header.Set("Cache-Control", "no-store")
	if capability.Remaining >= 0 {
		header.Set("X-Downloads-Remaining", strconv.Itoa(capability.Remaining))
	}
	return c.Attachment(capability.Path, capability.Filename)
}
