package service

import (
	"context"
	"digital-shop/internal/dto"
	"digital-shop/internal/logkey"
	"digital-shop/internal/metrics"
	"digital-shop/internal/model"
	"digital-shop/internal/repository"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"gorm.io/gorm"
)

type DownloadService interface {
	Authorize(ctx context.Context, requester *model.Buyer, orderItemID uint) (*dto.Capability, error)
}

type downloadServiceImpl struct {
	orderRepo repository.OrderRepository
	mediaRoot string
	metrics   *metrics.Metrics
}

func NewDownloadService(orderRepo repository.OrderRepository, mediaRoot string, m *metrics.Metrics) DownloadService {
	return &downloadServiceImpl{
		orderRepo: orderRepo,
		mediaRoot: mediaRoot,
		metrics:   m,
	}
}

// Authorize checks ownership and the file before a metered download is
// counted, so a refused or broken request never costs the buyer a download.
func (s *downloadServiceImpl) Authorize(ctx context.Context, requester *model.Buyer, orderItemID uint) (*dto.Capability, error) {
	capability, err := s.authorize(ctx, requester, orderItemID)
	s.metrics.Downloads.WithLabelValues(downloadOutcome(err)).Inc()
	return capability, err
}

func (s *downloadServiceImpl) authorize(ctx context.Context, requester *model.Buyer, orderItemID uint) (*dto.Capability, error) {
	item, err := s.orderRepo.GetOrderItem(ctx, orderItemID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order item: %w", err)
	}

	staff := requester != nil && requester.Staff
	if !staff && (requester.IsGuest() || !item.Order.OwnedBy(requester.UserID)) {
		return nil, ErrNotOwner
	}
	if !item.Order.Paid {
		return nil, ErrPaymentNotSucceeded
	}

	path, ok := s.resolve(item.Product)
	if !ok {
		slog.WarnContext(ctx, "download file missing",
			slog.Uint64(logkey.OrderItemID, uint64(item.ID)),
			slog.Uint64(logkey.ProductID, uint64(item.ProductID)))
		return nil, ErrFileUnavailable
	}

	remaining := -1
	if item.Product.IsMetered() {
		left, consumed, err := s.orderRepo.ConsumeDownload(ctx, item.ID)
		if err != nil {
			return nil, fmt.Errorf("consume download: %w", err)
		}
		if !consumed {
			return nil, ErrDownloadLimitExceeded
		}
		remaining = left
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &dto.Capability{
		Path:        path,
		Filename:    filepath.Base(path),
		ContentType: contentType,
		Remaining:   remaining,
	}, nil
}

// resolve maps the product file to a regular file under the media root.
func (s *downloadServiceImpl) resolve(product *model.Product) (string, bool) {
	if product == nil || product.FilePath == "" {
		return "", false
	}

	path := filepath.Join(s.mediaRoot, filepath.Clean("/"+product.FilePath))
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return path, true
}

func downloadOutcome(err error) string {
	switch {
	case err == nil:
		return "granted"
	case errors.Is(err, ErrDownloadLimitExceeded):
		return "limit_exceeded"
	case errors.Is(err, ErrNotOwner):
		return "forbidden"
	case errors.Is(err, ErrOrderItemNotFound), errors.Is(err, ErrFileUnavailable):
		return "not_found"
	default:
		return "error"
	}
}
