package notify

import (
	"context"
	"digital-shop/internal/logkey"
	"digital-shop/internal/model"
	"fmt"
	"log/slog"
	"strings"
)

const (
	KindOrderConfirmation = "order_confirmation"
	KindDownloadLink      = "download_link"
)

// Notifier delivers buyer-facing messages. Implementations must be safe for
// concurrent use.
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, order *model.Order) error
	SendDownloadLink(ctx context.Context, order *model.Order, item *model.OrderItem) error
}

// Message is the payload handed to the mailer.
type Message struct {
	Kind        string `json:"kind"`
	OrderID     string `json:"order_id"`
	Email       string `json:"email"`
	TotalMinor  int64  `json:"total_minor,omitempty"`
	OrderItemID uint   `json:"order_item_id,omitempty"`
	ProductID   uint   `json:"product_id,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
}

func confirmationMessage(order *model.Order) Message {
	return Message{
		Kind:       KindOrderConfirmation,
		OrderID:    order.OrderID,
		Email:      order.Email,
		TotalMinor: order.TotalMinor(),
	}
}

func downloadLinkMessage(siteURL string, order *model.Order, item *model.OrderItem) Message {
	return Message{
		Kind:        KindDownloadLink,
		OrderID:     order.OrderID,
		Email:       order.Email,
		OrderItemID: item.ID,
		ProductID:   item.ProductID,
		DownloadURL: fmt.Sprintf("%s/api/download/%d", strings.TrimRight(siteURL, "/"), item.ID),
	}
}

// LogNotifier writes messages to the structured log. Used in development.
type LogNotifier struct {
	siteURL string
}

func NewLogNotifier(siteURL string) *LogNotifier {
	return &LogNotifier{siteURL: siteURL}
}

func (n *LogNotifier) SendOrderConfirmation(ctx context.Context, order *model.Order) error {
	msg := confirmationMessage(order)
	slog.InfoContext(ctx, "order confirmation",
		slog.String(logkey.OrderID, msg.OrderID),
		slog.String("email", msg.Email),
		slog.Int64("total_minor", msg.TotalMinor))
	return nil
}

func (n *LogNotifier) SendDownloadLink(ctx context.Context, order *model.Order, item *model.OrderItem) error {
	msg := downloadLinkMessage(n.siteURL, order, item)
	slog.InfoContext(ctx, "download link",
		slog.String(logkey.OrderID, msg.OrderID),
		slog.Uint64(logkey.OrderItemID, uint64(msg.OrderItemID)),
		slog.String("download_url", msg.DownloadURL))
	return nil
}
