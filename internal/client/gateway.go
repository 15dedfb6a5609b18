package client

import (
	"context"
	"digital-shop/internal/config"
	"digital-shop/internal/model"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed webhook event")
	ErrIntentNotFound   = errors.New("payment intent not found")
)

// PaymentGateway is the part of a hosted payment provider the shop relies on.
// Webhook deliveries may arrive zero or more times and in any order.
type PaymentGateway interface {
	Provider() string
	CreateIntent(ctx context.Context, req *model.IntentRequest) (*model.PaymentIntent, error)
	GetIntent(ctx context.Context, intentID string) (*model.PaymentIntent, error)
	VerifyWebhook(ctx context.Context, headers http.Header, body []byte) (*model.GatewayEvent, error)
}

func NewPaymentGateway(cfg *config.Config) (PaymentGateway, error) {
	httpClient := &http.Client{
		Timeout: cfg.Shop.GatewayTimeout + 5*time.Second,
	}

	switch cfg.PaymentProvider {
	case "stripe", "":
		return NewStripeClient(&cfg.Stripe, httpClient), nil
	case "paypal":
		return NewPaypalClient(&cfg.Paypal, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.PaymentProvider)
	}
}
