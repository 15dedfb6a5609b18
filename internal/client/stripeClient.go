package client

import (
	"context"
	"digital-shop/internal/config"
	"digital-shop/internal/model"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v81"
	stripeclient "github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
)

const stripeSignatureHeader = "Stripe-Signature"

type stripeClientImpl struct {
	api           *stripeclient.API
	webhookSecret string
}

func NewStripeClient(cfg *config.Stripe, httpClient *http.Client) PaymentGateway {
	return &stripeClientImpl{
		api:           stripeclient.New(cfg.SecretKey, stripe.NewBackends(httpClient)),
		webhookSecret: cfg.WebhookSecret,
	}
}

func (c *stripeClientImpl) Provider() string {
	return "stripe"
}

func (c *stripeClientImpl) CreateIntent(ctx context.Context, req *model.IntentRequest) (*model.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.AmountMinor),
		Currency:           stripe.String(strings.ToLower(req.Currency)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	if req.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(req.ReceiptEmail)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create payment intent: %w", err)
	}

	return toPaymentIntent(pi), nil
}

func (c *stripeClientImpl) GetIntent(ctx context.Context, intentID string) (*model.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := c.api.PaymentIntents.Get(intentID, params)
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && (stripeErr.Code == stripe.ErrorCodeResourceMissing || stripeErr.HTTPStatusCode == http.StatusNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrIntentNotFound, intentID)
	}
	if err != nil {
		return nil, fmt.Errorf("stripe retrieve payment intent: %w", err)
	}

	return toPaymentIntent(pi), nil
}

func (c *stripeClientImpl) VerifyWebhook(ctx context.Context, headers http.Header, body []byte) (*model.GatewayEvent, error) {
	event, err := webhook.ConstructEventWithOptions(
		body,
		headers.Get(stripeSignatureHeader),
		c.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	result := &model.GatewayEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}
	if !strings.HasPrefix(result.Type, "payment_intent.") {
		return result, nil
	}

	if event.Data == nil {
		return nil, ErrMalformedEvent
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	result.Intent = *toPaymentIntent(&pi)

	return result, nil
}

func toPaymentIntent(pi *stripe.PaymentIntent) *model.PaymentIntent {
	return &model.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
		ReceiptEmail: pi.ReceiptEmail,
	}
}
