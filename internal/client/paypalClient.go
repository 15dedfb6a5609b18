package client

import (
	"bytes"
	"context"
	"digital-shop/internal/config"
	"digital-shop/internal/model"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	paypalOrderCreated   = "CREATED"
	paypalOrderApproved  = "APPROVED"
	paypalOrderCompleted = "COMPLETED"

	paypalCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	paypalCapturePending   = "PAYMENT.CAPTURE.PENDING"
	paypalCaptureDenied    = "PAYMENT.CAPTURE.DENIED"
)

type paypalClientImpl struct {
	httpClient         *http.Client
	baseApiURL         string
	paypalClientID     string
	paypalClientSecret string
	webhookID          string
	returnURL          string
	cancelURL          string
}

func NewPaypalClient(paypalCfg *config.Paypal, httpClient *http.Client) PaymentGateway {
	return &paypalClientImpl{
		httpClient:         httpClient,
		baseApiURL:         strings.TrimRight(paypalCfg.BaseApiURL, "/"),
		paypalClientID:     paypalCfg.ClientID,
		paypalClientSecret: paypalCfg.ClientSecret,
		webhookID:          paypalCfg.WebhookID,
		returnURL:          paypalCfg.ReturnURL,
		cancelURL:          paypalCfg.CancelURL,
	}
}

func (c *paypalClientImpl) Provider() string {
	return "paypal"
}

func (c *paypalClientImpl) getAccessToken(ctx context.Context) (string, error) {
	auth := base64.StdEncoding.EncodeToString(
		[]byte(c.paypalClientID + ":" + c.paypalClientSecret),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseApiURL+"/v1/oauth2/token",
		bytes.NewBufferString("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("paypal token error %d: %s", resp.StatusCode, string(b))
	}

	var res struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	return res.AccessToken, nil
}

// do sends an authenticated JSON request and decodes a 2xx response into out.
func (c *paypalClientImpl) do(ctx context.Context, method, path string, payload any, out any) error {
	accessToken, err := c.getAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("get paypal access token: %w", err)
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal req payload: %w", err)
		}
		body = bytes.NewBuffer(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseApiURL+path, body)
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paypal request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && strings.HasPrefix(path, "/v2/checkout/orders/") {
		return fmt.Errorf("%w: %s", ErrIntentNotFound, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("paypal error %d: %s", resp.StatusCode, string(b))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode paypal response: %w", err)
	}
	return nil
}

// CreateIntent creates a PayPal order. The approve URL is returned as the
// client secret since PayPal buyers confirm by redirect.
func (c *paypalClientImpl) CreateIntent(ctx context.Context, req *model.IntentRequest) (*model.PaymentIntent, error) {
	customID, err := json.Marshal(req.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []model.PaypalPurchaseUnit{
			{
				CustomID: string(customID),
				Amount: model.PaypalAmount{
					Currency: strings.ToUpper(req.Currency),
					Value:    decimal.New(req.AmountMinor, -2).StringFixed(2),
				},
			},
		},
		"application_context": map[string]string{
			"return_url": c.returnURL,
			"cancel_url": c.cancelURL,
		},
	}

	var result model.PaypalOrder
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", payload, &result); err != nil {
		return nil, err
	}

	intent := c.toPaymentIntent(&result)
	intent.ClientSecret = extractApproveURL(result.Links)
	intent.AmountMinor = req.AmountMinor
	intent.Currency = strings.ToLower(req.Currency)
	intent.Metadata = req.Metadata
	intent.ReceiptEmail = req.ReceiptEmail
	return intent, nil
}

// GetIntent fetches the order and captures it when the buyer has approved.
func (c *paypalClientImpl) GetIntent(ctx context.Context, intentID string) (*model.PaymentIntent, error) {
	var order model.PaypalOrder
	if err := c.do(ctx, http.MethodGet, "/v2/checkout/orders/"+intentID, nil, &order); err != nil {
		return nil, err
	}

	if order.Status == paypalOrderApproved {
		var captured model.PaypalOrder
		path := fmt.Sprintf("/v2/checkout/orders/%s/capture", intentID)
		if err := c.do(ctx, http.MethodPost, path, nil, &captured); err != nil {
			return nil, err
		}
		if len(captured.PurchaseUnits) == 0 {
			captured.PurchaseUnits = order.PurchaseUnits
		}
		order = captured
	}

	return c.toPaymentIntent(&order), nil
}

func (c *paypalClientImpl) VerifyWebhook(ctx context.Context, headers http.Header, body []byte) (*model.GatewayEvent, error) {
	if headers.Get("Paypal-Transmission-Sig") == "" {
		return nil, fmt.Errorf("%w: missing transmission signature", ErrInvalidSignature)
	}

	payload := map[string]any{
		"auth_algo":         headers.Get("Paypal-Auth-Algo"),
		"cert_url":          headers.Get("Paypal-Cert-Url"),
		"transmission_id":   headers.Get("Paypal-Transmission-Id"),
		"transmission_sig":  headers.Get("Paypal-Transmission-Sig"),
		"transmission_time": headers.Get("Paypal-Transmission-Time"),
		"webhook_id":        c.webhookID,
		"webhook_event":     json.RawMessage(body),
	}

	var verification struct {
		Status string `json:"verification_status"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", payload, &verification); err != nil {
		return nil, fmt.Errorf("verify webhook signature: %w", err)
	}
	if verification.Status != "SUCCESS" {
		return nil, fmt.Errorf("%w: status %s", ErrInvalidSignature, verification.Status)
	}

	var event model.PaypalWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	result := &model.GatewayEvent{ID: event.ID, Type: event.EventType}

	var status string
	switch event.EventType {
	case paypalCaptureCompleted:
		result.Type, status = model.EventPaymentSucceeded, model.IntentStatusSucceeded
	case paypalCapturePending:
		result.Type, status = model.EventPaymentProcessing, model.IntentStatusProcessing
	case paypalCaptureDenied:
		result.Type, status = model.EventPaymentFailed, model.IntentStatusFailed
	default:
		return result, nil
	}

	orderID := event.Resource.SupplementaryData.RelatedIDs.OrderID
	if orderID == "" {
		return nil, fmt.Errorf("%w: capture event without order id", ErrMalformedEvent)
	}
	result.Intent = model.PaymentIntent{
		ID:          orderID,
		Status:      status,
		AmountMinor: toMinor(event.Resource.Amount.Value),
		Currency:    strings.ToLower(event.Resource.Amount.Currency),
		Metadata:    decodeCustomID(event.Resource.CustomID),
	}

	return result, nil
}

func (c *paypalClientImpl) toPaymentIntent(order *model.PaypalOrder) *model.PaymentIntent {
	intent := &model.PaymentIntent{
		ID:           order.ID,
		Status:       paypalIntentStatus(order.Status),
		ReceiptEmail: order.Payer.Email,
	}
	if len(order.PurchaseUnits) > 0 {
		unit := order.PurchaseUnits[0]
		intent.AmountMinor = toMinor(unit.Amount.Value)
		intent.Currency = strings.ToLower(unit.Amount.Currency)
		intent.Metadata = decodeCustomID(unit.CustomID)
		if unit.Payments != nil && len(unit.Payments.Captures) > 0 {
			capture := unit.Payments.Captures[0]
			if intent.AmountMinor == 0 {
				intent.AmountMinor = toMinor(capture.Amount.Value)
				intent.Currency = strings.ToLower(capture.Amount.Currency)
			}
			if intent.Metadata == nil {
				intent.Metadata = decodeCustomID(capture.CustomID)
			}
		}
	}
	return intent
}

func paypalIntentStatus(status string) string {
	switch status {
	case paypalOrderCompleted:
		return model.IntentStatusSucceeded
	case paypalOrderApproved:
		return model.IntentStatusProcessing
	case paypalOrderCreated, "PAYER_ACTION_REQUIRED":
		return "requires_action"
	case "VOIDED":
		return model.IntentStatusFailed
	default:
		return strings.ToLower(status)
	}
}

func toMinor(value string) int64 {
	if value == "" {
		return 0
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0
	}
	return d.Shift(2).Round(0).IntPart()
}

func decodeCustomID(customID string) map[string]string {
	if customID == "" {
		return nil
	}
	var metadata map[string]string
	if err := json.Unmarshal([]byte(customID), &metadata); err != nil {
		return nil
	}
	return metadata
}

func extractApproveURL(links []model.PaypalLink) string {
	for _, link := range links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			return link.Href
		}
	}
	return ""
}
