package client

import (
	"context"
	"digital-shop/internal/config"
	"digital-shop/internal/model"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paypalFake struct {
	orderStatus  string
	verifyStatus string
	captures     atomic.Int32
	lastCreate   map[string]any
}

func (f *paypalFake) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)
		w.Write([]byte(`{"access_token":"tok"}`))
	})
	mux.HandleFunc("POST /v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastCreate))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"PP-1","status":"CREATED","links":[{"rel":"self","href":"x"},{"rel":"approve","href":"https://paypal.test/approve/PP-1"}]}`))
	})
	mux.HandleFunc("GET /v2/checkout/orders/PP-1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"PP-1","status":"` + f.orderStatus + `","purchase_units":[{"custom_id":"{\"user_id\":\"7\"}","amount":{"currency_code":"GBP","value":"20.00"}}]}`))
	})
	mux.HandleFunc("POST /v2/checkout/orders/PP-1/capture", func(w http.ResponseWriter, r *http.Request) {
		f.captures.Add(1)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"PP-1","status":"COMPLETED","payer":{"email_address":"buyer@example.com"},"purchase_units":[{"payments":{"captures":[{"id":"CAP-1","status":"COMPLETED","custom_id":"{\"user_id\":\"7\"}","amount":{"currency_code":"GBP","value":"20.00"}}]}}]}`))
	})
	mux.HandleFunc("POST /v1/notifications/verify-webhook-signature", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"verification_status":"` + f.verifyStatus + `"}`))
	})
	return mux
}

func newTestPaypalClient(t *testing.T, fake *paypalFake) PaymentGateway {
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	return NewPaypalClient(&config.Paypal{
		BaseApiURL:   srv.URL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		WebhookID:    "WH-1",
		ReturnURL:    "http://shop.test/return",
		CancelURL:    "http://shop.test/cancel",
	}, &http.Client{Timeout: time.Second})
}

func TestPaypalCreateIntent(t *testing.T) {
	fake := &paypalFake{}
	c := newTestPaypalClient(t, fake)

	intent, err := c.CreateIntent(context.Background(), &model.IntentRequest{
		AmountMinor: 2000,
		Currency:    "gbp",
		Metadata:    map[string]string{"user_id": "7", "is_guest": "false"},
	})
	require.NoError(t, err)

	assert.Equal(t, "PP-1", intent.ID)
	assert.Equal(t, "https://paypal.test/approve/PP-1", intent.ClientSecret)
	assert.Equal(t, int64(2000), intent.AmountMinor)
	assert.False(t, intent.Succeeded())

	units := fake.lastCreate["purchase_units"].([]any)
	amount := units[0].(map[string]any)["amount"].(map[string]any)
	assert.Equal(t, "20.00", amount["value"])
	assert.Equal(t, "GBP", amount["currency_code"])
}

func TestPaypalGetIntent_CapturesApprovedOrder(t *testing.T) {
	fake := &paypalFake{orderStatus: "APPROVED"}
	c := newTestPaypalClient(t, fake)

	intent, err := c.GetIntent(context.Background(), "PP-1")
	require.NoError(t, err)

	assert.EqualValues(t, 1, fake.captures.Load())
	assert.True(t, intent.Succeeded())
	assert.Equal(t, int64(2000), intent.AmountMinor)
	assert.Equal(t, "7", intent.Metadata["user_id"])
	assert.Equal(t, "buyer@example.com", intent.ReceiptEmail)
}

func TestPaypalGetIntent_CreatedIsNotSucceeded(t *testing.T) {
	fake := &paypalFake{orderStatus: "CREATED"}
	c := newTestPaypalClient(t, fake)

	intent, err := c.GetIntent(context.Background(), "PP-1")
	require.NoError(t, err)
	assert.False(t, intent.Succeeded())
	assert.Zero(t, fake.captures.Load())
}

func TestPaypalGetIntent_UnknownOrderIsNotFound(t *testing.T) {
	c := newTestPaypalClient(t, &paypalFake{})

	_, err := c.GetIntent(context.Background(), "BOGUS")
	assert.ErrorIs(t, err, ErrIntentNotFound)
}

const paypalCaptureEvent = `{
  "id": "WH-EVT-1",
  "event_type": "PAYMENT.CAPTURE.COMPLETED",
  "resource": {
    "id": "CAP-1",
    "status": "COMPLETED",
    "custom_id": "{\"user_id\":\"guest\",\"is_guest\":\"true\"}",
    "amount": {"currency_code": "GBP", "value": "12.50"},
    "supplementary_data": {"related_ids": {"order_id": "PP-1"}}
  }
}`

func paypalHeaders() http.Header {
	h := http.Header{}
	h.Set("Paypal-Transmission-Sig", "sig")
	h.Set("Paypal-Transmission-Id", "tid")
	return h
}

func TestPaypalVerifyWebhook_CaptureCompleted(t *testing.T) {
	c := newTestPaypalClient(t, &paypalFake{verifyStatus: "SUCCESS"})

	event, err := c.VerifyWebhook(context.Background(), paypalHeaders(), []byte(paypalCaptureEvent))
	require.NoError(t, err)

	assert.Equal(t, "WH-EVT-1", event.ID)
	assert.Equal(t, model.EventPaymentSucceeded, event.Type)
	assert.Equal(t, "PP-1", event.Intent.ID)
	assert.Equal(t, int64(1250), event.Intent.AmountMinor)
	assert.Equal(t, "true", event.Intent.Metadata["is_guest"])
}

func TestPaypalVerifyWebhook_Rejected(t *testing.T) {
	c := newTestPaypalClient(t, &paypalFake{verifyStatus: "FAILURE"})

	_, err := c.VerifyWebhook(context.Background(), paypalHeaders(), []byte(paypalCaptureEvent))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestPaypalVerifyWebhook_MissingSignature(t *testing.T) {
	c := newTestPaypalClient(t, &paypalFake{verifyStatus: "SUCCESS"})

	_, err := c.VerifyWebhook(context.Background(), http.Header{}, []byte(paypalCaptureEvent))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestPaypalVerifyWebhook_UnknownEventPassesThrough(t *testing.T) {
	c := newTestPaypalClient(t, &paypalFake{verifyStatus: "SUCCESS"})
	body := strings.Replace(paypalCaptureEvent, "PAYMENT.CAPTURE.COMPLETED", "CHECKOUT.ORDER.APPROVED", 1)

	event, err := c.VerifyWebhook(context.Background(), paypalHeaders(), []byte(body))
	require.NoError(t, err)
	assert.Equal(t, "CHECKOUT.ORDER.APPROVED", event.Type)
	assert.Empty(t, event.Intent.ID)
}
