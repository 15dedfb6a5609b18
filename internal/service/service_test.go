package service

import (
	"context"
	"digital-shop/internal/cart"
	"digital-shop/internal/client"
	"digital-shop/internal/config"
	"digital-shop/internal/metrics"
	"digital-shop/internal/model"
	"digital-shop/internal/repository"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSignatureHeader = "X-Test-Signature"

// fakeGateway keeps intents in memory. Webhook bodies are JSON-encoded
// model.GatewayEvent values accepted when the test signature header is "valid".
type fakeGateway struct {
	mu          sync.Mutex
	intents     map[string]*model.PaymentIntent
	requests    []*model.IntentRequest
	createErr   error
	getErr      error
	getCalls    int
	nextIntent  int
	verifyCalls int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{intents: map[string]*model.PaymentIntent{}}
}

func (g *fakeGateway) Provider() string { return "fake" }

func (g *fakeGateway) CreateIntent(_ context.Context, req *model.IntentRequest) (*model.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.requests = append(g.requests, req)
	if g.createErr != nil {
		return nil, g.createErr
	}

	g.nextIntent++
	intent := &model.PaymentIntent{
		ID:           fmt.Sprintf("pi_%d", g.nextIntent),
		ClientSecret: fmt.Sprintf("pi_%d_secret", g.nextIntent),
		Status:       "requires_payment_method",
		AmountMinor:  req.AmountMinor,
		Currency:     req.Currency,
		Metadata:     req.Metadata,
		ReceiptEmail: req.ReceiptEmail,
	}
	g.intents[intent.ID] = intent
	return intent, nil
}

func (g *fakeGateway) GetIntent(_ context.Context, intentID string) (*model.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.getCalls++
	if g.getErr != nil {
		return nil, g.getErr
	}
	intent, ok := g.intents[intentID]
	if !ok {
		return nil, client.ErrIntentNotFound
	}
	cp := *intent
	return &cp, nil
}

func (g *fakeGateway) VerifyWebhook(_ context.Context, headers http.Header, body []byte) (*model.GatewayEvent, error) {
	g.mu.Lock()
	g.verifyCalls++
	g.mu.Unlock()

	if headers.Get(testSignatureHeader) != "valid" {
		return nil, client.ErrInvalidSignature
	}
	var event model.GatewayEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, client.ErrMalformedEvent
	}
	return &event, nil
}

func (g *fakeGateway) setStatus(intentID, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[intentID].Status = status
}

type recordingNotifier struct {
	mu     sync.Mutex
	orders []*model.Order
}

func (n *recordingNotifier) OrderCompleted(order *model.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, order)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.orders)
}

type testEnv struct {
	db        *gorm.DB
	redis     *miniredis.Miniredis
	carts     *cart.RedisStore
	gateway   *fakeGateway
	notifier  *recordingNotifier
	metrics   *metrics.Metrics
	products  repository.ProductRepository
	orders    repository.OrderRepository
	sessions  repository.CheckoutSessionRepository
	events    repository.WebhookEventRepository
	purchases repository.PurchaseRepository
	shopCfg   config.Shop
	checkout  CheckoutService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := client.InitDBClient("sqlite", filepath.Join(t.TempDir(), "shop.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	env := &testEnv{
		db:        db,
		redis:     mr,
		carts:     cart.NewRedisStore(rdb, time.Hour),
		gateway:   newFakeGateway(),
		notifier:  &recordingNotifier{},
		metrics:   metrics.New(prometheus.NewRegistry()),
		products:  repository.NewProductRepository(db),
		orders:    repository.NewOrderRepository(db),
		sessions:  repository.NewCheckoutSessionRepository(db),
		events:    repository.NewWebhookEventRepository(db),
		purchases: repository.NewPurchaseRepository(db),
		shopCfg: config.Shop{
			Currency:             "gbp",
			DefaultDownloadLimit: 5,
			GatewayTimeout:       time.Second,
		},
	}
	env.checkout = env.newCheckoutService(env.gateway)
	return env
}

func (e *testEnv) newCheckoutService(gateway client.PaymentGateway) CheckoutService {
	return NewCheckoutService(
		e.db,
		gateway,
		e.carts,
		e.products,
		e.orders,
		e.sessions,
		e.events,
		e.purchases,
		e.notifier,
		e.metrics,
		e.shopCfg,
		"pk_test",
	)
}

func (e *testEnv) product(t *testing.T, title string, pence int64, limit int) *model.Product {
	t.Helper()
	p := &model.Product{
		Title:         title,
		Slug:          title,
		PricePence:    pence,
		ProductType:   model.ProductTypeDownload,
		FilePath:      title + ".pdf",
		DownloadLimit: limit,
		IsActive:      true,
	}
	require.NoError(t, e.db.Create(p).Error)
	return p
}

// checkoutCart puts qty × product in the session cart and begins checkout.
func (e *testEnv) checkoutCart(t *testing.T, sessionID string, buyer *model.Buyer, email string, p *model.Product, qty int) string {
	t.Helper()
	ctx := context.Background()

	c, err := e.carts.Load(ctx, sessionID)
	require.NoError(t, err)
	require.NoError(t, c.Add(p, qty, false))
	require.NoError(t, e.carts.Save(ctx, sessionID, c))

	resp, err := e.checkout.BeginCheckout(ctx, &BeginCheckoutRequest{
		SessionID: sessionID,
		Cart:      c,
		Buyer:     buyer,
		Email:     email,
	})
	require.NoError(t, err)
	return resp.IntentID
}

func (e *testEnv) countOrders(t *testing.T, paymentReference string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&model.Order{}).Where("payment_reference = ?", paymentReference).Count(&count).Error)
	return count
}

func (e *testEnv) reloadProduct(t *testing.T, id uint) *model.Product {
	t.Helper()
	var p model.Product
	require.NoError(t, e.db.First(&p, id).Error)
	return &p
}

func webhookBody(t *testing.T, eventID, eventType, intentID string) []byte {
	t.Helper()
	body, err := json.Marshal(model.GatewayEvent{
		ID:     eventID,
		Type:   eventType,
		Intent: model.PaymentIntent{ID: intentID},
	})
	require.NoError(t, err)
	return body
}

func validHeaders() http.Header {
	h := http.Header{}
	h.Set(testSignatureHeader, "valid")
	return h
}

func user(id string) *model.Buyer {
	return &model.Buyer{UserID: id, Email: id + "@example.com"}
}
