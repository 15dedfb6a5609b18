package service

import (
	"context"
	"digital-shop/internal/cart"
	"digital-shop/internal/client"
	"digital-shop/internal/config"
	"digital-shop/internal/dto"
	"digital-shop/internal/logkey"
	"digital-shop/internal/metrics"
	"digital-shop/internal/model"
	"digital-shop/internal/repository"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	SourceRedirect = "redirect"
	SourceWebhook  = "webhook"

	// Stripe's ceiling for a single charge in two-decimal currencies.
	defaultMaxOrderMinor = 99_999_999
)

type BeginCheckoutRequest struct {
	SessionID string
	Cart      *cart.Cart
	Buyer     *model.Buyer
	Email     string
}

// MaterializeRequest describes a confirmed payment. Paid is false for
// payments the gateway still reports as processing.
type MaterializeRequest struct {
	PaymentReference string
	Session          *model.CheckoutSession
	Paid             bool
	Source           string
}

// OrderNotifier is told about every order that reaches completed.
type OrderNotifier interface {
	OrderCompleted(order *model.Order)
}

type CheckoutService interface {
	BeginCheckout(ctx context.Context, req *BeginCheckoutRequest) (*dto.CheckoutResponse, error)
	ConfirmFromRedirect(ctx context.Context, intentID string, buyer *model.Buyer) (*model.Order, error)
	ConfirmFromWebhook(ctx context.Context, headers http.Header, body []byte) error
	MaterializeOrder(ctx context.Context, req *MaterializeRequest) (*model.Order, error)
}

type checkoutServiceImpl struct {
	db               *gorm.DB
	gateway          client.PaymentGateway
	cartStore        cart.Store
	productRepo      repository.ProductRepository
	orderRepo        repository.OrderRepository
	checkoutRepo     repository.CheckoutSessionRepository
	webhookEventRepo repository.WebhookEventRepository
	purchaseRepo     repository.PurchaseRepository
	notifier         OrderNotifier
	metrics          *metrics.Metrics
	shopCfg          config.Shop
	publishableKey   string
}

func NewCheckoutService(
	db *gorm.DB,
	gateway client.PaymentGateway,
	cartStore cart.Store,
	productRepo repository.ProductRepository,
	orderRepo repository.OrderRepository,
	checkoutRepo repository.CheckoutSessionRepository,
	webhookEventRepo repository.WebhookEventRepository,
	purchaseRepo repository.PurchaseRepository,
	notifier OrderNotifier,
	m *metrics.Metrics,
	shopCfg config.Shop,
	publishableKey string,
) CheckoutService {
	return &checkoutServiceImpl{
		db:               db,
		gateway:          gateway,
		cartStore:        cartStore,
		productRepo:      productRepo,
		orderRepo:        orderRepo,
		checkoutRepo:     checkoutRepo,
		webhookEventRepo: webhookEventRepo,
		purchaseRepo:     purchaseRepo,
		notifier:         notifier,
		metrics:          m,
		shopCfg:          shopCfg,
		publishableKey:   publishableKey,
	}
}

func (s *checkoutServiceImpl) BeginCheckout(ctx context.Context, req *BeginCheckoutRequest) (*dto.CheckoutResponse, error) {
	total := req.Cart.Total()
	if !total.IsPositive() {
		s.metrics.Checkouts.WithLabelValues("empty_cart").Inc()
		return nil, ErrEmptyCart
	}

	email := strings.TrimSpace(req.Email)
	if email == "" && !req.Buyer.IsGuest() {
		email = req.Buyer.Email
	}
	if req.Buyer.IsGuest() && email == "" {
		return nil, ErrEmailRequired
	}

	var userID *string
	metadataUser := "guest"
	if !req.Buyer.IsGuest() {
		id := req.Buyer.UserID
		userID = &id
		metadataUser = id
	}

	lines, err := req.Cart.Entries()
	if err != nil {
		s.metrics.Checkouts.WithLabelValues("invalid_cart").Inc()
		return nil, err
	}
	// compare as decimals; IntPart silently truncates anything past int64
	amount := total.Shift(2).Round(0)
	if amount.GreaterThan(decimal.NewFromInt(s.maxOrderMinor())) {
		s.metrics.Checkouts.WithLabelValues("too_large").Inc()
		slog.WarnContext(ctx, "checkout total above gateway maximum",
			slog.String(logkey.SessionID, req.SessionID),
			slog.String("total", total.StringFixed(2)))
		return nil, ErrAmountTooLarge
	}
	amountMinor := amount.IntPart()
	currency := strings.ToLower(s.shopCfg.Currency)

	gctx, cancel := context.WithTimeout(ctx, s.shopCfg.GatewayTimeout)
	defer cancel()

	intent, err := s.gateway.CreateIntent(gctx, &model.IntentRequest{
		AmountMinor: amountMinor,
		Currency:    currency,
		Metadata: map[string]string{
			"user_id":  metadataUser,
			"is_guest": strconv.FormatBool(userID == nil),
		},
		ReceiptEmail: email,
	})
	if err != nil {
		s.metrics.Checkouts.WithLabelValues("gateway_error").Inc()
		slog.ErrorContext(ctx, "create payment intent failed",
			slog.String(logkey.Provider, s.gateway.Provider()),
			slog.String(logkey.Error, err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
	}

	err = s.checkoutRepo.Save(ctx, &model.CheckoutSession{
		IntentID:    intent.ID,
		Provider:    s.gateway.Provider(),
		SessionID:   req.SessionID,
		UserID:      userID,
		Email:       email,
		Currency:    currency,
		AmountMinor: amountMinor,
		Lines:       lines,
	})
	if err != nil {
		return nil, fmt.Errorf("store checkout session: %w", err)
	}

	s.metrics.Checkouts.WithLabelValues("intent_created").Inc()
	slog.InfoContext(ctx, "payment intent created",
		slog.String(logkey.PaymentReference, intent.ID),
		slog.String(logkey.UserID, metadataUser),
		slog.Int64("amount_minor", amountMinor))

	return &dto.CheckoutResponse{
		IntentID:       intent.ID,
		ClientSecret:   intent.ClientSecret,
		AmountMinor:    amountMinor,
		Currency:       currency,
		PublishableKey: s.publishableKey,
		Provider:       s.gateway.Provider(),
	}, nil
}

func (s *checkoutServiceImpl) ConfirmFromRedirect(ctx context.Context, intentID string, buyer *model.Buyer) (*model.Order, error) {
	gctx, cancel := context.WithTimeout(ctx, s.shopCfg.GatewayTimeout)
	defer cancel()

	intent, err := s.gateway.GetIntent(gctx, intentID)
	if errors.Is(err, client.ErrIntentNotFound) {
		return nil, ErrCheckoutNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "retrieve payment intent failed",
			slog.String(logkey.PaymentReference, intentID),
			slog.String(logkey.Error, err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
	}
	if !intent.Succeeded() {
		return nil, ErrPaymentNotSucceeded
	}
	if buyer.IsGuest() {
		// guest orders are materialized by the webhook
		return nil, ErrAuthenticationRequired
	}

	session, err := s.checkoutRepo.FindByIntentID(ctx, intent.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCheckoutNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find checkout session: %w", err)
	}
	if session.UserID == nil || *session.UserID != buyer.UserID {
		return nil, ErrNotOwner
	}

	return s.MaterializeOrder(ctx, &MaterializeRequest{
		PaymentReference: intent.ID,
		Session:          session,
		Paid:             true,
		Source:           SourceRedirect,
	})
}

func (s *checkoutServiceImpl) ConfirmFromWebhook(ctx context.Context, headers http.Header, body []byte) error {
	event, err := s.gateway.VerifyWebhook(ctx, headers, body)
	if err != nil {
		if errors.Is(err, client.ErrInvalidSignature) || errors.Is(err, client.ErrMalformedEvent) {
			s.metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
			slog.WarnContext(ctx, "webhook rejected", slog.String(logkey.Error, err.Error()))
			return ErrInvalidSignature
		}
		return fmt.Errorf("verify webhook: %w", err)
	}

	processed, err := s.webhookEventRepo.Exists(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("check webhook event: %w", err)
	}
	if processed {
		s.metrics.WebhookEvents.WithLabelValues(event.Type, "duplicate").Inc()
		return nil
	}

	outcome := "processed"
	switch event.Type {
	case model.EventPaymentSucceeded:
		err = s.materializeFromEvent(ctx, event, true)
	case model.EventPaymentProcessing:
		err = s.materializeFromEvent(ctx, event, false)
	case model.EventPaymentFailed:
		err = s.markFailed(ctx, event.Intent.ID)
	default:
		outcome = "ignored"
	}
	if err != nil {
		s.metrics.WebhookEvents.WithLabelValues(event.Type, "failed").Inc()
		slog.ErrorContext(ctx, "webhook processing failed",
			slog.String(logkey.EventID, event.ID),
			slog.String(logkey.EventType, event.Type),
			slog.String(logkey.Error, err.Error()))
		return err
	}

	if err := s.webhookEventRepo.MarkProcessed(ctx, event.ID, event.Type); err != nil {
		// the order is already safe; a redelivery is deduplicated by payment reference
		slog.WarnContext(ctx, "record webhook event failed",
			slog.String(logkey.EventID, event.ID),
			slog.String(logkey.Error, err.Error()))
	}

	s.metrics.WebhookEvents.WithLabelValues(event.Type, outcome).Inc()
	return nil
}

func (s *checkoutServiceImpl) materializeFromEvent(ctx context.Context, event *model.GatewayEvent, paid bool) error {
	session, err := s.checkoutRepo.FindByIntentID(ctx, event.Intent.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		slog.WarnContext(ctx, "webhook for unknown payment intent",
			slog.String(logkey.EventID, event.ID),
			slog.String(logkey.PaymentReference, event.Intent.ID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("find checkout session: %w", err)
	}

	_, err = s.MaterializeOrder(ctx, &MaterializeRequest{
		PaymentReference: event.Intent.ID,
		Session:          session,
		Paid:             paid,
		Source:           SourceWebhook,
	})
	return err
}

func (s *checkoutServiceImpl) markFailed(ctx context.Context, paymentReference string) error {
	changed, err := s.orderRepo.MarkFailed(ctx, s.db, paymentReference)
	if err != nil {
		return fmt.Errorf("mark order failed: %w", err)
	}
	if changed {
		slog.InfoContext(ctx, "order marked failed", slog.String(logkey.PaymentReference, paymentReference))
	}
	return nil
}

// MaterializeOrder turns a confirmed payment into exactly one Order. Concurrent
// and repeated calls for the same payment reference return the same order.
func (s *checkoutServiceImpl) MaterializeOrder(ctx context.Context, req *MaterializeRequest) (*model.Order, error) {
	ctx = context.WithoutCancel(ctx)

	existing, err := s.orderRepo.FindByPaymentReference(ctx, nil, req.PaymentReference)
	if err == nil {
		return s.resolveExisting(ctx, existing, req)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find order: %w", err)
	}

	order, err := s.buildOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return err
		}
		if order.Paid {
			return s.applyCompletion(ctx, tx, order)
		}
		return nil
	})
	if errors.Is(err, repository.ErrDuplicatePaymentReference) {
		winner, findErr := s.orderRepo.FindByPaymentReference(ctx, nil, req.PaymentReference)
		if findErr != nil {
			return nil, fmt.Errorf("read existing order: %w", findErr)
		}
		return s.resolveExisting(ctx, winner, req)
	}
	if err != nil {
		s.metrics.OrdersMaterialized.WithLabelValues(req.Source, "error").Inc()
		return nil, fmt.Errorf("store order: %w", err)
	}

	slog.InfoContext(ctx, "order created",
		slog.String(logkey.OrderID, order.OrderID),
		slog.String(logkey.PaymentReference, order.PaymentReference),
		slog.String(logkey.Status, string(order.Status)),
		slog.String(logkey.Source, req.Source))

	switch {
	case !order.Paid:
		s.metrics.OrdersMaterialized.WithLabelValues(req.Source, "pending").Inc()
	case len(order.Items) == 0:
		// kept as the record of the payment; it needs a manual refund
		s.metrics.OrdersMaterialized.WithLabelValues(req.Source, "no_items").Inc()
		slog.ErrorContext(ctx, "paid order has no deliverable items",
			slog.String(logkey.OrderID, order.OrderID),
			slog.String(logkey.PaymentReference, order.PaymentReference),
			slog.Int("lines", len(req.Session.Lines)))
	default:
		s.metrics.OrdersMaterialized.WithLabelValues(req.Source, "created").Inc()
		s.afterCompletion(ctx, order, req.Session)
	}

	return order, nil
}

func (s *checkoutServiceImpl) buildOrder(ctx context.Context, req *MaterializeRequest) (*model.Order, error) {
	session := req.Session

	productIDs := make([]uint, 0, len(session.Lines))
	for _, line := range session.Lines {
		productIDs = append(productIDs, line.ProductID)
	}
	products, err := s.productRepo.FindMany(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	byID := make(map[uint]*model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	status := model.OrderStatusPending
	if req.Paid {
		status = model.OrderStatusCompleted
	}
	order := &model.Order{
		OrderID:          newOrderID(),
		UserID:           session.UserID,
		Email:            session.Email,
		Paid:             req.Paid,
		Status:           status,
		PaymentReference: req.PaymentReference,
	}

	for _, line := range session.Lines {
		product, ok := byID[line.ProductID]
		if !ok {
			slog.ErrorContext(ctx, "paid line for unknown product",
				slog.String(logkey.PaymentReference, req.PaymentReference),
				slog.Uint64(logkey.ProductID, uint64(line.ProductID)))
			continue
		}
		order.Items = append(order.Items, model.OrderItem{
			ProductID:          product.ID,
			UnitPricePaid:      line.UnitPricePence,
			Quantity:           line.Quantity,
			DownloadsRemaining: s.downloadLimit(product),
		})
	}

	return order, nil
}

// resolveExisting returns an already materialized order, promoting it when it
// is pending and this confirmation says the payment went through.
func (s *checkoutServiceImpl) resolveExisting(ctx context.Context, order *model.Order, req *MaterializeRequest) (*model.Order, error) {
	if order.Status != model.OrderStatusPending || !req.Paid {
		if order.Status == model.OrderStatusFailed && req.Paid {
			slog.WarnContext(ctx, "paid confirmation for failed order",
				slog.String(logkey.OrderID, order.OrderID),
				slog.String(logkey.PaymentReference, order.PaymentReference))
		}
		s.metrics.OrdersMaterialized.WithLabelValues(req.Source, "existing").Inc()
		return order, nil
	}

	var promoted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		promoted, err = s.orderRepo.PromotePending(ctx, tx, order.PaymentReference)
		if err != nil || !promoted {
			return err
		}
		order.Status = model.OrderStatusCompleted
		order.Paid = true
		return s.applyCompletion(ctx, tx, order)
	})
	if err != nil {
		return nil, fmt.Errorf("promote pending order: %w", err)
	}

	if !promoted {
		s.metrics.OrdersMaterialized.WithLabelValues(req.Source, "existing").Inc()
		return s.orderRepo.FindByPaymentReference(ctx, nil, order.PaymentReference)
	}

	slog.InfoContext(ctx, "pending order completed",
		slog.String(logkey.OrderID, order.OrderID),
		slog.String(logkey.Source, req.Source))
	s.metrics.OrdersMaterialized.WithLabelValues(req.Source, "promoted").Inc()
	s.afterCompletion(ctx, order, req.Session)

	return order, nil
}

// applyCompletion runs inside the order transaction.
func (s *checkoutServiceImpl) applyCompletion(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	for _, item := range order.Items {
		if err := s.productRepo.IncrementPurchaseCount(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return fmt.Errorf("increment purchase count: %w", err)
		}
		if order.UserID == nil {
			continue
		}
		err := s.purchaseRepo.Upsert(ctx, tx, &model.Purchase{
			UserID:    *order.UserID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
		if err != nil {
			return fmt.Errorf("record purchase: %w", err)
		}
	}
	return nil
}

func (s *checkoutServiceImpl) afterCompletion(ctx context.Context, order *model.Order, session *model.CheckoutSession) {
	if session != nil && session.SessionID != "" {
		if err := s.cartStore.Delete(ctx, session.SessionID); err != nil {
			slog.WarnContext(ctx, "clear cart failed",
				slog.String(logkey.SessionID, session.SessionID),
				slog.String(logkey.Error, err.Error()))
		}
	}
	s.notifier.OrderCompleted(order)
}

func (s *checkoutServiceImpl) downloadLimit(product *model.Product) int {
	if product.DownloadLimit > 0 {
		return product.DownloadLimit
	}
	return s.shopCfg.DefaultDownloadLimit
}

func (s *checkoutServiceImpl) maxOrderMinor() int64 {
	if s.shopCfg.MaxOrderMinor > 0 {
		return s.shopCfg.MaxOrderMinor
	}
	return defaultMaxOrderMinor
}

func newOrderID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(id[:12])
}
