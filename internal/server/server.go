package server

import (
	"context"
	"digital-shop/internal/cart"
	"digital-shop/internal/config"
	"digital-shop/internal/handler"
	"digital-shop/internal/logkey"
	"digital-shop/internal/metrics"
	"digital-shop/internal/middleware"
	"digital-shop/internal/repository"
	"digital-shop/internal/service"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

type Server struct {
	echo            *echo.Echo
	cfg             *config.Config
	cartStore       cart.Store
	cartHandler     *handler.CartHandler
	checkoutHandler *handler.CheckoutHandler
	downloadHandler *handler.DownloadHandler
	orderHandler    *handler.OrderHandler
}

func NewServer(
	cfg *config.Config,
	gatherer prometheus.Gatherer,
	m *metrics.Metrics,
	cartStore cart.Store,
	productRepo repository.ProductRepository,
	checkoutService service.CheckoutService,
	downloadService service.DownloadService,
	purchaseService service.PurchaseService,
) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomw.RequestID())
	e.Use(requestLogger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(requestMetrics(m))

	e.GET("/metrics", echo.WrapHandler(metrics.Handler(gatherer)))

	s := &Server{
		echo:            e,
		cfg:             cfg,
		cartStore:       cartStore,
		cartHandler:     handler.NewCartHandler(productRepo),
		checkoutHandler: handler.NewCheckoutHandler(checkoutService),
		downloadHandler: handler.NewDownloadHandler(downloadService),
		orderHandler:    handler.NewOrderHandler(purchaseService),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	auth := middleware.AuthMiddleware(s.cfg.Auth.JWTSecret)
	session := []echo.MiddlewareFunc{
		auth,
		middleware.SessionMiddleware(s.cartStore, s.cfg.Shop.CartTTL, s.cfg.Environment.IsProduction()),
	}
	account := []echo.MiddlewareFunc{auth, middleware.RequireAuth()}

	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	api.GET("/products", s.orderHandler.ListProducts)

	// -------- cart --------
	api.GET("/cart", s.cartHandler.GetCart, session...)
	api.DELETE("/cart", s.cartHandler.ClearCart, session...)
	api.POST("/cart/items", s.cartHandler.AddItem, session...)
	api.PUT("/cart/items/:product_id", s.cartHandler.UpdateItem, session...)
	api.DELETE("/cart/items/:product_id", s.cartHandler.RemoveItem, session...)

	// -------- checkout --------
	api.POST("/checkout", s.checkoutHandler.BeginCheckout, session...)
	api.GET("/payment/confirm", s.checkoutHandler.ConfirmPayment, session...)

	// -------- gateway webhooks, no session or auth --------
	api.POST("/webhooks/payment", s.checkoutHandler.PaymentWebhook)

	// -------- account --------
	api.GET("/download/:order_item_id", s.downloadHandler.Download, account...)
	api.GET("/orders", s.orderHandler.ListOrders, account...)
	api.GET("/orders/:order_id", s.orderHandler.GetOrder, account...)
	api.GET("/library", s.orderHandler.Library, account...)
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func requestLogger() echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			level := slog.LevelInfo
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int(logkey.Status, v.Status),
				slog.Duration("latency", v.Latency),
				slog.String(logkey.RequestID, v.RequestID),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String(logkey.Error, v.Error.Error()))
				if v.Status >= http.StatusInternalServerError {
					level = slog.LevelError
				}
			}
			slog.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	})
}

func requestMetrics(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if httpErr, ok := err.(*echo.HTTPError); ok {
				status = httpErr.Code
			} else if err != nil {
				status = http.StatusInternalServerError
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
			m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
			return err
		}
	}
}
