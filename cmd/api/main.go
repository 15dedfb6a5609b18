package main

import (
	"context"
	"digital-shop/internal/cart"
	"digital-shop/internal/client"
	"digital-shop/internal/config"
	"digital-shop/internal/logkey"
	"digital-shop/internal/metrics"
	"digital-shop/internal/notify"
	"digital-shop/internal/repository"
	"digital-shop/internal/server"
	"digital-shop/internal/service"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(cfg.Log))

	if err := run(cfg); err != nil {
		slog.Error("server exited", slog.String(logkey.Error, err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	db, err := client.InitDBClient(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return err
	}

	rdb, err := client.InitRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	gateway, err := client.NewPaymentGateway(cfg)
	if err != nil {
		return err
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	var notifier notify.Notifier
	switch cfg.Notify.Driver {
	case "kafka":
		kafkaNotifier := notify.NewKafkaNotifier(cfg.Notify.KafkaBrokers, cfg.Notify.KafkaTopic, cfg.Shop.SiteURL)
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
	default:
		notifier = notify.NewLogNotifier(cfg.Shop.SiteURL)
	}
	dispatcher := notify.NewDispatcher(notifier, m)

	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	checkoutRepo := repository.NewCheckoutSessionRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)

	if cfg.Shop.SeedCatalog {
		if err := productRepo.Seed(ctx); err != nil {
			return err
		}
	}

	cartStore := cart.NewRedisStore(rdb, cfg.Shop.CartTTL)

	checkoutService := service.NewCheckoutService(
		db,
		gateway,
		cartStore,
		productRepo,
		orderRepo,
		checkoutRepo,
		webhookEventRepo,
		purchaseRepo,
		dispatcher,
		m,
		cfg.Shop,
		cfg.Stripe.PublishableKey,
	)
	downloadService := service.NewDownloadService(orderRepo, cfg.Shop.MediaRoot, m)
	purchaseService := service.NewPurchaseService(productRepo, orderRepo, purchaseRepo)

	srv := server.NewServer(
		cfg,
		prometheus.DefaultGatherer,
		m,
		cartStore,
		productRepo,
		checkoutService,
		downloadService,
		purchaseService,
	)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	serverErr := make(chan error, 1)

	slog.Info("starting HTTP server",
		slog.String("address", serverAddr),
		slog.String(logkey.Provider, gateway.Provider()))
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-sigChan:
	}
	slog.Info("signal received, starting graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	// let in-flight confirmation emails finish before the writers close
	dispatcher.Wait()
	return nil
}

func newLogger(cfg config.Log) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
