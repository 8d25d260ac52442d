package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/needtofly/dodoktora/internal/admin"
	"github.com/needtofly/dodoktora/internal/api/router"
	"github.com/needtofly/dodoktora/internal/bookings"
	"github.com/needtofly/dodoktora/internal/clinictime"
	appconfig "github.com/needtofly/dodoktora/internal/config"
	"github.com/needtofly/dodoktora/internal/notify"
	"github.com/needtofly/dodoktora/internal/observability/metrics"
	"github.com/needtofly/dodoktora/internal/payments"
	"github.com/needtofly/dodoktora/internal/redislock"
	"github.com/needtofly/dodoktora/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting dodoktora API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"provider", cfg.PaymentProvider,
	)

	zone, err := clinictime.LoadZone(cfg.ClinicTimezone)
	if err != nil {
		logger.Error("failed to load clinic timezone", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Booking store: Postgres when configured, in-memory otherwise so the
	// sandbox runs with zero infrastructure.
	var repo bookings.Repository
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to create pg pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		repo = bookings.NewPgRepository(pool)
		logger.Info("using postgres booking store")
	} else {
		repo = bookings.NewInMemoryRepository()
		logger.Warn("DATABASE_URL not set, bookings held in memory only")
	}

	// Slot lock: Redis when configured, otherwise rely on the store's
	// uniqueness alone.
	var locker bookings.Locker = redislock.Noop{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("failed to ping redis", "error", err)
			os.Exit(1)
		}
		defer func() { _ = rdb.Close() }()
		locker = redislock.New(rdb, 10*time.Second)
		logger.Info("using redis slot lock", "addr", cfg.RedisAddr)
	}

	// Confirmation email, stubbed when SendGrid is not configured.
	var sender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		sender = sg
	} else {
		sender = notify.NewStubEmailSender(logger)
	}
	confirmation := notify.NewConfirmation(sender, zone, cfg.ClinicName, logger)

	routerCfg := &router.Config{
		Logger:         logger,
		AdminHandler:   admin.NewHandler(repo, zone, logger),
		MetricsHandler: promhttp.Handler(),
		AdminJWTSecret: cfg.AdminJWTSecret,
	}

	// The mock gateway backs the "mock" provider and, outside production,
	// the fallback payment page when real credentials are rejected.
	var mockGateway *payments.Mock
	if cfg.PaymentProvider == "mock" || (cfg.AllowMockPayments && !cfg.IsProduction()) {
		mockGateway = payments.NewMock(cfg.PublicBaseURL)
		mockReconciler := payments.NewReconciler(repo, mockGateway, confirmation, logger)
		routerCfg.MockPayments = payments.NewMockHandler(mockGateway, mockReconciler, cfg.P24ReturnURL, logger)
	}

	var gateway payments.Gateway
	switch cfg.PaymentProvider {
	case "p24":
		p24 := payments.NewP24(payments.P24Config{
			MerchantID: cfg.P24MerchantID,
			PosID:      cfg.P24PosID,
			CRC:        cfg.P24CRC,
			APIKey:     cfg.P24APIKey,
			BaseURL:    cfg.P24BaseURL,
			ReturnURL:  cfg.P24ReturnURL,
			StatusURL:  cfg.P24StatusURL,
		}, logger)
		gateway = p24
		rec := payments.NewReconciler(repo, p24, confirmation, logger)
		routerCfg.P24Webhook = payments.NewP24Webhook(p24, rec, logger)
	case "payu":
		payu := payments.NewPayU(payments.PayUConfig{
			PosID:        cfg.PayUPosID,
			ClientID:     cfg.PayUClientID,
			ClientSecret: cfg.PayUClientSecret,
			BaseURL:      cfg.PayUBaseURL,
			ReturnURL:    cfg.PayUReturnURL,
			NotifyURL:    cfg.PayUNotifyURL,
		}, logger)
		gateway = payu
		rec := payments.NewReconciler(repo, payu, confirmation, logger)
		routerCfg.PayUWebhook = payments.NewPayUWebhook(rec, logger)
	case "stripe":
		stripe := payments.NewStripe(payments.StripeConfig{
			SecretKey:  cfg.StripeSecretKey,
			SuccessURL: cfg.StripeSuccessURL,
			CancelURL:  cfg.StripeCancelURL,
		}, logger)
		gateway = stripe
		rec := payments.NewReconciler(repo, stripe, confirmation, logger)
		routerCfg.StripeWebhook = payments.NewStripeWebhook(cfg.StripeWebhookSecret, rec, logger)
	case "mock":
		if cfg.IsProduction() {
			logger.Error("mock payment provider is not allowed in production")
			os.Exit(1)
		}
		gateway = mockGateway
	default:
		logger.Error("unknown payment provider", "provider", cfg.PaymentProvider)
		os.Exit(1)
	}

	var fallback *payments.Mock
	if cfg.PaymentProvider != "mock" {
		fallback = mockGateway
	}
	checkout := payments.NewCheckout(gateway, fallback, logger)

	svc := bookings.NewService(repo, checkout, locker, zone, cfg.HoldWindow, logger)
	routerCfg.BookingsHandler = bookings.NewHandler(svc, logger)

	sweeper := bookings.NewSweeper(repo, cfg.HoldWindow, time.Minute, logger).
		OnSwept(func(n int64) { metrics.ExpiredHoldsTotal.Add(float64(n)) })
	go sweeper.Run(ctx)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
