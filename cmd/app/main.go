// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"zapfollow-billing/internal/config"
	"zapfollow-billing/internal/domain/ports/adapter"
	idAdapters "zapfollow-billing/internal/infra/adapters/identity"
	payAdapters "zapfollow-billing/internal/infra/adapters/payment"
	"zapfollow-billing/internal/infra/api"
	pg "zapfollow-billing/internal/infra/db/postgres"
	httpapi "zapfollow-billing/internal/infra/http"
	"zapfollow-billing/internal/infra/logging"
	"zapfollow-billing/internal/infra/metrics"
	red "zapfollow-billing/internal/infra/redis"
	"zapfollow-billing/internal/infra/sched"
	"zapfollow-billing/internal/usecase"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (in-memory payment provider, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis (optional) ----
	var (
		locker  adapter.Locker
		limiter adapter.RateLimiter
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		locker = red.NewLocker(redisClient)
		limiter = red.NewRateLimiter(redisClient)
	} else {
		logger.Warn().Msg("redis not configured; checkout locking and rate limiting disabled")
	}

	// ---- Repositories ----
	subRepo := pg.NewSubscriptionRepo(pool)
	profileRepo := pg.NewProfileRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Adapters ----
	gateway, err := newGateway(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("payment gateway")
	}
	identity, err := newIdentityVerifier(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("identity verifier")
	}

	// ---- Use cases ----
	checkoutUC := usecase.NewCheckoutUseCase(subRepo, gateway, locker, limiter, usecase.CheckoutConfig{
		AppURL:          cfg.App.URL,
		DashboardPath:   cfg.App.DashboardPath,
		ReturnPath:      cfg.App.ReturnPath,
		NotificationURL: notificationURL(cfg.Payment.MercadoPago.WebhookBaseURL, cfg.Payment.MercadoPago.WebhookToken),
		PriceCents:      cfg.Payment.Pro.PriceCents,
		Currency:        cfg.Payment.Pro.Currency,
		Reason:          cfg.Payment.Pro.Reason,
		LockTTL:         cfg.Checkout.LockTTL,
		RateLimit:       cfg.Checkout.RateLimit,
		RateWindow:      cfg.Checkout.RateWindow,
	}, logger)
	reconcileUC := usecase.NewReconcileUseCase(subRepo, profileRepo, gateway, txManager, logger)
	entitlementUC := usecase.NewEntitlementUseCase(profileRepo, logger)

	// ---- HTTP ----
	debug := cfg.Runtime.Dev || strings.EqualFold(cfg.Log.Level, "debug")
	router := api.NewRouter(api.RouterDeps{
		Billing: api.NewBillingHandler(checkoutUC, entitlementUC, identity, logger),
		Webhook: api.NewWebhookHandler(reconcileUC, cfg.Payment.MercadoPago.WebhookToken, debug, map[string]bool{
			"has_access_token":  cfg.Payment.MercadoPago.AccessToken != "",
			"has_webhook_token": cfg.Payment.MercadoPago.WebhookToken != "",
			"has_jwt_secret":    cfg.Auth.JWTSecret != "",
		}, logger),
		Gate:           api.NewOriginGate(cfg.AppOrigin()),
		DB:             pool,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Logger:         logger,
	})
	server := httpapi.NewServer(cfg.HTTP.Port, router, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	// ---- Background workers ----
	if cfg.Scheduler.PendingSweepInterval > 0 {
		sweeper := sched.NewPendingReconciler(reconcileUC, cfg.Scheduler.PendingSweepInterval, cfg.Scheduler.PendingStaleAfter, logger)
		go func() { _ = sweeper.Run(ctx) }()
	}
	reporter := sched.NewStatsReporter(subRepo, pool, cfg.Scheduler.PoolStatsInterval, logger)
	go func() { _ = reporter.Run(ctx) }()

	// ---- Graceful shutdown ----
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}

func newGateway(cfg *config.Config, logger *zerolog.Logger) (adapter.PreapprovalGateway, error) {
	if cfg.Payment.Provider == "noop" {
		logger.Warn().Msg("payment provider: noop (in-memory)")
		return payAdapters.NewNoopPaymentGateway(), nil
	}
	logger.Info().Str("base_url", cfg.Payment.MercadoPago.BaseURL).
		Str("access_token", logging.Redact(cfg.Payment.MercadoPago.AccessToken, cfg.Runtime.Dev)).
		Msg("payment provider: mercadopago")
	return payAdapters.NewMercadoPagoGateway(cfg.Payment.MercadoPago.AccessToken, cfg.Payment.MercadoPago.BaseURL)
}

func newIdentityVerifier(cfg *config.Config) (adapter.IdentityVerifier, error) {
	if cfg.Auth.Mode == "remote" {
		return idAdapters.NewGoTrueVerifier(cfg.Auth.SupabaseURL, cfg.Auth.AnonKey)
	}
	return idAdapters.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Audience)
}

// notificationURL is where the provider posts preapproval updates.
func notificationURL(base, token string) string {
	return strings.TrimRight(base, "/") + "/api/v1/billing/webhook?token=" + url.QueryEscape(token)
}
