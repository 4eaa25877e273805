// File: internal/usecase/checkout_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"zapfollow-billing/internal/domain"
	"zapfollow-billing/internal/domain/model"
	"zapfollow-billing/internal/domain/ports/adapter"
	"zapfollow-billing/internal/domain/ports/repository"
	"zapfollow-billing/internal/infra/logging"
	"zapfollow-billing/internal/infra/metrics"
)

// PlanPro is the only purchasable plan.
const PlanPro = "pro"

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

// CheckoutUseCase starts a provider checkout for the paid tier.
type CheckoutUseCase interface {
	Initiate(ctx context.Context, who adapter.Identity, plan string) (*CheckoutResult, error)
}

// CheckoutResult is either a redirect for an already-active user or a provider checkout URL.
type CheckoutResult struct {
	AlreadyActive  bool
	Redirect       string
	InitPoint      string
	SubscriptionID string
}

// CheckoutConfig carries the static inputs of a checkout.
type CheckoutConfig struct {
	AppURL          string // public SPA base, no trailing slash
	DashboardPath   string
	ReturnPath      string
	NotificationURL string // full webhook URL including the shared-secret token
	PriceCents      int64
	Currency        string
	Reason          string

	LockTTL    time.Duration
	RateLimit  int
	RateWindow time.Duration
}

type checkoutUC struct {
	subs    repository.SubscriptionRepository
	gateway adapter.PreapprovalGateway
	locker  adapter.Locker      // optional
	limiter adapter.RateLimiter // optional
	cfg     CheckoutConfig
	log     *zerolog.Logger
}

// NewCheckoutUseCase wires the checkout flow. locker and limiter may be nil.
func NewCheckoutUseCase(
	subs repository.SubscriptionRepository,
	gateway adapter.PreapprovalGateway,
	locker adapter.Locker,
	limiter adapter.RateLimiter,
	cfg CheckoutConfig,
	logger *zerolog.Logger,
) *checkoutUC {
	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")
	if cfg.Currency == "" {
		cfg.Currency = "BRL"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	return &checkoutUC{
		subs:    subs,
		gateway: gateway,
		locker:  locker,
		limiter: limiter,
		cfg:     cfg,
		log:     logger,
	}
}

func (u *checkoutUC) Initiate(ctx context.Context, who adapter.Identity, plan string) (*CheckoutResult, error) {
	defer logging.TraceDuration(u.log, "CheckoutUC.Initiate")()

	if plan != PlanPro {
		metrics.IncCheckout("invalid_plan")
		return nil, domain.ErrInvalidPlan
	}
	if who.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	ctx = logging.WithUserID(ctx, who.UserID)
	log := logging.With(ctx, u.log)

	if u.limiter != nil && u.cfg.RateLimit > 0 {
		ok, err := u.limiter.Allow(ctx, CheckoutRateKey(who.UserID), u.cfg.RateLimit, u.cfg.RateWindow)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("rate limiter unavailable; continuing")
		case !ok:
			metrics.IncCheckout("rate_limited")
			return nil, domain.ErrRateLimited
		}
	}

	if u.locker != nil {
		key := CheckoutLockKey(who.UserID)
		token, err := u.locker.TryLock(ctx, key, u.cfg.LockTTL)
		switch {
		case errors.Is(err, domain.ErrCheckoutInProgress):
			metrics.IncCheckout("in_progress")
			return nil, err
		case err != nil:
			log.Warn().Err(err).Msg("checkout lock unavailable; continuing")
		default:
			defer func() {
				// the request context may already be done
				if err := u.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
					log.Warn().Err(err).Msg("checkout unlock failed")
				}
			}()
		}
	}

	active, err := u.subs.FindActiveByUser(ctx, nil, who.UserID)
	switch {
	case err == nil && active != nil:
		metrics.IncCheckout("already_active")
		log.Info().Str("subscription_id", active.ID).Msg("user already has an active subscription")
		return &CheckoutResult{
			AlreadyActive:  true,
			Redirect:       u.cfg.AppURL + u.cfg.DashboardPath,
			SubscriptionID: active.ID,
		}, nil
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		metrics.IncCheckout("error")
		return nil, fmt.Errorf("lookup active subscription: %w", err)
	}

	sub, err := model.NewPendingSubscription(who.UserID, u.cfg.PriceCents, u.cfg.Currency)
	if err != nil {
		metrics.IncCheckout("error")
		return nil, err
	}
	if err := u.subs.Create(ctx, nil, sub); err != nil {
		metrics.IncCheckout("error")
		return nil, fmt.Errorf("create pending subscription: %w", err)
	}
	ctx = logging.WithSubscriptionID(ctx, sub.ID)
	log = logging.With(ctx, u.log)

	pre, err := u.gateway.CreatePreapproval(ctx, adapter.PreapprovalRequest{
		PayerEmail:        who.Email,
		BackURL:           u.cfg.AppURL + u.cfg.ReturnPath,
		Reason:            u.cfg.Reason,
		ExternalReference: sub.ExternalRef,
		NotificationURL:   u.cfg.NotificationURL,
		Amount:            sub.Amount,
		Currency:          sub.Currency,
		Frequency:         1,
		FrequencyType:     "months",
	})
	if err != nil {
		// the pending row stays behind as an orphan; it never reaches active
		metrics.IncCheckout("provider_error")
		log.Error().Err(err).Str("provider", u.gateway.Name()).Msg("create preapproval failed")
		return nil, err
	}

	if err := u.subs.AttachCheckout(ctx, nil, sub.ID, pre.ID, pre.InitPoint); err != nil {
		metrics.IncCheckout("error")
		log.Error().Err(err).Str("external_id", pre.ID).Msg("attach checkout failed")
		return nil, fmt.Errorf("attach checkout: %w", err)
	}

	metrics.IncCheckout("created")
	log.Info().Str("external_id", pre.ID).Msg("checkout created")
	return &CheckoutResult{InitPoint: pre.InitPoint, SubscriptionID: sub.ID}, nil
}

// CheckoutLockKey names the per-user checkout lock.
func CheckoutLockKey(userID string) string { return "lock:checkout:" + userID }

// CheckoutRateKey names the per-user checkout attempt counter.
func CheckoutRateKey(userID string) string { return "rate_limit:checkout:" + userID }
