//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"zapfollow-billing/internal/domain"
	"zapfollow-billing/internal/domain/model"
	"zapfollow-billing/internal/domain/ports/adapter"
	"zapfollow-billing/internal/domain/ports/repository"
	"zapfollow-billing/internal/usecase"
)

func testCheckoutConfig() usecase.CheckoutConfig {
	return usecase.CheckoutConfig{
		AppURL:          "https://app.zapfollow.test/",
		DashboardPath:   "/dashboard",
		ReturnPath:      "/billing/mercadopago/return",
		NotificationURL: "https://api.zapfollow.test/api/v1/billing/webhook?token=s3cret",
		PriceCents:      3990,
		Currency:        "BRL",
		Reason:          "ZapFollow Pro",
		LockTTL:         time.Second,
		RateLimit:       10,
		RateWindow:      time.Minute,
	}
}

var testUser = adapter.Identity{UserID: "user-123", Email: "u@example.com"}

func TestCheckoutUseCase_Initiate(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()

	t.Run("should create a pending row and return the provider checkout url", func(t *testing.T) {
		// --- Arrange ---
		subs := NewMockSubscriptionRepo()
		gw := NewMockGateway()
		uc := usecase.NewCheckoutUseCase(subs, gw, nil, nil, testCheckoutConfig(), logger)

		// --- Act ---
		res, err := uc.Initiate(ctx, testUser, "pro")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if res.AlreadyActive {
			t.Fatal("expected a new checkout, but got alreadyActive")
		}
		if res.InitPoint == "" {
			t.Fatal("expected an init point, but got empty")
		}
		row := subs.Get(res.SubscriptionID)
		if row == nil {
			t.Fatal("expected the pending row to be stored")
		}
		if row.UserID != testUser.UserID || row.Status != model.SubscriptionStatusPending {
			t.Errorf("unexpected row: user=%s status=%s", row.UserID, row.Status)
		}
		if row.Amount != 3990 || row.Currency != "BRL" {
			t.Errorf("expected price snapshot 3990 BRL, but got %d %s", row.Amount, row.Currency)
		}
		if row.ExternalID != "pre_1" || row.InitPoint != res.InitPoint {
			t.Errorf("expected provider id and init point to be attached, but got %q %q", row.ExternalID, row.InitPoint)
		}

		req := gw.LastRequest
		if req.ExternalReference != row.ID {
			t.Errorf("expected external_reference to equal the row id %s, but got %s", row.ID, req.ExternalReference)
		}
		if req.BackURL != "https://app.zapfollow.test/billing/mercadopago/return" {
			t.Errorf("unexpected back url %q", req.BackURL)
		}
		if req.NotificationURL != "https://api.zapfollow.test/api/v1/billing/webhook?token=s3cret" {
			t.Errorf("unexpected notification url %q", req.NotificationURL)
		}
		if req.PayerEmail != testUser.Email || req.Amount != 3990 || req.Frequency != 1 || req.FrequencyType != "months" {
			t.Errorf("unexpected provider request: %+v", req)
		}
	})

	t.Run("should not touch the store or provider for an already active user", func(t *testing.T) {
		// --- Arrange ---
		subs := NewMockSubscriptionRepo()
		active, _ := model.NewPendingSubscription(testUser.UserID, 3990, "BRL")
		active.Status = model.SubscriptionStatusActive
		subs.Put(active)
		gw := NewMockGateway()
		uc := usecase.NewCheckoutUseCase(subs, gw, nil, nil, testCheckoutConfig(), logger)

		// --- Act ---
		res, err := uc.Initiate(ctx, testUser, "pro")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !res.AlreadyActive {
			t.Fatal("expected alreadyActive to be true")
		}
		if res.Redirect != "https://app.zapfollow.test/dashboard" {
			t.Errorf("unexpected redirect %q", res.Redirect)
		}
		if subs.CreateCalls != 0 {
			t.Errorf("expected zero inserts, but got %d", subs.CreateCalls)
		}
		if gw.CreateCalls != 0 {
			t.Errorf("expected zero provider calls, but got %d", gw.CreateCalls)
		}
	})

	t.Run("should reject any plan other than pro", func(t *testing.T) {
		subs := NewMockSubscriptionRepo()
		gw := NewMockGateway()
		uc := usecase.NewCheckoutUseCase(subs, gw, nil, nil, testCheckoutConfig(), logger)

		for _, plan := range []string{"", "free", "PRO", "enterprise"} {
			_, err := uc.Initiate(ctx, testUser, plan)
			if !errors.Is(err, domain.ErrInvalidPlan) {
				t.Errorf("plan %q: expected ErrInvalidPlan, but got %v", plan, err)
			}
		}
		if subs.CreateCalls != 0 || gw.CreateCalls != 0 {
			t.Error("expected no side effects for invalid plans")
		}
	})

	t.Run("should leave an orphaned pending row when the provider fails", func(t *testing.T) {
		// --- Arrange ---
		subs := NewMockSubscriptionRepo()
		gw := NewMockGateway()
		gw.CreateErr = fmt.Errorf("%w: payer_email invalid", domain.ErrPaymentProvider)
		uc := usecase.NewCheckoutUseCase(subs, gw, nil, nil, testCheckoutConfig(), logger)

		// --- Act ---
		_, err := uc.Initiate(ctx, testUser, "pro")

		// --- Assert ---
		if !errors.Is(err, domain.ErrPaymentProvider) {
			t.Fatalf("expected ErrPaymentProvider, but got %v", err)
		}
		if subs.Len() != 1 {
			t.Fatalf("expected one orphaned row, but got %d", subs.Len())
		}
		if _, err := subs.FindActiveByUser(ctx, nil, testUser.UserID); !errors.Is(err, domain.ErrNotFound) {
			t.Error("expected the orphan to stay non-active")
		}
	})

	t.Run("should fail when the lookup of active subscriptions fails", func(t *testing.T) {
		subs := NewMockSubscriptionRepo()
		subs.FindActiveByUserFunc = func(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
			return nil, domain.ErrOperationFailed
		}
		gw := NewMockGateway()
		uc := usecase.NewCheckoutUseCase(subs, gw, nil, nil, testCheckoutConfig(), logger)

		_, err := uc.Initiate(ctx, testUser, "pro")
		if !errors.Is(err, domain.ErrOperationFailed) {
			t.Fatalf("expected ErrOperationFailed, but got %v", err)
		}
		if gw.CreateCalls != 0 {
			t.Errorf("expected no provider call, but got %d", gw.CreateCalls)
		}
	})

	t.Run("should refuse a concurrent checkout for the same user", func(t *testing.T) {
		// --- Arrange ---
		subs := NewMockSubscriptionRepo()
		gw := NewMockGateway()
		locker := NewMockLocker()
		if _, err := locker.TryLock(ctx, usecase.CheckoutLockKey(testUser.UserID), time.Second); err != nil {
			t.Fatalf("setup lock failed: %v", err)
		}
		uc := usecase.NewCheckoutUseCase(subs, gw, locker, nil, testCheckoutConfig(), logger)

		// --- Act ---
		_, err := uc.Initiate(ctx, testUser, "pro")

		// --- Assert ---
		if !errors.Is(err, domain.ErrCheckoutInProgress) {
			t.Fatalf("expected ErrCheckoutInProgress, but got %v", err)
		}
		if subs.CreateCalls != 0 {
			t.Errorf("expected no insert while locked, but got %d", subs.CreateCalls)
		}
	})

	t.Run("should release the lock after a checkout", func(t *testing.T) {
		subs := NewMockSubscriptionRepo()
		gw := NewMockGateway()
		locker := NewMockLocker()
		uc := usecase.NewCheckoutUseCase(subs, gw, locker, nil, testCheckoutConfig(), logger)

		if _, err := uc.Initiate(ctx, testUser, "pro"); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if locker.Held(usecase.CheckoutLockKey(testUser.UserID)) {
			t.Error("expected the checkout lock to be released")
		}
	})

	t.Run("should continue when the lock backend is down", func(t *testing.T) {
		subs := NewMockSubscriptionRepo()
		gw := NewMockGateway()
		locker := NewMockLocker()
		locker.ErrOn[usecase.CheckoutLockKey(testUser.UserID)] = errors.New("redis down")
		uc := usecase.NewCheckoutUseCase(subs, gw, locker, nil, testCheckoutConfig(), logger)

		if _, err := uc.Initiate(ctx, testUser, "pro"); err != nil {
			t.Fatalf("expected checkout to proceed, but got: %v", err)
		}
		if gw.CreateCalls != 1 {
			t.Errorf("expected one provider call, but got %d", gw.CreateCalls)
		}
	})

	t.Run("should reject when rate limited", func(t *testing.T) {
		subs := NewMockSubscriptionRepo()
		gw := NewMockGateway()
		limiter := &MockRateLimiter{Allowed: false}
		uc := usecase.NewCheckoutUseCase(subs, gw, nil, limiter, testCheckoutConfig(), logger)

		_, err := uc.Initiate(ctx, testUser, "pro")
		if !errors.Is(err, domain.ErrRateLimited) {
			t.Fatalf("expected ErrRateLimited, but got %v", err)
		}
		if len(limiter.Keys) != 1 || limiter.Keys[0] != usecase.CheckoutRateKey(testUser.UserID) {
			t.Errorf("expected the per-user rate key, but got %v", limiter.Keys)
		}
		if subs.CreateCalls != 0 || gw.CreateCalls != 0 {
			t.Error("expected no side effects when rate limited")
		}
	})

	t.Run("should reject an identity without user id", func(t *testing.T) {
		uc := usecase.NewCheckoutUseCase(NewMockSubscriptionRepo(), NewMockGateway(), nil, nil, testCheckoutConfig(), logger)
		if _, err := uc.Initiate(ctx, adapter.Identity{}, "pro"); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, but got %v", err)
		}
	})
}

func TestCheckoutKeys(t *testing.T) {
	if got := usecase.CheckoutLockKey("u1"); got != "lock:checkout:u1" {
		t.Errorf("unexpected lock key %q", got)
	}
	if got := usecase.CheckoutRateKey("u1"); got != "rate_limit:checkout:u1" {
		t.Errorf("unexpected rate key %q", got)
	}
}
