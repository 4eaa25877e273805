package model

import (
	"strings"
	"time"

	"zapfollow-billing/internal/domain"

	"github.com/google/uuid"
)

type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// Subscription is one checkout attempt for the paid tier. Rows are never deleted.
type Subscription struct {
	ID          string // UUID, sent to the provider as external_reference
	UserID      string // owning user (profiles.id)
	Status      SubscriptionStatus
	Amount      int64  // price snapshot in minor units (centavos)
	Currency    string // ISO code, e.g. "BRL"
	ExternalID  string // provider preapproval id; empty until the provider confirms
	ExternalRef string // equals ID once created
	InitPoint   string // provider-hosted checkout URL; empty until the provider confirms
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewPendingSubscription creates the local row for a checkout attempt.
// ExternalRef is set to the row id: the webhook falls back to it when the
// provider id was never attached.
func NewPendingSubscription(userID string, amount int64, currency string) (*Subscription, error) {
	if userID == "" || amount <= 0 || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	id := uuid.NewString()
	return &Subscription{
		ID:          id,
		UserID:      userID,
		Status:      SubscriptionStatusPending,
		Amount:      amount,
		Currency:    strings.ToUpper(currency),
		ExternalRef: id,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// StatusFromProvider maps a provider preapproval status to the internal enum.
func StatusFromProvider(raw string) SubscriptionStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "authorized":
		return SubscriptionStatusActive
	case "paused", "cancelled":
		return SubscriptionStatusCancelled
	default:
		return SubscriptionStatusPending
	}
}
