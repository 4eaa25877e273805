package repository

import (
	"context"
	"time"

	"zapfollow-billing/internal/domain/model"
)

// SubscriptionRepository is the port for the subscriptions table.
// Lookups that find nothing return domain.ErrNotFound.
type SubscriptionRepository interface {
	Create(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	FindByExternalID(ctx context.Context, tx Tx, externalID string) (*model.Subscription, error)
	FindActiveByUser(ctx context.Context, tx Tx, userID string) (*model.Subscription, error)

	// AttachCheckout stores the provider id and hosted checkout URL after a successful create.
	AttachCheckout(ctx context.Context, tx Tx, id, externalID, initPoint string) error
	// AttachExternalID sets the provider id on a row that never received one.
	AttachExternalID(ctx context.Context, tx Tx, id, externalID string) error
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.SubscriptionStatus, at time.Time) error

	// ListStalePending returns pending rows with a provider id created inside
	// [createdAfter, createdBefore), least recently updated first.
	ListStalePending(ctx context.Context, tx Tx, createdAfter, createdBefore time.Time, limit int) ([]*model.Subscription, error)
	CountByStatus(ctx context.Context, tx Tx) (map[model.SubscriptionStatus]int, error)
}
