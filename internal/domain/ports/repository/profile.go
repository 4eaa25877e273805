package repository

import (
	"context"

	"zapfollow-billing/internal/domain/model"
)

// ProfileRepository reads and writes the plan entitlement on user profiles.
type ProfileRepository interface {
	GetPlan(ctx context.Context, tx Tx, userID string) (model.PlanTier, error)
	SetPlan(ctx context.Context, tx Tx, userID string, plan model.PlanTier) error
}
