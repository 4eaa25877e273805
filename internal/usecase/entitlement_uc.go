package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"zapfollow-billing/internal/domain"
	"zapfollow-billing/internal/domain/model"
	"zapfollow-billing/internal/domain/ports/repository"
)

var _ EntitlementUseCase = (*entitlementUC)(nil)

// EntitlementUseCase answers which plan a user currently holds.
type EntitlementUseCase interface {
	CurrentPlan(ctx context.Context, userID string) (model.PlanTier, error)
}

type entitlementUC struct {
	profiles repository.ProfileRepository
	log      *zerolog.Logger
}

func NewEntitlementUseCase(profiles repository.ProfileRepository, logger *zerolog.Logger) *entitlementUC {
	return &entitlementUC{profiles: profiles, log: logger}
}

// CurrentPlan treats a missing profile as the free tier.
func (u *entitlementUC) CurrentPlan(ctx context.Context, userID string) (model.PlanTier, error) {
	if userID == "" {
		return "", domain.ErrUnauthorized
	}
	plan, err := u.profiles.GetPlan(ctx, nil, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return model.PlanFree, nil
	}
	if err != nil {
		return "", err
	}
	if plan != model.PlanPro {
		return model.PlanFree, nil
	}
	return plan, nil
}
