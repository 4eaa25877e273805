//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"zapfollow-billing/internal/domain"
	"zapfollow-billing/internal/domain/model"
)

func TestProfileRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	repo := NewProfileRepo(testPool)
	ctx := context.Background()

	t.Run("should flip the plan of an existing profile", func(t *testing.T) {
		cleanup(t)
		userID := uuid.NewString()
		seedProfile(t, userID, "free")

		if err := repo.SetPlan(ctx, nil, userID, model.PlanPro); err != nil {
			t.Fatalf("SetPlan() failed: %v", err)
		}
		plan, err := repo.GetPlan(ctx, nil, userID)
		if err != nil {
			t.Fatalf("GetPlan() failed: %v", err)
		}
		if plan != model.PlanPro {
			t.Errorf("expected plan pro, but got %s", plan)
		}
	})

	t.Run("should report a missing profile", func(t *testing.T) {
		cleanup(t)
		userID := uuid.NewString()

		if _, err := repo.GetPlan(ctx, nil, userID); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, but got %v", err)
		}
		if err := repo.SetPlan(ctx, nil, userID, model.PlanPro); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, but got %v", err)
		}
	})
}
