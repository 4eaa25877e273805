package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"zapfollow-billing/internal/domain"
	"zapfollow-billing/internal/domain/model"
	"zapfollow-billing/internal/domain/ports/repository"
)

var _ repository.ProfileRepository = (*ProfileRepo)(nil)

// ProfileRepo touches only the plan column of the profiles table.
type ProfileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

func (r *ProfileRepo) GetPlan(ctx context.Context, tx repository.Tx, userID string) (model.PlanTier, error) {
	const q = `SELECT plan FROM profiles WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return "", err
	}
	var plan string
	if err := row.Scan(&plan); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", domain.ErrReadDatabaseRow
	}
	return model.PlanTier(plan), nil
}

// SetPlan updates an existing profile; profiles are created by the signup flow.
func (r *ProfileRepo) SetPlan(ctx context.Context, tx repository.Tx, userID string, plan model.PlanTier) error {
	const q = `UPDATE profiles SET plan=$2 WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, userID, string(plan))
	if err != nil {
		return mapExecErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
