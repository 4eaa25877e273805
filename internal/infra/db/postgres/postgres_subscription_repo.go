package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"zapfollow-billing/internal/domain"
	"zapfollow-billing/internal/domain/model"
	"zapfollow-billing/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subColumns = `id, user_id, status, amount, currency, external_id, external_ref, init_point, created_at, updated_at`

func (r *subscriptionRepo) Create(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (
  id, user_id, status, amount, currency, external_id, external_ref, init_point, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);`

	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.UserID, string(s.Status), s.Amount, s.Currency,
		nullIfEmpty(s.ExternalID), nullIfEmpty(s.ExternalRef), nullIfEmpty(s.InitPoint),
		s.CreatedAt, s.UpdatedAt)
	return mapExecErr(err)
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	// external references arrive from the provider and may not be uuids at all
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	q := `SELECT ` + subColumns + ` FROM subscriptions WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	return r.queryOne(ctx, tx, q+";", id)
}

func (r *subscriptionRepo) FindByExternalID(ctx context.Context, tx repository.Tx, externalID string) (*model.Subscription, error) {
	q := `SELECT ` + subColumns + ` FROM subscriptions WHERE external_id=$1 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	return r.queryOne(ctx, tx, q+";", externalID)
}

func (r *subscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	const q = `
SELECT ` + subColumns + `
  FROM subscriptions
 WHERE user_id=$1 AND status='active'
 ORDER BY updated_at DESC
 LIMIT 1;`
	return r.queryOne(ctx, tx, q, userID)
}

func (r *subscriptionRepo) AttachCheckout(ctx context.Context, tx repository.Tx, id, externalID, initPoint string) error {
	const q = `UPDATE subscriptions SET external_id=$2, external_ref=COALESCE(external_ref, id::text), init_point=$3, updated_at=NOW() WHERE id=$1;`
	return r.execOne(ctx, tx, q, id, nullIfEmpty(externalID), nullIfEmpty(initPoint))
}

func (r *subscriptionRepo) AttachExternalID(ctx context.Context, tx repository.Tx, id, externalID string) error {
	const q = `UPDATE subscriptions SET external_id=$2, updated_at=NOW() WHERE id=$1 AND external_id IS NULL;`
	return r.execOne(ctx, tx, q, id, externalID)
}

func (r *subscriptionRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.SubscriptionStatus, at time.Time) error {
	const q = `UPDATE subscriptions SET status=$2, updated_at=$3 WHERE id=$1;`
	return r.execOne(ctx, tx, q, id, string(status), at)
}

func (r *subscriptionRepo) ListStalePending(ctx context.Context, tx repository.Tx, createdAfter, createdBefore time.Time, limit int) ([]*model.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT ` + subColumns + `
  FROM subscriptions
 WHERE status='pending' AND external_id IS NOT NULL
   AND created_at >= $1 AND created_at < $2
 ORDER BY updated_at ASC, created_at ASC
 LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, createdAfter, createdBefore, limit)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSub(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *subscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM subscriptions GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	out := make(map[model.SubscriptionStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[model.SubscriptionStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

// --- helpers ---

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	s, err := scanSub(row)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *subscriptionRepo) execOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) error {
	tag, err := execSQL(ctx, r.pool, tx, q, args...)
	if err != nil {
		return mapExecErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanSub(row pgx.Row) (*model.Subscription, error) {
	var (
		s                              model.Subscription
		status                         string
		externalID, externalRef, point *string
	)
	if err := row.Scan(&s.ID, &s.UserID, &status, &s.Amount, &s.Currency, &externalID, &externalRef, &point, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	s.Status = model.SubscriptionStatus(status)
	if externalID != nil {
		s.ExternalID = *externalID
	}
	if externalRef != nil {
		s.ExternalRef = *externalRef
	}
	if point != nil {
		s.InitPoint = *point
	}
	return &s, nil
}
