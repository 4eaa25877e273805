package sched

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"zapfollow-billing/internal/domain/model"
	"zapfollow-billing/internal/domain/ports/repository"
	"zapfollow-billing/internal/infra/metrics"
)

// PoolStatter is satisfied by *pgxpool.Pool.
type PoolStatter interface {
	Stat() *pgxpool.Stat
}

// StatsReporter refreshes the subscription and connection pool gauges.
type StatsReporter struct {
	subs     repository.SubscriptionRepository
	pool     PoolStatter // optional
	interval time.Duration
	log      *zerolog.Logger
}

func NewStatsReporter(subs repository.SubscriptionRepository, pool PoolStatter, interval time.Duration, logger *zerolog.Logger) *StatsReporter {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	l := logger.With().Str("component", "StatsReporter").Logger()
	return &StatsReporter{subs: subs, pool: pool, interval: interval, log: &l}
}

func (r *StatsReporter) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	r.report(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			r.report(ctx)
		}
	}
}

func (r *StatsReporter) report(ctx context.Context) {
	if r.pool != nil {
		metrics.ObservePool(r.pool.Stat())
	}
	counts, err := r.subs.CountByStatus(ctx, nil)
	if err != nil {
		r.log.Warn().Err(err).Msg("count subscriptions failed")
		return
	}
	// report zero for statuses with no rows so stale values do not linger
	for _, s := range []model.SubscriptionStatus{model.SubscriptionStatusPending, model.SubscriptionStatusActive, model.SubscriptionStatusCancelled} {
		if _, ok := counts[s]; !ok {
			counts[s] = 0
		}
	}
	metrics.SetSubscriptionsTotal(counts)
}
