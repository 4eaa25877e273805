package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"zapfollow-billing/internal/usecase"
)

// PendingReconciler periodically re-checks pending subscriptions whose webhook
// never arrived, using the same reconciliation as the webhook.
type PendingReconciler struct {
	uc         usecase.ReconcileUseCase
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending row must be to retry
	batch      int
	log        *zerolog.Logger
}

func NewPendingReconciler(uc usecase.ReconcileUseCase, interval, staleAfter time.Duration, logger *zerolog.Logger) *PendingReconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	l := logger.With().Str("component", "PendingReconciler").Logger()
	return &PendingReconciler{uc: uc, interval: interval, staleAfter: staleAfter, batch: 200, log: &l}
}

func (w *PendingReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("stale_after", w.staleAfter).Msg("Starting pending reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping pending reconciler")
			return ctx.Err()
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PendingReconciler) tick(ctx context.Context) {
	n, err := w.uc.SweepStale(ctx, time.Now().Add(-w.staleAfter), w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("pending sweep failed")
	}
	if n > 0 {
		w.log.Info().Int("count", n).Msg("pending subscriptions reconciled")
	}
}
