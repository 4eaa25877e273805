// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"zapfollow-billing/internal/domain"
	"zapfollow-billing/internal/domain/model"
	"zapfollow-billing/internal/domain/ports/adapter"
	"zapfollow-billing/internal/domain/ports/repository"
	"zapfollow-billing/internal/infra/logging"
	"zapfollow-billing/internal/infra/metrics"
)

// Soft outcomes: the notification is acknowledged but nothing changes.
const (
	NoteNoResourceID         = "no preapproval id"
	NotePreapprovalNotFound  = "preapproval not found"
	NoteSubscriptionNotFound = "subscription not found"
)

// MaxPendingAge bounds how far back the sweeper looks; older pending rows are
// treated as abandoned checkouts.
const MaxPendingAge = 30 * 24 * time.Hour

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// ReconcileUseCase applies the provider's authoritative state to local records.
type ReconcileUseCase interface {
	// Reconcile re-fetches preapproval resourceID and converges the subscription
	// row and the owner's plan. Safe to repeat.
	Reconcile(ctx context.Context, resourceID string) (*ReconcileOutcome, error)
	// SweepStale reconciles pending rows older than olderThan (but younger than
	// MaxPendingAge) that already carry a provider id, least recently checked
	// first. Returns how many rows changed status.
	SweepStale(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

type ReconcileOutcome struct {
	Status         model.SubscriptionStatus // empty when Note is set
	Note           string
	SubscriptionID string
	Changed        bool // row status differs from what was stored
}

type reconcileUC struct {
	subs     repository.SubscriptionRepository
	profiles repository.ProfileRepository
	gateway  adapter.PreapprovalGateway
	tm       repository.TransactionManager
	log      *zerolog.Logger
	now      func() time.Time
}

func NewReconcileUseCase(
	subs repository.SubscriptionRepository,
	profiles repository.ProfileRepository,
	gateway adapter.PreapprovalGateway,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *reconcileUC {
	return &reconcileUC{
		subs:     subs,
		profiles: profiles,
		gateway:  gateway,
		tm:       tm,
		log:      logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (u *reconcileUC) Reconcile(ctx context.Context, resourceID string) (*ReconcileOutcome, error) {
	defer logging.TraceDuration(u.log, "ReconcileUC.Reconcile")()

	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" {
		return &ReconcileOutcome{Note: NoteNoResourceID}, nil
	}
	log := logging.With(ctx, u.log).With().Str("preapproval_id", resourceID).Logger()

	// The notification body only says "something changed"; the provider is the source of truth.
	pre, err := u.gateway.GetPreapproval(ctx, resourceID)
	if err != nil {
		log.Warn().Err(err).Msg("preapproval fetch failed")
		return &ReconcileOutcome{Note: NotePreapprovalNotFound}, nil
	}
	providerID := pre.ID
	if providerID == "" {
		providerID = resourceID
	}
	status := model.StatusFromProvider(pre.Status)

	out := &ReconcileOutcome{}
	err = u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := u.locate(ctx, tx, providerID, pre.ExternalReference)
		if errors.Is(err, domain.ErrNotFound) {
			out.Note = NoteSubscriptionNotFound
			return nil
		}
		if err != nil {
			return err
		}
		out.SubscriptionID = sub.ID
		out.Status = status
		out.Changed = sub.Status != status

		if err := u.subs.UpdateStatus(ctx, tx, sub.ID, status, u.now()); err != nil {
			return fmt.Errorf("update subscription status: %w", err)
		}

		plan, ok := model.PlanForStatus(status)
		if !ok {
			return nil
		}
		if plan == model.PlanFree {
			// pro stays while any other row of the user is still active
			other, err := u.subs.FindActiveByUser(ctx, tx, sub.UserID)
			switch {
			case err == nil:
				log.Info().Str("user_id", sub.UserID).Str("active_subscription_id", other.ID).
					Msg("another subscription is active; plan kept")
				return nil
			case !errors.Is(err, domain.ErrNotFound):
				return fmt.Errorf("find active subscription: %w", err)
			}
		}
		if err := u.profiles.SetPlan(ctx, tx, sub.UserID, plan); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				log.Warn().Str("user_id", sub.UserID).Msg("profile missing; plan not updated")
				return nil
			}
			return fmt.Errorf("set plan: %w", err)
		}
		metrics.IncPlanChange(plan)
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("reconcile failed")
		return nil, err
	}

	if out.Note != "" {
		log.Warn().Str("external_reference", pre.ExternalReference).Msg(out.Note)
		return out, nil
	}
	if out.Changed {
		metrics.IncSubscriptionTransition(status)
	}
	log.Info().
		Str("subscription_id", out.SubscriptionID).
		Str("provider_status", pre.Status).
		Str("status", string(status)).
		Bool("changed", out.Changed).
		Msg("subscription reconciled")
	return out, nil
}

// locate finds the row by provider id, then by the external reference (our row id).
// A row reached through the reference adopts the provider id when it has none yet;
// a row already bound to a different provider id is not ours to touch.
func (u *reconcileUC) locate(ctx context.Context, tx repository.Tx, providerID, externalRef string) (*model.Subscription, error) {
	sub, err := u.subs.FindByExternalID(ctx, tx, providerID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	externalRef = strings.TrimSpace(externalRef)
	if externalRef == "" {
		return nil, domain.ErrNotFound
	}
	sub, err = u.subs.FindByID(ctx, tx, externalRef)
	if err != nil {
		return nil, err
	}
	switch sub.ExternalID {
	case "":
		if err := u.subs.AttachExternalID(ctx, tx, sub.ID, providerID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("attach external id: %w", err)
		}
		sub.ExternalID = providerID
		return sub, nil
	case providerID:
		return sub, nil
	default:
		return nil, domain.ErrNotFound
	}
}

func (u *reconcileUC) SweepStale(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	defer logging.TraceDuration(u.log, "ReconcileUC.SweepStale")()

	pending, err := u.subs.ListStalePending(ctx, nil, olderThan.Add(-MaxPendingAge), olderThan, limit)
	if err != nil {
		return 0, fmt.Errorf("list stale pending: %w", err)
	}
	changed := 0
	for _, s := range pending {
		if ctx.Err() != nil {
			return changed, ctx.Err()
		}
		out, err := u.Reconcile(logging.WithSubscriptionID(ctx, s.ID), s.ExternalID)
		if err != nil {
			continue
		}
		if out.Changed {
			changed++
		}
	}
	return changed, nil
}
