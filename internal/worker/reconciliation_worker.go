package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/eventgate/ticket-lifecycle/internal/config"
	"github.com/eventgate/ticket-lifecycle/internal/domain"
	"github.com/eventgate/ticket-lifecycle/internal/repository"
	"github.com/eventgate/ticket-lifecycle/internal/service"
)

// reconcilerActorID identifies this job on audit envelopes.
const reconcilerActorID = "reconciler"

// Report summarizes one reconciliation pass.
type Report struct {
	Incomplete int `json:"incomplete"`
	Forfeited  int `json:"forfeited"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// ReconcilerDependencies bundles collaborators for the reconciler.
type ReconcilerDependencies struct {
	Timeline  *service.TimelineService
	Lifecycle *service.LifecycleService
	Entities  repository.LifecycleRepository
	Config    config.WorkerConfig
	Clock     func() time.Time
	Logger    *zap.Logger
}

// Reconciler forfeits stakes of tickets that were never checked in once
// their event has been over for the grace period.
type Reconciler struct {
	timeline  *service.TimelineService
	lifecycle *service.LifecycleService
	entities  repository.LifecycleRepository
	cfg       config.WorkerConfig
	clock     func() time.Time
	logger    *zap.Logger
}

// NewReconciler constructs the worker.
func NewReconciler(deps ReconcilerDependencies) *Reconciler {
	r := &Reconciler{
		timeline:  deps.Timeline,
		lifecycle: deps.Lifecycle,
		entities:  deps.Entities,
		cfg:       deps.Config,
		clock:     deps.Clock,
		logger:    deps.Logger,
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// Start runs a pass every interval until ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval())
	defer ticker.Stop()
	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("reconciliation pass failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce scans incomplete stakes inside the lookback window.
func (r *Reconciler) RunOnce(ctx context.Context) (Report, error) {
	var report Report
	now := r.clock().UTC()
	items, err := r.timeline.IncompleteSince(ctx, now.Add(-r.cfg.Lookback()))
	if err != nil {
		return report, err
	}
	report.Incomplete = len(items)

	for _, item := range items {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		due, err := r.forfeitDue(ctx, item.EntityID, now)
		if err != nil {
			report.Failed++
			r.logger.Error("reconciliation lookup failed", zap.String("ticket_id", item.EntityID), zap.Error(err))
			continue
		}
		if !due {
			report.Skipped++
			r.logger.Debug("stake awaiting check-in",
				zap.String("ticket_id", item.EntityID),
				zap.String("correlation_id", item.CorrelationID),
				zap.Time("staked_at", item.StartedAt))
			continue
		}

		causation := item.StartEnvelopeID
		_, err = r.lifecycle.Transition(ctx, service.TransitionInput{
			Kind:          domain.EntityKindTicket,
			EntityID:      item.EntityID,
			Target:        domain.TicketStatusForfeited,
			Actor:         domain.Actor{Type: domain.ActorTypeCron, ID: reconcilerActorID},
			Reason:        "no check-in before the event ended",
			CorrelationID: item.CorrelationID,
			CausationID:   &causation,
		})
		switch {
		case err == nil:
			report.Forfeited++
			r.logger.Info("stake forfeited for no-show",
				zap.String("ticket_id", item.EntityID),
				zap.String("correlation_id", item.CorrelationID))
		case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrConcurrentModification):
			// Checked in or settled while we were looking.
			report.Skipped++
		default:
			report.Failed++
			r.logger.Error("no-show forfeit failed", zap.String("ticket_id", item.EntityID), zap.Error(err))
		}
	}
	return report, nil
}

// forfeitDue reports whether the ticket is still staked and its event
// ended at least the grace period ago.
func (r *Reconciler) forfeitDue(ctx context.Context, ticketID string, now time.Time) (bool, error) {
	ticket, err := r.entities.Get(ctx, domain.EntityKindTicket, ticketID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if ticket.Status != domain.TicketStatusStaked {
		return false, nil
	}
	event, err := r.entities.Get(ctx, domain.EntityKindEvent, ticket.EventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	endedAt, err := r.endedAt(ctx, event)
	if err != nil || endedAt == nil {
		return false, err
	}
	return !endedAt.Add(r.cfg.NoShowGrace()).After(now), nil
}

// endedAt is when the event entered ended. For an archived event that is
// the EVENT_ENDED envelope, not the archive time; an event archived
// without ever ending yields nil.
func (r *Reconciler) endedAt(ctx context.Context, event *domain.LifecycleEntity) (*time.Time, error) {
	switch event.Status {
	case domain.EventStatusEnded:
		return event.TransitionedAt, nil
	case domain.EventStatusArchived:
		ended, err := r.timeline.LastOccurrence(ctx, domain.EntityKindEvent, event.ID, domain.EventTypeEventEnded)
		if err != nil || ended == nil {
			return nil, err
		}
		return &ended.CreatedAt, nil
	default:
		return nil, nil
	}
}
