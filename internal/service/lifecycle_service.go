package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventgate/ticket-lifecycle/internal/domain"
	"github.com/eventgate/ticket-lifecycle/internal/events"
	"github.com/eventgate/ticket-lifecycle/internal/observability"
	"github.com/eventgate/ticket-lifecycle/internal/repository"
	apperrors "github.com/eventgate/ticket-lifecycle/pkg/util/errorutil"
)

// StatusMirror is a best-effort copy of committed statuses outside the
// authoritative store.
type StatusMirror interface {
	Name() string
	MirrorStatus(ctx context.Context, entity domain.LifecycleEntity) error
}

// LifecycleService is the command and query surface over events and
// tickets used by the API layer.
type LifecycleService struct {
	repos      repository.Repositories
	tx         repository.TxRunner
	executor   *TransitionExecutor
	ledger     *AuditLedger
	settlement *SettlementService
	mirror     StatusMirror
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	Repos      repository.Repositories
	Tx         repository.TxRunner
	Executor   *TransitionExecutor
	Ledger     *AuditLedger
	Settlement *SettlementService
	Mirror     StatusMirror
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// TransitionInput is a transition as requested by a caller. Payload holds
// the target-specific fields decoded into the command.
type TransitionInput struct {
	Kind          domain.EntityKind
	EntityID      string
	Target        domain.Status
	Actor         domain.Actor
	Reason        string
	Payload       map[string]any
	Metadata      map[string]any
	CorrelationID string
	CausationID   *string
}

// StatusView reports where an entity is and where it may go next.
type StatusView struct {
	Kind             domain.EntityKind `json:"entity_kind"`
	EntityID         string            `json:"entity_id"`
	Status           domain.Status     `json:"status"`
	PreviousStatus   *domain.Status    `json:"previous_status,omitempty"`
	TransitionedAt   *time.Time        `json:"transitioned_at,omitempty"`
	ValidTransitions []domain.Status   `json:"valid_transitions"`
}

// RegisterEventInput describes a new draft event.
type RegisterEventInput struct {
	OrganizerID string
	Title       string
	StartsAt    *time.Time
	Actor       domain.Actor
}

// RegisterTicketInput describes a new registration.
type RegisterTicketInput struct {
	EventID  string
	HolderID string
	// Status defaults to pending.
	Status domain.Status
	Actor  domain.Actor
}

// StakeInput asks to verify a stake and, on success, stake the ticket.
type StakeInput struct {
	TicketID      string
	Wallet        string
	Reference     string
	Actor         domain.Actor
	CorrelationID string
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	s := &LifecycleService{
		repos:      deps.Repos,
		tx:         deps.Tx,
		executor:   deps.Executor,
		ledger:     deps.Ledger,
		settlement: deps.Settlement,
		mirror:     deps.Mirror,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Transition resolves the command for the target and executes it.
func (s *LifecycleService) Transition(ctx context.Context, in TransitionInput) (*TransitionResult, error) {
	if !in.Actor.Type.Valid() {
		return nil, apperrors.NewValidationError("actor type is required", map[string]any{"actor_type": in.Actor.Type})
	}
	cmd, err := NewCommand(in.Kind, in.Target, in.Payload)
	if err != nil {
		var te *domain.TransitionError
		if errors.As(err, &te) {
			err = s.enrichUnknownTarget(ctx, in)
		}
		s.recordOutcome(in.Kind, in.Target, err)
		return nil, err
	}

	return s.run(ctx, cmd, in)
}

func (s *LifecycleService) run(ctx context.Context, cmd Command, in TransitionInput) (*TransitionResult, error) {
	result, err := s.executor.Execute(ctx, TransitionRequest{
		Command:       cmd,
		EntityID:      in.EntityID,
		TriggeredBy:   in.Actor,
		Reason:        strings.TrimSpace(in.Reason),
		Metadata:      in.Metadata,
		CorrelationID: in.CorrelationID,
		CausationID:   in.CausationID,
	})
	s.recordOutcome(cmd.EntityKind(), cmd.Target(), err)
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, result, in.Actor)
	return result, nil
}

// enrichUnknownTarget reports an unmappable target against the entity's
// real status, or ENTITY_NOT_FOUND when the entity is missing.
func (s *LifecycleService) enrichUnknownTarget(ctx context.Context, in TransitionInput) error {
	if !in.Kind.Valid() {
		return domain.NewInvalidTransition(in.Kind, in.EntityID, "", in.Target, "unknown entity kind")
	}
	entity, err := s.repos.Lifecycle.Get(ctx, in.Kind, in.EntityID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewEntityNotFound(in.Kind, in.EntityID)
		}
		return domain.NewDatabaseError(in.Kind, in.EntityID, err)
	}
	return domain.NewInvalidTransition(in.Kind, in.EntityID, entity.Status, in.Target, "unknown target status")
}

// afterCommit runs the non-authoritative follow-ups of a transition. None
// of them can fail the request.
func (s *LifecycleService) afterCommit(ctx context.Context, result *TransitionResult, actor domain.Actor) {
	prev := result.PreviousStatus
	at := result.TransitionedAt
	entity := domain.LifecycleEntity{
		Kind:           result.Kind,
		ID:             result.EntityID,
		Status:         result.NewStatus,
		PreviousStatus: &prev,
		TransitionedAt: &at,
		OwnerID:        result.OwnerID,
		EventID:        result.EventID,
	}
	if err := s.mirrorStatus(ctx, entity); err != nil {
		var swe *domain.SecondaryWriteError
		if errors.As(err, &swe) {
			s.metrics.RecordSecondaryWriteFailure(swe.Channel)
		}
		s.logger.Warn("secondary write failed",
			zap.String("code", string(domain.CodeSecondaryWriteFailed)),
			zap.String("entity_kind", string(result.Kind)),
			zap.String("entity_id", result.EntityID),
			zap.String("status", string(result.NewStatus)),
			zap.Error(err))
	}

	if s.dispatcher == nil {
		return
	}
	err := s.dispatcher.Publish(ctx, events.Event{
		ID:        result.EnvelopeID,
		Type:      events.EventLifecycleTransitioned,
		Kind:      result.Kind,
		EntityID:  result.EntityID,
		Actor:     actor,
		Timestamp: result.TransitionedAt,
		Payload: events.TransitionedPayload{
			PreviousStatus: result.PreviousStatus,
			NewStatus:      result.NewStatus,
			OwnerID:        result.OwnerID,
			EventID:        result.EventID,
			EnvelopeID:     result.EnvelopeID,
			CorrelationID:  result.CorrelationID,
			Details:        result.Envelope.Payload,
		},
	})
	if err != nil {
		s.logger.Warn("transition subscribers failed",
			zap.String("entity_id", result.EntityID),
			zap.String("correlation_id", result.CorrelationID),
			zap.Error(err))
	}
}

// mirrorStatus writes the side channel and wraps any failure as a
// SecondaryWriteError.
func (s *LifecycleService) mirrorStatus(ctx context.Context, entity domain.LifecycleEntity) error {
	if s.mirror == nil {
		return nil
	}
	if err := s.mirror.MirrorStatus(ctx, entity); err != nil {
		return &domain.SecondaryWriteError{Channel: s.mirror.Name(), Kind: entity.Kind, EntityID: entity.ID, Err: err}
	}
	return nil
}

func (s *LifecycleService) recordOutcome(kind domain.EntityKind, target domain.Status, err error) {
	outcome := "ok"
	if err != nil {
		var te *domain.TransitionError
		if errors.As(err, &te) {
			outcome = string(te.Code)
		} else {
			outcome = apperrors.ToDomainError(err).Code
		}
	}
	s.metrics.RecordTransition(string(kind), string(target), outcome)
}

// CurrentStatus returns the stored status and its structurally legal targets.
func (s *LifecycleService) CurrentStatus(ctx context.Context, kind domain.EntityKind, id string) (*StatusView, error) {
	entity, err := s.repos.Lifecycle.Get(ctx, kind, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewEntityNotFound(kind, id)
		}
		return nil, domain.NewDatabaseError(kind, id, err)
	}
	return &StatusView{
		Kind:             kind,
		EntityID:         id,
		Status:           entity.Status,
		PreviousStatus:   entity.PreviousStatus,
		TransitionedAt:   entity.TransitionedAt,
		ValidTransitions: domain.LegalTargets(kind, entity.Status),
	}, nil
}

// AuditTrail returns up to limit envelopes for the entity in order.
func (s *LifecycleService) AuditTrail(ctx context.Context, kind domain.EntityKind, id string, limit int, order repository.SortOrder) ([]domain.AuditEnvelope, error) {
	if _, err := s.CurrentStatus(ctx, kind, id); err != nil {
		return nil, err
	}
	return s.ledger.ByEntity(ctx, kind, id, limit, order)
}

// VerifyStake checks a stake without changing the ticket.
func (s *LifecycleService) VerifyStake(ctx context.Context, ticketID, wallet, reference string) (VerificationResult, error) {
	return s.settlement.VerifyStake(ctx, ticketID, wallet, reference)
}

// VerifyAndStake verifies the stake and then stakes the ticket with the
// verified details. A failed verification writes nothing.
func (s *LifecycleService) VerifyAndStake(ctx context.Context, in StakeInput) (*TransitionResult, error) {
	res, err := s.settlement.VerifyStake(ctx, in.TicketID, in.Wallet, in.Reference)
	if err != nil {
		s.recordOutcome(domain.EntityKindTicket, domain.TicketStatusStaked, err)
		return nil, err
	}
	if !in.Actor.Type.Valid() {
		return nil, apperrors.NewValidationError("actor type is required", nil)
	}
	return s.run(ctx, StakeTicket{Stake: *res.Info}, TransitionInput{
		Kind:          domain.EntityKindTicket,
		EntityID:      in.TicketID,
		Target:        domain.TicketStatusStaked,
		Actor:         in.Actor,
		Metadata:      map[string]any{"verification": "chain"},
		CorrelationID: in.CorrelationID,
	})
}

// RegisterEvent creates a draft event and its creation envelope atomically.
func (s *LifecycleService) RegisterEvent(ctx context.Context, in RegisterEventInput) (*domain.Event, error) {
	if strings.TrimSpace(in.OrganizerID) == "" {
		return nil, apperrors.NewValidationError("organizer id is required", nil)
	}
	event := &domain.Event{
		OrganizerID: in.OrganizerID,
		Title:       strings.TrimSpace(in.Title),
		StartsAt:    in.StartsAt,
		Status:      domain.EventStatusDraft,
	}
	err := s.tx.WithinTx(ctx, func(r repository.Repositories) error {
		if err := r.Events.Create(ctx, event); err != nil {
			return err
		}
		payload := map[string]any{"newStatus": string(event.Status), "title": event.Title}
		if event.StartsAt != nil {
			payload["startsAt"] = event.StartsAt.UTC().Format(time.RFC3339)
		}
		return r.Audit.Append(ctx, &domain.AuditEnvelope{
			EntityType:    domain.EntityKindEvent,
			EntityID:      event.ID,
			EventType:     domain.EventTypeEventCreated,
			Actor:         in.Actor,
			CorrelationID: uuid.NewString(),
			Payload:       payload,
		})
	})
	if err != nil {
		s.logger.Error("register event failed", zap.String("organizer_id", in.OrganizerID), zap.Error(err))
		return nil, domain.NewDatabaseError(domain.EntityKindEvent, event.ID, err)
	}
	return event, nil
}

// RegisterTicket creates a ticket for an event that still accepts
// registrations.
func (s *LifecycleService) RegisterTicket(ctx context.Context, in RegisterTicketInput) (*domain.Ticket, error) {
	if strings.TrimSpace(in.HolderID) == "" {
		return nil, apperrors.NewValidationError("holder id is required", nil)
	}
	status := in.Status
	if status == "" {
		status = domain.TicketStatusPending
	}
	switch status {
	case domain.TicketStatusPending, domain.TicketStatusPendingApproval, domain.TicketStatusIssued:
	default:
		return nil, apperrors.NewValidationError("tickets start as pending, pending_approval or issued", map[string]any{"status": status})
	}

	event, err := s.repos.Events.GetByID(ctx, in.EventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewEntityNotFound(domain.EntityKindEvent, in.EventID)
		}
		return nil, domain.NewDatabaseError(domain.EntityKindEvent, in.EventID, err)
	}
	if event.Status == domain.EventStatusEnded || event.Status == domain.EventStatusArchived {
		return nil, apperrors.NewConflict("event is no longer accepting registrations", map[string]any{"event_status": event.Status})
	}

	ticket := &domain.Ticket{EventID: in.EventID, HolderID: in.HolderID, Status: status}
	err = s.tx.WithinTx(ctx, func(r repository.Repositories) error {
		if err := r.Tickets.Create(ctx, ticket); err != nil {
			return err
		}
		return r.Audit.Append(ctx, &domain.AuditEnvelope{
			EntityType:    domain.EntityKindTicket,
			EntityID:      ticket.ID,
			EventType:     domain.EventTypeTicketRegistered,
			Actor:         in.Actor,
			CorrelationID: uuid.NewString(),
			Payload:       map[string]any{"newStatus": string(status), "eventId": in.EventID, "holderId": in.HolderID},
		})
	})
	if err != nil {
		s.logger.Error("register ticket failed", zap.String("event_id", in.EventID), zap.Error(err))
		return nil, domain.NewDatabaseError(domain.EntityKindTicket, ticket.ID, err)
	}
	return ticket, nil
}
