package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventgate/ticket-lifecycle/internal/domain"
	"github.com/eventgate/ticket-lifecycle/internal/observability"
	"github.com/eventgate/ticket-lifecycle/internal/repository"
	apperrors "github.com/eventgate/ticket-lifecycle/pkg/util/errorutil"
)

// DefaultMaxAttempts bounds the optimistic-concurrency retry loop.
const DefaultMaxAttempts = 3

// TransitionRequest asks for one entity to move to Command.Target().
type TransitionRequest struct {
	Command     Command
	EntityID    string
	TriggeredBy domain.Actor
	Reason      string
	Metadata    map[string]any
	// CorrelationID chains this transition to an existing flow; a new id
	// is generated when empty.
	CorrelationID string
	CausationID   *string
}

// TransitionResult describes a committed transition.
type TransitionResult struct {
	Success        bool              `json:"success"`
	Kind           domain.EntityKind `json:"entity_kind"`
	EntityID       string            `json:"entity_id"`
	OwnerID        string            `json:"owner_id"`
	EventID        string            `json:"event_id,omitempty"`
	PreviousStatus domain.Status     `json:"previous_status"`
	NewStatus      domain.Status     `json:"new_status"`
	TransitionedAt time.Time         `json:"transitioned_at"`
	EnvelopeID     string            `json:"envelope_id"`
	CorrelationID  string            `json:"correlation_id"`
	// Envelope is the ledger entry written with the status change.
	Envelope domain.AuditEnvelope `json:"-"`
}

// TransitionDependencies bundles collaborators for the executor.
type TransitionDependencies struct {
	Entities    repository.LifecycleRepository
	Tx          repository.TxRunner
	Guards      *GuardEvaluator
	Clock       func() time.Time
	MaxAttempts int
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// TransitionExecutor validates, guards and commits status changes. It holds
// no per-entity locks: concurrent writers are arbitrated by the
// conditional update alone.
type TransitionExecutor struct {
	entities    repository.LifecycleRepository
	tx          repository.TxRunner
	guards      *GuardEvaluator
	clock       func() time.Time
	maxAttempts int
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewTransitionExecutor constructs the executor.
func NewTransitionExecutor(deps TransitionDependencies) *TransitionExecutor {
	e := &TransitionExecutor{
		entities:    deps.Entities,
		tx:          deps.Tx,
		guards:      deps.Guards,
		clock:       deps.Clock,
		maxAttempts: deps.MaxAttempts,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
	}
	if e.guards == nil {
		e.guards = NewGuardEvaluator(nil, nil)
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.maxAttempts <= 0 {
		e.maxAttempts = DefaultMaxAttempts
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// errStaleStatus aborts the transaction when the conditional update
// matched no row.
var errStaleStatus = errors.New("status changed since read")

// Execute runs one transition. Nothing is written unless the status update
// and its audit envelope commit together.
func (e *TransitionExecutor) Execute(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	if req.Command == nil {
		return nil, apperrors.NewValidationError("transition command is required", nil)
	}
	kind, target := req.Command.EntityKind(), req.Command.Target()
	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	var lastSeen domain.Status
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		entity, err := e.entities.Get(ctx, kind, req.EntityID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.NewEntityNotFound(kind, req.EntityID)
			}
			return nil, e.databaseError(kind, req.EntityID, "load entity", err)
		}
		from := entity.Status
		lastSeen = from

		if !domain.IsLegal(kind, from, target) {
			return nil, domain.NewInvalidTransition(kind, req.EntityID, from, target, e.illegalReason(kind, from, target))
		}

		verdict, err := e.guards.Evaluate(ctx, GuardInput{
			Kind:     kind,
			EntityID: req.EntityID,
			From:     from,
			To:       target,
			Entity:   entity,
			Command:  req.Command,
		})
		if err != nil {
			var te *domain.TransitionError
			if errors.As(err, &te) {
				return nil, te
			}
			return nil, e.databaseError(kind, req.EntityID, "evaluate guards", err)
		}
		if !verdict.Allowed {
			return nil, domain.NewGuardFailed(kind, req.EntityID, from, target, verdict.Reason)
		}

		eventType, ok := domain.EventTypeFor(kind, target)
		if !ok {
			return nil, domain.NewInvalidTransition(kind, req.EntityID, from, target, fmt.Sprintf("%s is not a transition target", target))
		}

		at := e.clock().UTC().Truncate(time.Microsecond)
		envelope := domain.AuditEnvelope{
			EntityType:    kind,
			EntityID:      req.EntityID,
			EventType:     eventType,
			Actor:         req.TriggeredBy,
			CorrelationID: correlationID,
			CausationID:   req.CausationID,
			Payload:       buildPayload(req, from, target),
		}
		err = e.tx.WithinTx(ctx, func(r repository.Repositories) error {
			swapped, err := r.Lifecycle.CompareAndSetStatus(ctx, kind, req.EntityID, from, target, at)
			if err != nil {
				return err
			}
			if !swapped {
				return errStaleStatus
			}
			return r.Audit.Append(ctx, &envelope)
		})
		if errors.Is(err, errStaleStatus) {
			e.metrics.RecordTransitionRetry(string(kind))
			e.logger.Debug("transition lost race, retrying",
				zap.String("entity_kind", string(kind)),
				zap.String("entity_id", req.EntityID),
				zap.String("from", string(from)),
				zap.String("to", string(target)),
				zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.NewEntityNotFound(kind, req.EntityID)
			}
			return nil, e.databaseError(kind, req.EntityID, "commit transition", err)
		}

		return &TransitionResult{
			Success:        true,
			Kind:           kind,
			EntityID:       req.EntityID,
			OwnerID:        entity.OwnerID,
			EventID:        entity.EventID,
			PreviousStatus: from,
			NewStatus:      target,
			TransitionedAt: at,
			EnvelopeID:     envelope.ID,
			CorrelationID:  correlationID,
			Envelope:       envelope,
		}, nil
	}

	e.logger.Warn("transition retries exhausted",
		zap.String("entity_kind", string(kind)),
		zap.String("entity_id", req.EntityID),
		zap.String("to", string(target)),
		zap.Int("attempts", e.maxAttempts))
	return nil, domain.NewConcurrentModification(kind, req.EntityID, lastSeen, target, e.maxAttempts)
}

func (e *TransitionExecutor) illegalReason(kind domain.EntityKind, from, to domain.Status) string {
	if reason, ok := e.guards.ForbiddenReason(kind, from, to); ok {
		return reason
	}
	if domain.IsTerminal(kind, from) {
		return fmt.Sprintf("%s is a terminal status", from)
	}
	return fmt.Sprintf("%s cannot move from %s to %s", kind, from, to)
}

func (e *TransitionExecutor) databaseError(kind domain.EntityKind, id, op string, err error) error {
	e.logger.Error("lifecycle persistence failure",
		zap.String("op", op),
		zap.String("entity_kind", string(kind)),
		zap.String("entity_id", id),
		zap.Error(err))
	return domain.NewDatabaseError(kind, id, err)
}

// buildPayload merges request metadata, the command's own fields and the
// status pair. Later sources win on key collisions.
func buildPayload(req TransitionRequest, from, to domain.Status) map[string]any {
	payload := make(map[string]any, len(req.Metadata)+4)
	for k, v := range req.Metadata {
		payload[k] = v
	}
	for k, v := range req.Command.Payload() {
		payload[k] = v
	}
	payload["previousStatus"] = string(from)
	payload["newStatus"] = string(to)
	if req.Reason != "" {
		payload["reason"] = req.Reason
	}
	return payload
}
