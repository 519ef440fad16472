package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eventgate/ticket-lifecycle/internal/domain"
	"github.com/eventgate/ticket-lifecycle/internal/repository"
)

// GuardInput is what a guard may inspect. Entity is the row as loaded by
// the executor for this attempt.
type GuardInput struct {
	Kind     domain.EntityKind
	EntityID string
	From     domain.Status
	To       domain.Status
	Entity   *domain.LifecycleEntity
	Command  Command
}

// GuardResult is a guard's verdict.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Guard checks one precondition. It may read state but never writes it. A
// returned error means the guard could not decide.
type Guard func(ctx context.Context, in GuardInput) (GuardResult, error)

// anyStatus registers a guard for every source status of an edge.
const anyStatus domain.Status = "*"

// GuardEvaluator runs the guards bound to an edge.
type GuardEvaluator struct {
	policy *GuardPolicy
	guards map[edgeKey][]Guard
}

// NewGuardEvaluator builds an evaluator with the built-in readiness guards.
// events may be nil when no event guards are needed.
func NewGuardEvaluator(events repository.EventRepository, policy *GuardPolicy) *GuardEvaluator {
	if policy == nil {
		policy = DefaultGuardPolicy()
	}
	g := &GuardEvaluator{policy: policy, guards: map[edgeKey][]Guard{}}
	if events != nil {
		g.Register(domain.EntityKindEvent, domain.EventStatusDraft, domain.EventStatusPublished, publishReadyGuard(events))
		g.Register(domain.EntityKindEvent, domain.EventStatusPublished, domain.EventStatusLive, startDateGuard(events))
	}
	g.Register(domain.EntityKindTicket, anyStatus, domain.TicketStatusStaked, stakePayloadGuard)
	g.Register(domain.EntityKindTicket, domain.TicketStatusStaked, domain.TicketStatusRefunded, refundPayloadGuard)
	return g
}

// Register binds guard to kind from→to. Use "*" as from to match any
// source status.
func (g *GuardEvaluator) Register(kind domain.EntityKind, from, to domain.Status, guard Guard) {
	key := edgeKey{kind, from, to}
	g.guards[key] = append(g.guards[key], guard)
}

// ForbiddenReason exposes the policy message for an always-false edge.
func (g *GuardEvaluator) ForbiddenReason(kind domain.EntityKind, from, to domain.Status) (string, bool) {
	return g.policy.Reason(kind, from, to)
}

// Evaluate runs forbidden-edge policy, then every guard bound to the edge,
// stopping at the first refusal. Edges with no guard are allowed.
func (g *GuardEvaluator) Evaluate(ctx context.Context, in GuardInput) (GuardResult, error) {
	if reason, ok := g.policy.Reason(in.Kind, in.From, in.To); ok {
		return GuardResult{Allowed: false, Reason: reason}, nil
	}
	bound := append(append([]Guard{}, g.guards[edgeKey{in.Kind, in.From, in.To}]...), g.guards[edgeKey{in.Kind, anyStatus, in.To}]...)
	for _, guard := range bound {
		res, err := guard(ctx, in)
		if err != nil {
			return GuardResult{}, err
		}
		if !res.Allowed {
			return res, nil
		}
	}
	return GuardResult{Allowed: true}, nil
}

func allow() (GuardResult, error) { return GuardResult{Allowed: true}, nil }

func deny(reason string) (GuardResult, error) {
	return GuardResult{Allowed: false, Reason: reason}, nil
}

func loadEvent(ctx context.Context, events repository.EventRepository, id string) (*domain.Event, error) {
	ev, err := events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewEntityNotFound(domain.EntityKindEvent, id)
		}
		return nil, err
	}
	return ev, nil
}

func publishReadyGuard(events repository.EventRepository) Guard {
	return func(ctx context.Context, in GuardInput) (GuardResult, error) {
		ev, err := loadEvent(ctx, events, in.EntityID)
		if err != nil {
			return GuardResult{}, err
		}
		var missing []string
		if !ev.HasTitle() {
			missing = append(missing, "title")
		}
		if ev.StartsAt == nil {
			missing = append(missing, "start date")
		}
		if len(missing) > 0 {
			return deny(fmt.Sprintf("event needs a %s before it can be published", strings.Join(missing, " and a ")))
		}
		return allow()
	}
}

func startDateGuard(events repository.EventRepository) Guard {
	return func(ctx context.Context, in GuardInput) (GuardResult, error) {
		ev, err := loadEvent(ctx, events, in.EntityID)
		if err != nil {
			return GuardResult{}, err
		}
		if ev.StartsAt == nil {
			return deny("event needs a start date before it can go live")
		}
		return allow()
	}
}

func stakePayloadGuard(_ context.Context, in GuardInput) (GuardResult, error) {
	cmd, ok := in.Command.(StakeTicket)
	if !ok {
		return deny("staking requires stake details")
	}
	switch {
	case cmd.Stake.Amount <= 0:
		return deny("stake amount must be positive")
	case strings.TrimSpace(cmd.Stake.TxHash) == "":
		return deny("stake txHash is required")
	case strings.TrimSpace(cmd.Stake.WalletAddress) == "":
		return deny("stake walletAddress is required")
	}
	return allow()
}

func refundPayloadGuard(_ context.Context, in GuardInput) (GuardResult, error) {
	cmd, ok := in.Command.(RefundTicket)
	if !ok || strings.TrimSpace(cmd.TxHash) == "" {
		return deny("refund txHash is required")
	}
	return allow()
}
