package events

import (
	"time"

	"github.com/eventgate/ticket-lifecycle/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	// EventLifecycleTransitioned fires after a transition has committed.
	EventLifecycleTransitioned EventType = "lifecycle.transitioned"
	// EventSettlementCompleted fires after a release or forfeit attempt was recorded.
	EventSettlementCompleted EventType = "settlement.completed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Kind      domain.EntityKind `json:"entity_kind"`
	EntityID  string            `json:"entity_id"`
	Actor     domain.Actor      `json:"actor"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   interface{}       `json:"payload"`
}

// TransitionedPayload describes a committed status change.
type TransitionedPayload struct {
	PreviousStatus domain.Status  `json:"previous_status"`
	NewStatus      domain.Status  `json:"new_status"`
	OwnerID        string         `json:"owner_id"`
	EventID        string         `json:"event_id,omitempty"`
	EnvelopeID     string         `json:"envelope_id"`
	CorrelationID  string         `json:"correlation_id"`
	Details        map[string]any `json:"details,omitempty"`
}

// SettlementPayload describes a recorded settlement outcome.
type SettlementPayload struct {
	Outcome       domain.EventType `json:"outcome"`
	HolderID      string           `json:"holder_id"`
	TxHash        string           `json:"tx_hash,omitempty"`
	CorrelationID string           `json:"correlation_id"`
	Error         string           `json:"error,omitempty"`
}
