package dto

import (
	"time"

	"github.com/eventgate/ticket-lifecycle/internal/domain"
)

// TransitionRequest payload.
type TransitionRequest struct {
	Target        domain.Status  `json:"target"`
	Reason        string         `json:"reason"`
	Payload       map[string]any `json:"payload"`
	Metadata      map[string]any `json:"metadata"`
	CorrelationID string         `json:"correlation_id"`
	CausationID   *string        `json:"causation_id"`
}

// CreateEventRequest payload.
type CreateEventRequest struct {
	Title    string     `json:"title"`
	StartsAt *time.Time `json:"starts_at"`
}

// CreateTicketRequest payload. HolderID defaults to the caller.
type CreateTicketRequest struct {
	HolderID string        `json:"holder_id"`
	Status   domain.Status `json:"status"`
}

// VerifyStakeRequest payload.
type VerifyStakeRequest struct {
	WalletAddress string `json:"wallet_address"`
	TxHash        string `json:"tx_hash"`
	CorrelationID string `json:"correlation_id"`
}

// SettlementRequest payload. HolderAddress defaults to the staked wallet.
type SettlementRequest struct {
	HolderAddress string `json:"holder_address"`
}

// ActorResponse response.
type ActorResponse struct {
	Type domain.ActorType `json:"type"`
	ID   string           `json:"id,omitempty"`
}

// EnvelopeResponse represents one audit entry.
type EnvelopeResponse struct {
	ID            string           `json:"id"`
	EntityType    string           `json:"entity_type"`
	EntityID      string           `json:"entity_id"`
	EventType     domain.EventType `json:"event_type"`
	Actor         ActorResponse    `json:"actor"`
	CorrelationID string           `json:"correlation_id"`
	CausationID   *string          `json:"causation_id"`
	Payload       map[string]any   `json:"payload"`
	CreatedAt     time.Time        `json:"created_at"`
}

// EventResponse response.
type EventResponse struct {
	ID             string         `json:"id"`
	OrganizerID    string         `json:"organizer_id"`
	Title          string         `json:"title"`
	StartsAt       *time.Time     `json:"starts_at"`
	Status         domain.Status  `json:"status"`
	PreviousStatus *domain.Status `json:"previous_status"`
	TransitionedAt *time.Time     `json:"transitioned_at"`
	CreatedAt      time.Time      `json:"created_at"`
}

// TicketResponse response.
type TicketResponse struct {
	ID             string         `json:"id"`
	EventID        string         `json:"event_id"`
	HolderID       string         `json:"holder_id"`
	Status         domain.Status  `json:"status"`
	PreviousStatus *domain.Status `json:"previous_status"`
	TransitionedAt *time.Time     `json:"transitioned_at"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Envelope converts a domain envelope.
func Envelope(e domain.AuditEnvelope) EnvelopeResponse {
	return EnvelopeResponse{
		ID:            e.ID,
		EntityType:    string(e.EntityType),
		EntityID:      e.EntityID,
		EventType:     e.EventType,
		Actor:         ActorResponse{Type: e.Actor.Type, ID: e.Actor.ID},
		CorrelationID: e.CorrelationID,
		CausationID:   e.CausationID,
		Payload:       e.Payload,
		CreatedAt:     e.CreatedAt,
	}
}

// Envelopes converts a slice, never returning nil.
func Envelopes(in []domain.AuditEnvelope) []EnvelopeResponse {
	out := make([]EnvelopeResponse, 0, len(in))
	for _, e := range in {
		out = append(out, Envelope(e))
	}
	return out
}

// Event converts a domain event.
func Event(e *domain.Event) EventResponse {
	return EventResponse{
		ID:             e.ID,
		OrganizerID:    e.OrganizerID,
		Title:          e.Title,
		StartsAt:       e.StartsAt,
		Status:         e.Status,
		PreviousStatus: e.PreviousStatus,
		TransitionedAt: e.TransitionedAt,
		CreatedAt:      e.CreatedAt,
	}
}

// Ticket converts a domain ticket.
func Ticket(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:             t.ID,
		EventID:        t.EventID,
		HolderID:       t.HolderID,
		Status:         t.Status,
		PreviousStatus: t.PreviousStatus,
		TransitionedAt: t.TransitionedAt,
		CreatedAt:      t.CreatedAt,
	}
}
