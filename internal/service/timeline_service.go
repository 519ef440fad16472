package service

import (
	"context"
	"time"

	"github.com/eventgate/ticket-lifecycle/internal/domain"
	"github.com/eventgate/ticket-lifecycle/internal/repository"
)

// EntityTimeline is an entity's history oldest first.
type EntityTimeline struct {
	Kind      domain.EntityKind      `json:"entity_kind"`
	EntityID  string                 `json:"entity_id"`
	Envelopes []domain.AuditEnvelope `json:"envelopes"`
	FirstAt   *time.Time             `json:"first_at,omitempty"`
	LastAt    *time.Time             `json:"last_at,omitempty"`
	Count     int                    `json:"count"`
}

// IncompleteTransaction is a started flow with no completion recorded.
type IncompleteTransaction struct {
	CorrelationID   string                 `json:"correlation_id"`
	StartedAt       time.Time              `json:"started_at"`
	LastEventType   domain.EventType       `json:"last_event_type"`
	EntityID        string                 `json:"entity_id"`
	StartEnvelopeID string                 `json:"start_envelope_id"`
	Timeline        []domain.AuditEnvelope `json:"timeline"`
}

// TimelineService reconstructs history from the ledger. It never writes.
type TimelineService struct {
	ledger *AuditLedger
}

// NewTimelineService constructs the service.
func NewTimelineService(ledger *AuditLedger) *TimelineService {
	return &TimelineService{ledger: ledger}
}

// EntityTimeline returns every envelope for the entity.
func (s *TimelineService) EntityTimeline(ctx context.Context, kind domain.EntityKind, id string) (*EntityTimeline, error) {
	envelopes, err := s.ledger.ByEntity(ctx, kind, id, 0, repository.OldestFirst)
	if err != nil {
		return nil, err
	}
	tl := &EntityTimeline{Kind: kind, EntityID: id, Envelopes: envelopes, Count: len(envelopes)}
	if len(envelopes) > 0 {
		first := envelopes[0].CreatedAt
		last := envelopes[len(envelopes)-1].CreatedAt
		tl.FirstAt, tl.LastAt = &first, &last
	}
	return tl, nil
}

// LastOccurrence returns the newest envelope of eventType for an entity,
// or nil when there is none.
func (s *TimelineService) LastOccurrence(ctx context.Context, kind domain.EntityKind, id string, eventType domain.EventType) (*domain.AuditEnvelope, error) {
	found, err := s.ledger.list(ctx, repository.AuditFilter{
		EntityType: kind,
		EntityID:   id,
		EventTypes: []domain.EventType{eventType},
		Order:      repository.NewestFirst,
		Limit:      1,
	})
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return &found[0], nil
}

// TransactionTimeline returns all envelopes of one correlation id.
func (s *TimelineService) TransactionTimeline(ctx context.Context, correlationID string) ([]domain.AuditEnvelope, error) {
	return s.ledger.ByCorrelation(ctx, correlationID)
}

// IncompleteSince finds stakes recorded after cutoff whose ticket has no
// check-in anywhere in the ledger. Results are oldest first.
func (s *TimelineService) IncompleteSince(ctx context.Context, cutoff time.Time) ([]IncompleteTransaction, error) {
	starts, err := s.ledger.list(ctx, repository.AuditFilter{
		EventTypes:   []domain.EventType{domain.EventTypeTicketStaked},
		CreatedAfter: &cutoff,
		Order:        repository.OldestFirst,
	})
	if err != nil {
		return nil, err
	}

	var out []IncompleteTransaction
	completed := map[string]bool{}
	for _, start := range starts {
		done, seen := completed[start.EntityID]
		if !seen {
			checkIns, err := s.ledger.list(ctx, repository.AuditFilter{
				EntityType: start.EntityType,
				EntityID:   start.EntityID,
				EventTypes: []domain.EventType{domain.EventTypeTicketCheckedIn},
				Limit:      1,
			})
			if err != nil {
				return nil, err
			}
			done = len(checkIns) > 0
			completed[start.EntityID] = done
		}
		if done {
			continue
		}
		timeline, err := s.ledger.ByCorrelation(ctx, start.CorrelationID)
		if err != nil {
			return nil, err
		}
		last := start.EventType
		if len(timeline) > 0 {
			last = timeline[len(timeline)-1].EventType
		}
		out = append(out, IncompleteTransaction{
			CorrelationID:   start.CorrelationID,
			StartedAt:       start.CreatedAt,
			LastEventType:   last,
			EntityID:        start.EntityID,
			StartEnvelopeID: start.ID,
			Timeline:        timeline,
		})
	}
	if out == nil {
		out = []IncompleteTransaction{}
	}
	return out, nil
}
