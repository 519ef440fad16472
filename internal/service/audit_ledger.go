package service

import (
	"context"

	"github.com/eventgate/ticket-lifecycle/internal/domain"
	"github.com/eventgate/ticket-lifecycle/internal/repository"
	apperrors "github.com/eventgate/ticket-lifecycle/pkg/util/errorutil"
)

// AuditLedger is the read/append facade over the envelope store.
type AuditLedger struct {
	repo repository.AuditRepository
}

// NewAuditLedger constructs the ledger.
func NewAuditLedger(repo repository.AuditRepository) *AuditLedger {
	return &AuditLedger{repo: repo}
}

// Append inserts envelope and returns its generated id. No deduplication
// is attempted.
func (l *AuditLedger) Append(ctx context.Context, envelope *domain.AuditEnvelope) (string, error) {
	if envelope == nil || envelope.EntityID == "" || envelope.EventType == "" || envelope.CorrelationID == "" {
		return "", apperrors.NewValidationError("envelope requires entity id, event type and correlation id", nil)
	}
	if envelope.Payload == nil {
		envelope.Payload = map[string]any{}
	}
	if err := l.repo.Append(ctx, envelope); err != nil {
		return "", domain.NewDatabaseError(envelope.EntityType, envelope.EntityID, err)
	}
	return envelope.ID, nil
}

// ByEntity returns an entity's envelopes in the requested order.
func (l *AuditLedger) ByEntity(ctx context.Context, kind domain.EntityKind, id string, limit int, order repository.SortOrder) ([]domain.AuditEnvelope, error) {
	return l.list(ctx, repository.AuditFilter{EntityType: kind, EntityID: id, Limit: limit, Order: order})
}

// ByCorrelation returns one logical transaction oldest first.
func (l *AuditLedger) ByCorrelation(ctx context.Context, correlationID string) ([]domain.AuditEnvelope, error) {
	return l.list(ctx, repository.AuditFilter{CorrelationID: correlationID, Order: repository.OldestFirst})
}

// Recent returns the newest envelopes, optionally restricted to eventTypes.
func (l *AuditLedger) Recent(ctx context.Context, limit int, eventTypes ...domain.EventType) ([]domain.AuditEnvelope, error) {
	return l.list(ctx, repository.AuditFilter{EventTypes: eventTypes, Limit: limit, Order: repository.NewestFirst})
}

func (l *AuditLedger) list(ctx context.Context, filter repository.AuditFilter) ([]domain.AuditEnvelope, error) {
	envelopes, err := l.repo.List(ctx, filter)
	if err != nil {
		return nil, domain.NewDatabaseError(filter.EntityType, filter.EntityID, err)
	}
	return envelopes, nil
}
