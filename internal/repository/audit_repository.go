package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/eventgate/ticket-lifecycle/internal/domain"
)

// SortOrder selects chronological or reverse-chronological reads.
type SortOrder int

const (
	// OldestFirst is used for timeline reconstruction.
	OldestFirst SortOrder = iota
	// NewestFirst is used for recent-activity views.
	NewestFirst
)

// AuditFilter narrows ledger reads. Zero values mean "any". Limit applies
// after ordering; zero means unlimited.
type AuditFilter struct {
	EntityType    domain.EntityKind
	EntityID      string
	CorrelationID string
	EventTypes    []domain.EventType
	// TxHash matches payload.txHash, ignoring case.
	TxHash string
	// CreatedAfter is exclusive.
	CreatedAfter *time.Time
	Order        SortOrder
	Limit        int
}

// AuditRepository stores the append-only ledger. There is no update or
// delete by design of the table.
type AuditRepository interface {
	Append(ctx context.Context, envelope *domain.AuditEnvelope) error
	List(ctx context.Context, filter AuditFilter) ([]domain.AuditEnvelope, error)
}

type auditRepository struct {
	db DBTX
}

// NewAuditRepository builds repository.
func NewAuditRepository(db DBTX) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Append(ctx context.Context, envelope *domain.AuditEnvelope) error {
	const query = `
        INSERT INTO audit_envelopes (entity_type, entity_id, event_type, actor_type, actor_id, correlation_id, causation_id, payload)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at`
	payload := envelope.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	return r.db.QueryRow(ctx, query,
		envelope.EntityType,
		envelope.EntityID,
		envelope.EventType,
		envelope.Actor.Type,
		nullableString(envelope.Actor.ID),
		envelope.CorrelationID,
		envelope.CausationID,
		payload,
	).Scan(&envelope.ID, &envelope.CreatedAt)
}

func (r *auditRepository) List(ctx context.Context, filter AuditFilter) ([]domain.AuditEnvelope, error) {
	base := `SELECT id, entity_type, entity_id, event_type, actor_type, actor_id, correlation_id, causation_id, payload, created_at
             FROM audit_envelopes`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.EntityType != "" {
		args = append(args, filter.EntityType)
		clauses = append(clauses, fmt.Sprintf("entity_type=$%d", len(args)))
	}
	if filter.EntityID != "" {
		args = append(args, filter.EntityID)
		clauses = append(clauses, fmt.Sprintf("entity_id=$%d", len(args)))
	}
	if filter.CorrelationID != "" {
		args = append(args, filter.CorrelationID)
		clauses = append(clauses, fmt.Sprintf("correlation_id=$%d", len(args)))
	}
	if len(filter.EventTypes) > 0 {
		placeholders := make([]string, len(filter.EventTypes))
		for i, et := range filter.EventTypes {
			args = append(args, et)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("event_type IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.TxHash != "" {
		args = append(args, filter.TxHash)
		clauses = append(clauses, fmt.Sprintf("lower(payload->>'txHash')=lower($%d)", len(args)))
	}
	if filter.CreatedAfter != nil {
		args = append(args, *filter.CreatedAfter)
		clauses = append(clauses, fmt.Sprintf("created_at > $%d", len(args)))
	}

	order := "created_at ASC, id ASC"
	if filter.Order == NewestFirst {
		order = "created_at DESC, id DESC"
	}
	query := fmt.Sprintf(`%s WHERE %s ORDER BY %s`, base, strings.Join(clauses, " AND "), order)
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEnvelopes(rows)
}

func scanEnvelopes(rows pgx.Rows) ([]domain.AuditEnvelope, error) {
	result := []domain.AuditEnvelope{}
	for rows.Next() {
		var (
			env     domain.AuditEnvelope
			actorID *string
		)
		if err := rows.Scan(
			&env.ID,
			&env.EntityType,
			&env.EntityID,
			&env.EventType,
			&env.Actor.Type,
			&actorID,
			&env.CorrelationID,
			&env.CausationID,
			&env.Payload,
			&env.CreatedAt,
		); err != nil {
			return nil, err
		}
		if actorID != nil {
			env.Actor.ID = *actorID
		}
		result = append(result, env)
	}
	return result, rows.Err()
}
