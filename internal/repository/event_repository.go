package repository

import (
	"context"

	"github.com/eventgate/ticket-lifecycle/internal/domain"
)

// EventRepository encapsulates event persistence.
type EventRepository interface {
	Create(ctx context.Context, event *domain.Event) error
	GetByID(ctx context.Context, id string) (*domain.Event, error)
}

type eventRepository struct {
	db DBTX
}

// NewEventRepository instantiates repository.
func NewEventRepository(db DBTX) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, event *domain.Event) error {
	const query = `
        INSERT INTO events (organizer_id, title, starts_at, status)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		event.OrganizerID,
		event.Title,
		event.StartsAt,
		event.Status,
	).Scan(&event.ID, &event.CreatedAt, &event.UpdatedAt)
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	if !validUUID(id) {
		return nil, domain.ErrNotFound
	}
	const query = `
        SELECT id, organizer_id, title, starts_at, status, previous_status, transitioned_at, created_at, updated_at
        FROM events WHERE id=$1`
	var event domain.Event
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&event.ID,
		&event.OrganizerID,
		&event.Title,
		&event.StartsAt,
		&event.Status,
		&event.PreviousStatus,
		&event.TransitionedAt,
		&event.CreatedAt,
		&event.UpdatedAt,
	); err != nil {
		return nil, translateNotFound(err)
	}
	return &event, nil
}
