package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/eventgate/ticket-lifecycle/internal/domain"
)

// LifecycleRepository reads and conditionally updates the status columns
// shared by events and tickets.
type LifecycleRepository interface {
	Get(ctx context.Context, kind domain.EntityKind, id string) (*domain.LifecycleEntity, error)
	// CompareAndSetStatus moves the row to next only if its status still
	// equals expected. It reports false, without error, when another writer
	// changed the row first.
	CompareAndSetStatus(ctx context.Context, kind domain.EntityKind, id string, expected, next domain.Status, at time.Time) (bool, error)
	// Lock holds the entity's row until the surrounding transaction ends.
	// Outside a transaction it only checks that the row exists.
	Lock(ctx context.Context, kind domain.EntityKind, id string) error
}

type lifecycleRepository struct {
	db DBTX
}

// NewLifecycleRepository instantiates repository.
func NewLifecycleRepository(db DBTX) LifecycleRepository {
	return &lifecycleRepository{db: db}
}

func (r *lifecycleRepository) Get(ctx context.Context, kind domain.EntityKind, id string) (*domain.LifecycleEntity, error) {
	if !validUUID(id) {
		return nil, domain.ErrNotFound
	}
	var query string
	switch kind {
	case domain.EntityKindEvent:
		query = `SELECT id, status, previous_status, transitioned_at, organizer_id, '' FROM events WHERE id=$1`
	case domain.EntityKindTicket:
		query = `SELECT id, status, previous_status, transitioned_at, holder_id, event_id::text FROM tickets WHERE id=$1`
	default:
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	entity := domain.LifecycleEntity{Kind: kind}
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&entity.ID,
		&entity.Status,
		&entity.PreviousStatus,
		&entity.TransitionedAt,
		&entity.OwnerID,
		&entity.EventID,
	); err != nil {
		return nil, translateNotFound(err)
	}
	return &entity, nil
}

func (r *lifecycleRepository) CompareAndSetStatus(ctx context.Context, kind domain.EntityKind, id string, expected, next domain.Status, at time.Time) (bool, error) {
	if !validUUID(id) {
		return false, domain.ErrNotFound
	}
	table, err := lifecycleTable(kind)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf(`
        UPDATE %s SET previous_status=status, status=$1, transitioned_at=$2, updated_at=NOW()
        WHERE id=$3 AND status=$4`, table)
	cmd, err := r.db.Exec(ctx, query, next, at, id, expected)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *lifecycleRepository) Lock(ctx context.Context, kind domain.EntityKind, id string) error {
	if !validUUID(id) {
		return domain.ErrNotFound
	}
	table, err := lifecycleTable(kind)
	if err != nil {
		return err
	}
	var locked string
	err = r.db.QueryRow(ctx, fmt.Sprintf(`SELECT id::text FROM %s WHERE id=$1 FOR UPDATE`, table), id).Scan(&locked)
	return translateNotFound(err)
}

func lifecycleTable(kind domain.EntityKind) (string, error) {
	switch kind {
	case domain.EntityKindEvent:
		return "events", nil
	case domain.EntityKindTicket:
		return "tickets", nil
	default:
		return "", fmt.Errorf("unknown entity kind %q", kind)
	}
}
