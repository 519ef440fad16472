package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventgate/ticket-lifecycle/internal/domain"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx so repositories run
// inside or outside a transaction unchanged.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories bundles the lifecycle repositories sharing one connection
// or transaction.
type Repositories struct {
	Events    EventRepository
	Tickets   TicketRepository
	Lifecycle LifecycleRepository
	Audit     AuditRepository
}

// TxRunner executes fn atomically. If fn returns an error nothing it wrote
// is kept.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(Repositories) error) error
}

// Store is the Postgres-backed implementation of Repositories and TxRunner.
type Store struct {
	Repositories
	pool *pgxpool.Pool
}

// NewStore builds repositories over the pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Repositories: newRepositories(pool), pool: pool}
}

// WithinTx runs fn inside a single Postgres transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(Repositories) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(newRepositories(tx))
	})
}

func newRepositories(db DBTX) Repositories {
	return Repositories{
		Events:    NewEventRepository(db),
		Tickets:   NewTicketRepository(db),
		Lifecycle: NewLifecycleRepository(db),
		Audit:     NewAuditRepository(db),
	}
}

// translateNotFound maps pgx's no-rows error onto domain.ErrNotFound.
func translateNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// validUUID guards uuid columns; a malformed id cannot match any row.
func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
