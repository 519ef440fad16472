// Package memstore is an in-process implementation of the repository
// interfaces. It backs tests and runs the service when no Postgres DSN is
// configured. Transactions are serialized by a single mutex and their
// writes are staged until commit.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eventgate/ticket-lifecycle/internal/domain"
	"github.com/eventgate/ticket-lifecycle/internal/repository"
)

// Store holds events, tickets and the audit ledger in memory.
type Store struct {
	repository.Repositories

	mu      sync.RWMutex
	events  map[string]domain.Event
	tickets map[string]domain.Ticket
	audit   []domain.AuditEnvelope
	lastAt  time.Time
	now     func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the timestamp source for created_at columns.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		events:  map[string]domain.Event{},
		tickets: map[string]domain.Ticket{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Repositories = (&view{store: s}).repositories()
	return s
}

// WithinTx runs fn with exclusive access; staged writes are applied only
// when fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txState{
		events:  map[string]domain.Event{},
		tickets: map[string]domain.Ticket{},
	}
	v := &view{store: s, tx: tx}
	if err := fn(v.repositories()); err != nil {
		return err
	}
	for id, ev := range tx.events {
		s.events[id] = ev
	}
	for id, t := range tx.tickets {
		s.tickets[id] = t
	}
	s.audit = append(s.audit, tx.audit...)
	return nil
}

// AuditLen returns the number of committed envelopes.
func (s *Store) AuditLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.audit)
}

// nextTimestamp returns a strictly increasing timestamp at microsecond
// precision, matching Postgres timestamptz. Caller holds the write lock.
func (s *Store) nextTimestamp() time.Time {
	at := s.now().UTC().Truncate(time.Microsecond)
	if !at.After(s.lastAt) {
		at = s.lastAt.Add(time.Microsecond)
	}
	s.lastAt = at
	return at
}

type txState struct {
	events  map[string]domain.Event
	tickets map[string]domain.Ticket
	audit   []domain.AuditEnvelope
}

// view routes reads and writes either straight to the store (tx == nil,
// locking per call) or through a transaction's staging area (lock held by
// WithinTx).
type view struct {
	store *Store
	tx    *txState
}

func (v *view) repositories() repository.Repositories {
	return repository.Repositories{
		Events:    eventRepo{v},
		Tickets:   ticketRepo{v},
		Lifecycle: lifecycleRepo{v},
		Audit:     auditRepo{v},
	}
}

func (v *view) read(fn func()) {
	if v.tx == nil {
		v.store.mu.RLock()
		defer v.store.mu.RUnlock()
	}
	fn()
}

func (v *view) write(fn func()) {
	if v.tx == nil {
		v.store.mu.Lock()
		defer v.store.mu.Unlock()
	}
	fn()
}

func (v *view) event(id string) (domain.Event, bool) {
	if v.tx != nil {
		if ev, ok := v.tx.events[id]; ok {
			return ev, true
		}
	}
	ev, ok := v.store.events[id]
	return ev, ok
}

func (v *view) putEvent(ev domain.Event) {
	if v.tx != nil {
		v.tx.events[ev.ID] = ev
		return
	}
	v.store.events[ev.ID] = ev
}

func (v *view) ticket(id string) (domain.Ticket, bool) {
	if v.tx != nil {
		if t, ok := v.tx.tickets[id]; ok {
			return t, true
		}
	}
	t, ok := v.store.tickets[id]
	return t, ok
}

func (v *view) putTicket(t domain.Ticket) {
	if v.tx != nil {
		v.tx.tickets[t.ID] = t
		return
	}
	v.store.tickets[t.ID] = t
}

type eventRepo struct{ v *view }

func (r eventRepo) Create(ctx context.Context, event *domain.Event) error {
	r.v.write(func() {
		now := r.v.store.nextTimestamp()
		event.ID = uuid.NewString()
		event.CreatedAt = now
		event.UpdatedAt = now
		r.v.putEvent(*event)
	})
	return nil
}

func (r eventRepo) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	var (
		ev domain.Event
		ok bool
	)
	r.v.read(func() { ev, ok = r.v.event(id) })
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &ev, nil
}

type ticketRepo struct{ v *view }

func (r ticketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	var err error
	r.v.write(func() {
		if _, ok := r.v.event(ticket.EventID); !ok {
			err = fmt.Errorf("event %s does not exist", ticket.EventID)
			return
		}
		now := r.v.store.nextTimestamp()
		ticket.ID = uuid.NewString()
		ticket.CreatedAt = now
		ticket.UpdatedAt = now
		r.v.putTicket(*ticket)
	})
	return err
}

func (r ticketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	var (
		t  domain.Ticket
		ok bool
	)
	r.v.read(func() { t, ok = r.v.ticket(id) })
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

type lifecycleRepo struct{ v *view }

func (r lifecycleRepo) Get(ctx context.Context, kind domain.EntityKind, id string) (*domain.LifecycleEntity, error) {
	var entity *domain.LifecycleEntity
	var err error
	r.v.read(func() {
		switch kind {
		case domain.EntityKindEvent:
			if ev, ok := r.v.event(id); ok {
				entity = ev.Lifecycle()
			}
		case domain.EntityKindTicket:
			if t, ok := r.v.ticket(id); ok {
				entity = t.Lifecycle()
			}
		default:
			err = fmt.Errorf("unknown entity kind %q", kind)
		}
	})
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, domain.ErrNotFound
	}
	return entity, nil
}

func (r lifecycleRepo) CompareAndSetStatus(ctx context.Context, kind domain.EntityKind, id string, expected, next domain.Status, at time.Time) (bool, error) {
	var (
		swapped bool
		err     error
	)
	r.v.write(func() {
		switch kind {
		case domain.EntityKindEvent:
			ev, ok := r.v.event(id)
			if !ok {
				err = domain.ErrNotFound
				return
			}
			if ev.Status != expected {
				return
			}
			prev := ev.Status
			ev.PreviousStatus = &prev
			ev.Status = next
			ev.TransitionedAt = &at
			ev.UpdatedAt = at
			r.v.putEvent(ev)
			swapped = true
		case domain.EntityKindTicket:
			t, ok := r.v.ticket(id)
			if !ok {
				err = domain.ErrNotFound
				return
			}
			if t.Status != expected {
				return
			}
			prev := t.Status
			t.PreviousStatus = &prev
			t.Status = next
			t.TransitionedAt = &at
			t.UpdatedAt = at
			r.v.putTicket(t)
			swapped = true
		default:
			err = fmt.Errorf("unknown entity kind %q", kind)
		}
	})
	return swapped, err
}

// Lock only checks existence: transactions already run one at a time.
func (r lifecycleRepo) Lock(ctx context.Context, kind domain.EntityKind, id string) error {
	_, err := r.Get(ctx, kind, id)
	return err
}

type auditRepo struct{ v *view }

func (r auditRepo) Append(ctx context.Context, envelope *domain.AuditEnvelope) error {
	r.v.write(func() {
		envelope.ID = uuid.NewString()
		envelope.CreatedAt = r.v.store.nextTimestamp()
		stored := *envelope
		stored.Payload = copyPayload(envelope.Payload)
		if r.v.tx != nil {
			r.v.tx.audit = append(r.v.tx.audit, stored)
			return
		}
		r.v.store.audit = append(r.v.store.audit, stored)
	})
	return nil
}

func (r auditRepo) List(ctx context.Context, filter repository.AuditFilter) ([]domain.AuditEnvelope, error) {
	var out []domain.AuditEnvelope
	r.v.read(func() {
		all := r.v.store.audit
		if r.v.tx != nil {
			all = append(append([]domain.AuditEnvelope{}, all...), r.v.tx.audit...)
		}
		for _, env := range all {
			if matches(env, filter) {
				env.Payload = copyPayload(env.Payload)
				out = append(out, env)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if filter.Order == repository.NewestFirst {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	if out == nil {
		out = []domain.AuditEnvelope{}
	}
	return out, nil
}

func matches(env domain.AuditEnvelope, f repository.AuditFilter) bool {
	if f.EntityType != "" && env.EntityType != f.EntityType {
		return false
	}
	if f.EntityID != "" && env.EntityID != f.EntityID {
		return false
	}
	if f.CorrelationID != "" && env.CorrelationID != f.CorrelationID {
		return false
	}
	if f.TxHash != "" && !strings.EqualFold(env.PayloadString("txHash"), f.TxHash) {
		return false
	}
	if f.CreatedAfter != nil && !env.CreatedAt.After(*f.CreatedAfter) {
		return false
	}
	if len(f.EventTypes) > 0 {
		found := false
		for _, et := range f.EventTypes {
			if env.EventType == et {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func copyPayload(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
