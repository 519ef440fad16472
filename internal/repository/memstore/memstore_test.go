package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eventgate/ticket-lifecycle/internal/domain"
	"github.com/eventgate/ticket-lifecycle/internal/repository"
)

func TestCompareAndSetStatus(t *testing.T) {
	ctx := context.Background()
	s := New()
	ev := &domain.Event{OrganizerID: "org-1", Title: "Launch", Status: domain.EventStatusDraft}
	if err := s.Events.Create(ctx, ev); err != nil {
		t.Fatalf("Create: %v", err)
	}

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ok, err := s.Lifecycle.CompareAndSetStatus(ctx, domain.EntityKindEvent, ev.ID, domain.EventStatusDraft, domain.EventStatusPublished, at)
	if err != nil || !ok {
		t.Fatalf("first swap = %v, %v; want true, nil", ok, err)
	}
	ok, err = s.Lifecycle.CompareAndSetStatus(ctx, domain.EntityKindEvent, ev.ID, domain.EventStatusDraft, domain.EventStatusPublished, at)
	if err != nil || ok {
		t.Fatalf("stale swap = %v, %v; want false, nil", ok, err)
	}

	got, err := s.Lifecycle.Get(ctx, domain.EntityKindEvent, ev.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.EventStatusPublished {
		t.Errorf("status = %s", got.Status)
	}
	if got.PreviousStatus == nil || *got.PreviousStatus != domain.EventStatusDraft {
		t.Errorf("previous status = %v", got.PreviousStatus)
	}
	if got.TransitionedAt == nil || !got.TransitionedAt.Equal(at) {
		t.Errorf("transitioned at = %v", got.TransitionedAt)
	}
	if got.OwnerID != "org-1" {
		t.Errorf("owner = %s", got.OwnerID)
	}
}

func TestGetUnknownReturnsNotFound(t *testing.T) {
	s := New()
	if _, err := s.Lifecycle.Get(context.Background(), domain.EntityKindTicket, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	ev := &domain.Event{OrganizerID: "org-1", Status: domain.EventStatusDraft}
	if err := s.Events.Create(ctx, ev); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(r repository.Repositories) error {
		if _, err := r.Lifecycle.CompareAndSetStatus(ctx, domain.EntityKindEvent, ev.ID, domain.EventStatusDraft, domain.EventStatusPublished, time.Now()); err != nil {
			return err
		}
		if err := r.Audit.Append(ctx, &domain.AuditEnvelope{EntityType: domain.EntityKindEvent, EntityID: ev.ID, EventType: domain.EventTypeEventPublished, CorrelationID: "c"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	got, _ := s.Events.GetByID(ctx, ev.ID)
	if got.Status != domain.EventStatusDraft {
		t.Fatalf("status = %s after rollback", got.Status)
	}
	if s.AuditLen() != 0 {
		t.Fatalf("audit len = %d after rollback", s.AuditLen())
	}
}

func TestWithinTxSeesOwnWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	ev := &domain.Event{OrganizerID: "org-1", Status: domain.EventStatusDraft}
	if err := s.Events.Create(ctx, ev); err != nil {
		t.Fatal(err)
	}
	err := s.WithinTx(ctx, func(r repository.Repositories) error {
		if _, err := r.Lifecycle.CompareAndSetStatus(ctx, domain.EntityKindEvent, ev.ID, domain.EventStatusDraft, domain.EventStatusPublished, time.Now()); err != nil {
			return err
		}
		got, err := r.Lifecycle.Get(ctx, domain.EntityKindEvent, ev.ID)
		if err != nil {
			return err
		}
		if got.Status != domain.EventStatusPublished {
			t.Errorf("in-tx status = %s", got.Status)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestAuditListOrderingAndFilters(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// A frozen clock still yields strictly increasing created_at values.
	s := New(WithClock(func() time.Time { return base }))

	types := []domain.EventType{domain.EventTypeTicketApproved, domain.EventTypeTicketStaked, domain.EventTypeTicketCheckedIn}
	for i, et := range types {
		env := &domain.AuditEnvelope{EntityType: domain.EntityKindTicket, EntityID: "t-1", EventType: et, CorrelationID: "corr"}
		if i == 2 {
			env.CorrelationID = "other"
		}
		if err := s.Audit.Append(ctx, env); err != nil {
			t.Fatal(err)
		}
	}

	asc, _ := s.Audit.List(ctx, repository.AuditFilter{EntityType: domain.EntityKindTicket, EntityID: "t-1"})
	if len(asc) != 3 || asc[0].EventType != domain.EventTypeTicketApproved || asc[2].EventType != domain.EventTypeTicketCheckedIn {
		t.Fatalf("ascending order wrong: %+v", asc)
	}
	for i := 1; i < len(asc); i++ {
		if !asc[i].CreatedAt.After(asc[i-1].CreatedAt) {
			t.Fatalf("created_at not strictly increasing at %d", i)
		}
	}

	desc, _ := s.Audit.List(ctx, repository.AuditFilter{Order: repository.NewestFirst, Limit: 1})
	if len(desc) != 1 || desc[0].EventType != domain.EventTypeTicketCheckedIn {
		t.Fatalf("newest first wrong: %+v", desc)
	}

	byCorr, _ := s.Audit.List(ctx, repository.AuditFilter{CorrelationID: "corr"})
	if len(byCorr) != 2 {
		t.Fatalf("correlation filter returned %d", len(byCorr))
	}

	after := asc[0].CreatedAt
	since, _ := s.Audit.List(ctx, repository.AuditFilter{CreatedAfter: &after, EventTypes: []domain.EventType{domain.EventTypeTicketStaked, domain.EventTypeTicketApproved}})
	if len(since) != 1 || since[0].EventType != domain.EventTypeTicketStaked {
		t.Fatalf("created-after filter wrong: %+v", since)
	}
}

func TestAuditListReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.Audit.Append(ctx, &domain.AuditEnvelope{EntityID: "t-1", Payload: map[string]any{"k": "v"}}); err != nil {
		t.Fatal(err)
	}
	first, _ := s.Audit.List(ctx, repository.AuditFilter{})
	first[0].Payload["k"] = "mutated"
	second, _ := s.Audit.List(ctx, repository.AuditFilter{})
	if second[0].Payload["k"] != "v" {
		t.Fatal("stored envelope altered through a read")
	}
}

func TestTicketCreateRequiresEvent(t *testing.T) {
	s := New()
	err := s.Tickets.Create(context.Background(), &domain.Ticket{EventID: "nope", HolderID: "u", Status: domain.TicketStatusPending})
	if err == nil {
		t.Fatal("expected error for unknown event")
	}
}
