package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/eventgate/ticket-lifecycle/internal/domain"
	"github.com/eventgate/ticket-lifecycle/internal/events"
	"github.com/eventgate/ticket-lifecycle/internal/repository"
)

func TestTransitionMirrorsAndDispatches(t *testing.T) {
	h := newHarness(t)
	id := h.seedTicket(domain.TicketStatusPending)

	var got []events.Event
	h.dispatcher.Subscribe(events.EventLifecycleTransitioned, func(_ context.Context, e events.Event) error {
		got = append(got, e)
		return nil
	})

	res := h.mustTransition(domain.EntityKindTicket, id, domain.TicketStatusApproved, nil)

	if len(h.mirror.written) != 1 {
		t.Fatalf("mirror writes = %d", len(h.mirror.written))
	}
	mirrored := h.mirror.written[0]
	if mirrored.Status != domain.TicketStatusApproved || *mirrored.PreviousStatus != domain.TicketStatusPending || mirrored.OwnerID != "holder-1" {
		t.Errorf("mirrored = %+v", mirrored)
	}

	if len(got) != 1 {
		t.Fatalf("dispatched = %d", len(got))
	}
	e := got[0]
	p, ok := e.Payload.(events.TransitionedPayload)
	if !ok {
		t.Fatalf("payload type %T", e.Payload)
	}
	if e.ID != res.EnvelopeID || e.EntityID != id || e.Actor.ID != "user-1" {
		t.Errorf("event = %+v", e)
	}
	if p.PreviousStatus != domain.TicketStatusPending || p.NewStatus != domain.TicketStatusApproved || p.CorrelationID != res.CorrelationID || p.EventID == "" {
		t.Errorf("payload = %+v", p)
	}

	if n := h.metrics.Snapshot().Transitions["ticket|approved|ok"]; n != 1 {
		t.Errorf("ok counter = %d", n)
	}
}

func TestMirrorFailureDoesNotFailTransition(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	h := newHarness(t, withLogger(zap.New(core)))
	h.mirror.err = errors.New("dial tcp 127.0.0.1:6379: connection refused")
	id := h.seedTicket(domain.TicketStatusPending)

	res, err := h.transition(domain.EntityKindTicket, id, domain.TicketStatusApproved, nil)
	if err != nil {
		t.Fatalf("transition failed on mirror error: %v", err)
	}
	if !res.Success || h.status(domain.EntityKindTicket, id) != domain.TicketStatusApproved {
		t.Fatal("authoritative write did not commit")
	}

	entries := logs.FilterMessage("secondary write failed").All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["code"] != string(domain.CodeSecondaryWriteFailed) || fields["entity_id"] != id {
		t.Errorf("fields = %v", fields)
	}
	if n := h.metrics.Snapshot().SecondaryWriteFailure["redis"]; n != 1 {
		t.Errorf("secondary failure counter = %d", n)
	}
}

func TestSubscriberErrorDoesNotFailTransition(t *testing.T) {
	h := newHarness(t)
	h.dispatcher.Subscribe(events.EventLifecycleTransitioned, func(context.Context, events.Event) error {
		return errors.New("subscriber exploded")
	})
	id := h.seedTicket(domain.TicketStatusPending)
	if _, err := h.transition(domain.EntityKindTicket, id, domain.TicketStatusApproved, nil); err != nil {
		t.Fatal(err)
	}
}

func TestTransitionRecordsFailureOutcome(t *testing.T) {
	h := newHarness(t)
	id := h.seedTicket(domain.TicketStatusRejected)
	if _, err := h.transition(domain.EntityKindTicket, id, domain.TicketStatusApproved, nil); err == nil {
		t.Fatal("expected error")
	}
	if n := h.metrics.Snapshot().Transitions["ticket|approved|INVALID_TRANSITION"]; n != 1 {
		t.Errorf("counter = %d, keys = %v", n, h.metrics.Snapshot().TransitionKeys())
	}
	if len(h.mirror.written) != 0 {
		t.Error("failed transition reached the mirror")
	}
}

func TestTransitionRequiresActorType(t *testing.T) {
	h := newHarness(t)
	id := h.seedTicket(domain.TicketStatusPending)
	_, err := h.lifecycle.Transition(context.Background(), TransitionInput{
		Kind:     domain.EntityKindTicket,
		EntityID: id,
		Target:   domain.TicketStatusApproved,
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if h.status(domain.EntityKindTicket, id) != domain.TicketStatusPending {
		t.Error("status changed without an actor")
	}
}

func TestUnknownTargetReportsCurrentStatus(t *testing.T) {
	h := newHarness(t)
	id := h.seedTicket(domain.TicketStatusApproved)
	_, err := h.transition(domain.EntityKindTicket, id, "teleported", nil)
	te := requireCode(t, err, domain.CodeInvalidTransition)
	if te.From != domain.TicketStatusApproved || te.To != "teleported" {
		t.Errorf("edge = %s -> %s", te.From, te.To)
	}

	_, err = h.transition("venue", id, "open", nil)
	requireCode(t, err, domain.CodeInvalidTransition)
}

func TestCurrentStatusAndAuditTrail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.lifecycle.CurrentStatus(ctx, domain.EntityKindEvent, "missing")
	requireCode(t, err, domain.CodeEntityNotFound)
	_, err = h.lifecycle.AuditTrail(ctx, domain.EntityKindEvent, "missing", 10, repository.NewestFirst)
	requireCode(t, err, domain.CodeEntityNotFound)

	id := h.seedTicket(domain.TicketStatusPending)
	h.mustTransition(domain.EntityKindTicket, id, domain.TicketStatusApproved, nil)
	h.mustTransition(domain.EntityKindTicket, id, domain.TicketStatusIssued, nil)

	view, err := h.lifecycle.CurrentStatus(ctx, domain.EntityKindTicket, id)
	if err != nil {
		t.Fatal(err)
	}
	if view.Status != domain.TicketStatusIssued || view.PreviousStatus == nil || *view.PreviousStatus != domain.TicketStatusApproved || view.TransitionedAt == nil {
		t.Errorf("view = %+v", view)
	}

	newest, err := h.lifecycle.AuditTrail(ctx, domain.EntityKindTicket, id, 1, repository.NewestFirst)
	if err != nil {
		t.Fatal(err)
	}
	if len(newest) != 1 || newest[0].EventType != domain.EventTypeTicketIssued {
		t.Fatalf("newest = %+v", newest)
	}
}

func TestRegisterEventAndTicket(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	organizer := domain.Actor{Type: domain.ActorTypeUser, ID: "organizer-9"}
	start := time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)

	ev, err := h.lifecycle.RegisterEvent(ctx, RegisterEventInput{OrganizerID: "organizer-9", Title: "  Demo day ", StartsAt: &start, Actor: organizer})
	if err != nil {
		t.Fatal(err)
	}
	if ev.Status != domain.EventStatusDraft || ev.Title != "Demo day" || ev.ID == "" {
		t.Fatalf("event = %+v", ev)
	}
	created, _ := h.ledger.ByEntity(ctx, domain.EntityKindEvent, ev.ID, 0, repository.OldestFirst)
	if len(created) != 1 || created[0].EventType != domain.EventTypeEventCreated || created[0].Actor != organizer {
		t.Fatalf("creation envelopes = %+v", created)
	}

	tk, err := h.lifecycle.RegisterTicket(ctx, RegisterTicketInput{EventID: ev.ID, HolderID: "guest-1", Actor: organizer})
	if err != nil {
		t.Fatal(err)
	}
	if tk.Status != domain.TicketStatusPending {
		t.Errorf("ticket status = %s", tk.Status)
	}
	reg, _ := h.ledger.ByEntity(ctx, domain.EntityKindTicket, tk.ID, 0, repository.OldestFirst)
	if len(reg) != 1 || reg[0].EventType != domain.EventTypeTicketRegistered || reg[0].Payload["eventId"] != ev.ID {
		t.Fatalf("registration envelopes = %+v", reg)
	}

	if _, err := h.lifecycle.RegisterTicket(ctx, RegisterTicketInput{EventID: ev.ID, HolderID: "guest-2", Status: domain.TicketStatusStaked, Actor: organizer}); err == nil {
		t.Error("registered a ticket directly as staked")
	}
	_, err = h.lifecycle.RegisterTicket(ctx, RegisterTicketInput{EventID: "missing", HolderID: "guest-3", Actor: organizer})
	requireCode(t, err, domain.CodeEntityNotFound)

	closed := h.seedEvent("Past", &start, domain.EventStatusEnded)
	if _, err := h.lifecycle.RegisterTicket(ctx, RegisterTicketInput{EventID: closed, HolderID: "guest-4", Actor: organizer}); err == nil {
		t.Error("registered a ticket for an ended event")
	}

	if _, err := h.lifecycle.RegisterEvent(ctx, RegisterEventInput{Title: "No organizer", Actor: organizer}); err == nil {
		t.Error("registered an event without an organizer")
	}
}
