package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eventgate/ticket-lifecycle/internal/domain"
)

func TestParseGuardPolicy(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name: "valid",
			doc: `
forbidden:
  - kind: ticket
    from: staked
    to: refunded
    reason: refunds are paused
`,
		},
		{name: "empty document", doc: ``},
		{
			name: "unknown kind",
			doc: `
forbidden:
  - kind: venue
    from: open
    to: closed
    reason: nope
`,
			wantErr: "unknown kind",
		},
		{
			name: "status from the wrong kind",
			doc: `
forbidden:
  - kind: event
    from: staked
    to: draft
    reason: nope
`,
			wantErr: "unknown status",
		},
		{
			name: "missing reason",
			doc: `
forbidden:
  - kind: event
    from: live
    to: draft
`,
			wantErr: "reason is required",
		},
		{name: "malformed yaml", doc: "forbidden: [", wantErr: "decode guard policy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGuardPolicy([]byte(tt.doc))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultGuardPolicyEdges(t *testing.T) {
	p := DefaultGuardPolicy()
	for _, edge := range [][2]domain.Status{
		{domain.EventStatusLive, domain.EventStatusDraft},
		{domain.EventStatusEnded, domain.EventStatusPublished},
	} {
		if _, ok := p.Reason(domain.EntityKindEvent, edge[0], edge[1]); !ok {
			t.Errorf("%s -> %s not forbidden", edge[0], edge[1])
		}
	}
	if _, ok := p.Reason(domain.EntityKindEvent, domain.EventStatusPublished, domain.EventStatusDraft); ok {
		t.Error("published -> draft should not be forbidden")
	}
}

func TestLoadGuardPolicyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	doc := "forbidden:\n  - kind: ticket\n    from: staked\n    to: refunded\n    reason: refunds are paused\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	p, err := LoadGuardPolicy(path)
	if err != nil {
		t.Fatal(err)
	}
	if reason, ok := p.Reason(domain.EntityKindTicket, domain.TicketStatusStaked, domain.TicketStatusRefunded); !ok || reason != "refunds are paused" {
		t.Fatalf("reason = %q, %v", reason, ok)
	}

	if _, err := LoadGuardPolicy(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestPolicyBlocksLegalEdge(t *testing.T) {
	h := newHarness(t)
	p, err := ParseGuardPolicy([]byte("forbidden:\n  - kind: ticket\n    from: pending\n    to: approved\n    reason: approvals are frozen\n"))
	if err != nil {
		t.Fatal(err)
	}
	exec := NewTransitionExecutor(TransitionDependencies{
		Entities: h.store.Lifecycle,
		Tx:       h.store,
		Guards:   NewGuardEvaluator(nil, p),
	})
	id := h.seedTicket(domain.TicketStatusPending)

	_, err = exec.Execute(context.Background(), TransitionRequest{
		Command:     ApproveTicket{},
		EntityID:    id,
		TriggeredBy: domain.SystemActor(domain.ActorTypeSystem),
	})
	te := requireCode(t, err, domain.CodeGuardFailed)
	if te.Reason != "approvals are frozen" {
		t.Errorf("reason = %q", te.Reason)
	}
}

func TestRegisteredGuardRunsForAnySource(t *testing.T) {
	h := newHarness(t)
	g := NewGuardEvaluator(nil, nil)
	calls := 0
	g.Register(domain.EntityKindTicket, anyStatus, domain.TicketStatusRevoked, func(_ context.Context, in GuardInput) (GuardResult, error) {
		calls++
		if in.Entity == nil || in.Entity.Status != domain.TicketStatusIssued {
			t.Errorf("guard saw entity %+v", in.Entity)
		}
		return GuardResult{Allowed: false, Reason: "holder has an open dispute"}, nil
	})
	exec := NewTransitionExecutor(TransitionDependencies{Entities: h.store.Lifecycle, Tx: h.store, Guards: g})
	id := h.seedTicket(domain.TicketStatusIssued)

	_, err := exec.Execute(context.Background(), TransitionRequest{
		Command:     RevokeTicket{},
		EntityID:    id,
		TriggeredBy: domain.SystemActor(domain.ActorTypeSystem),
	})
	te := requireCode(t, err, domain.CodeGuardFailed)
	if te.Reason != "holder has an open dispute" || calls != 1 {
		t.Fatalf("reason = %q, calls = %d", te.Reason, calls)
	}
}
