package service

import (
	"testing"

	"github.com/eventgate/ticket-lifecycle/internal/domain"
)

func TestNewCommandCoversEveryTarget(t *testing.T) {
	for _, kind := range []domain.EntityKind{domain.EntityKindEvent, domain.EntityKindTicket} {
		for _, status := range domain.Statuses(kind) {
			_, isTarget := domain.EventTypeFor(kind, status)
			cmd, err := NewCommand(kind, status, nil)
			if isTarget {
				if err != nil {
					t.Errorf("%s/%s: %v", kind, status, err)
					continue
				}
				if cmd.EntityKind() != kind || cmd.Target() != status {
					t.Errorf("%s/%s resolved to %s/%s", kind, status, cmd.EntityKind(), cmd.Target())
				}
				continue
			}
			if err == nil {
				t.Errorf("%s/%s should not resolve to a command", kind, status)
			}
		}
	}
}

func TestNewCommandDecodesPayload(t *testing.T) {
	cmd, err := NewCommand(domain.EntityKindTicket, domain.TicketStatusStaked, map[string]any{
		"amount":        0.05,
		"currency":      "ETH",
		"txHash":        "0xfeed",
		"walletAddress": "0xbeef",
	})
	if err != nil {
		t.Fatal(err)
	}
	stake, ok := cmd.(StakeTicket)
	if !ok {
		t.Fatalf("command = %T", cmd)
	}
	if stake.Stake.Amount != 0.05 || stake.Stake.TxHash != "0xfeed" || stake.Stake.WalletAddress != "0xbeef" {
		t.Errorf("stake = %+v", stake.Stake)
	}
	if stake.Payload()["currency"] != "ETH" {
		t.Errorf("payload = %v", stake.Payload())
	}

	cmd, err = NewCommand(domain.EntityKindTicket, domain.TicketStatusCheckedIn, map[string]any{"gate": "north"})
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Payload()["gate"] != "north" {
		t.Errorf("payload = %v", cmd.Payload())
	}
}

func TestNewCommandRejectsMistypedPayload(t *testing.T) {
	_, err := NewCommand(domain.EntityKindTicket, domain.TicketStatusStaked, map[string]any{"amount": "lots"})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestNewCommandUnknownKind(t *testing.T) {
	_, err := NewCommand("venue", "open", nil)
	requireCode(t, err, domain.CodeInvalidTransition)
}

func TestParseEntityKind(t *testing.T) {
	for raw, want := range map[string]bool{"event": true, " Ticket ": true, "venue": false, "": false} {
		if _, ok := ParseEntityKind(raw); ok != want {
			t.Errorf("ParseEntityKind(%q) = %v, want %v", raw, ok, want)
		}
	}
}
