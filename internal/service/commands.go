package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/eventgate/ticket-lifecycle/internal/domain"
	apperrors "github.com/eventgate/ticket-lifecycle/pkg/util/errorutil"
)

// Command is a typed request to move an entity into one target status.
// Each target has its own type so payload shape is checked at the edge
// instead of being passed around as an untyped map.
type Command interface {
	EntityKind() domain.EntityKind
	Target() domain.Status
	// Payload returns the fields echoed into the audit envelope.
	Payload() map[string]any
	isCommand()
}

type eventCommand struct{}

func (eventCommand) EntityKind() domain.EntityKind { return domain.EntityKindEvent }
func (eventCommand) Payload() map[string]any       { return map[string]any{} }
func (eventCommand) isCommand()                    {}

type ticketCommand struct{}

func (ticketCommand) EntityKind() domain.EntityKind { return domain.EntityKindTicket }
func (ticketCommand) isCommand()                    {}

// PublishEvent moves an event to published.
type PublishEvent struct{ eventCommand }

func (PublishEvent) Target() domain.Status { return domain.EventStatusPublished }

// RevertEventToDraft unpublishes an event.
type RevertEventToDraft struct{ eventCommand }

func (RevertEventToDraft) Target() domain.Status { return domain.EventStatusDraft }

// StartEvent marks an event live.
type StartEvent struct{ eventCommand }

func (StartEvent) Target() domain.Status { return domain.EventStatusLive }

// EndEvent marks an event ended.
type EndEvent struct{ eventCommand }

func (EndEvent) Target() domain.Status { return domain.EventStatusEnded }

// ArchiveEvent archives an event.
type ArchiveEvent struct{ eventCommand }

func (ArchiveEvent) Target() domain.Status { return domain.EventStatusArchived }

// ApproveTicket approves a pending registration.
type ApproveTicket struct{ ticketCommand }

func (ApproveTicket) Target() domain.Status   { return domain.TicketStatusApproved }
func (ApproveTicket) Payload() map[string]any { return map[string]any{} }

// RejectTicket rejects a pending registration.
type RejectTicket struct {
	ticketCommand
	Note string `json:"note,omitempty"`
}

func (RejectTicket) Target() domain.Status { return domain.TicketStatusRejected }
func (c RejectTicket) Payload() map[string]any {
	out := map[string]any{}
	if c.Note != "" {
		out["note"] = c.Note
	}
	return out
}

// IssueTicket issues an approved ticket without a stake.
type IssueTicket struct{ ticketCommand }

func (IssueTicket) Target() domain.Status   { return domain.TicketStatusIssued }
func (IssueTicket) Payload() map[string]any { return map[string]any{} }

// StakeTicket records a verified stake against the ticket.
type StakeTicket struct {
	ticketCommand
	Stake domain.StakeRecord
}

func (StakeTicket) Target() domain.Status     { return domain.TicketStatusStaked }
func (c StakeTicket) Payload() map[string]any { return c.Stake.PayloadFields() }

// CheckInTicket admits the holder.
type CheckInTicket struct {
	ticketCommand
	Gate string `json:"gate,omitempty"`
}

func (CheckInTicket) Target() domain.Status { return domain.TicketStatusCheckedIn }
func (c CheckInTicket) Payload() map[string]any {
	out := map[string]any{}
	if c.Gate != "" {
		out["gate"] = c.Gate
	}
	return out
}

// RefundTicket returns a stake to its holder.
type RefundTicket struct {
	ticketCommand
	TxHash string  `json:"txHash"`
	Amount float64 `json:"amount,omitempty"`
}

func (RefundTicket) Target() domain.Status { return domain.TicketStatusRefunded }
func (c RefundTicket) Payload() map[string]any {
	out := map[string]any{"txHash": c.TxHash}
	if c.Amount > 0 {
		out["amount"] = c.Amount
	}
	return out
}

// ForfeitTicket forfeits a stake after a no-show.
type ForfeitTicket struct {
	ticketCommand
	TxHash string `json:"txHash,omitempty"`
}

func (ForfeitTicket) Target() domain.Status { return domain.TicketStatusForfeited }
func (c ForfeitTicket) Payload() map[string]any {
	out := map[string]any{}
	if c.TxHash != "" {
		out["txHash"] = c.TxHash
	}
	return out
}

// RevokeTicket revokes an issued ticket.
type RevokeTicket struct{ ticketCommand }

func (RevokeTicket) Target() domain.Status   { return domain.TicketStatusRevoked }
func (RevokeTicket) Payload() map[string]any { return map[string]any{} }

// NewCommand resolves (kind, target) to its command type and decodes raw
// into the command's payload. Unknown pairs fail with INVALID_TRANSITION
// rather than being dropped.
func NewCommand(kind domain.EntityKind, target domain.Status, raw map[string]any) (Command, error) {
	switch kind {
	case domain.EntityKindEvent:
		switch target {
		case domain.EventStatusPublished:
			return PublishEvent{}, nil
		case domain.EventStatusDraft:
			return RevertEventToDraft{}, nil
		case domain.EventStatusLive:
			return StartEvent{}, nil
		case domain.EventStatusEnded:
			return EndEvent{}, nil
		case domain.EventStatusArchived:
			return ArchiveEvent{}, nil
		}
	case domain.EntityKindTicket:
		switch target {
		case domain.TicketStatusApproved:
			return ApproveTicket{}, nil
		case domain.TicketStatusRejected:
			var c RejectTicket
			if err := decodePayload(raw, &c); err != nil {
				return nil, err
			}
			return c, nil
		case domain.TicketStatusIssued:
			return IssueTicket{}, nil
		case domain.TicketStatusStaked:
			var stake domain.StakeRecord
			if err := decodePayload(raw, &stake); err != nil {
				return nil, err
			}
			return StakeTicket{Stake: stake}, nil
		case domain.TicketStatusCheckedIn:
			var c CheckInTicket
			if err := decodePayload(raw, &c); err != nil {
				return nil, err
			}
			return c, nil
		case domain.TicketStatusRefunded:
			var c RefundTicket
			if err := decodePayload(raw, &c); err != nil {
				return nil, err
			}
			return c, nil
		case domain.TicketStatusForfeited:
			var c ForfeitTicket
			if err := decodePayload(raw, &c); err != nil {
				return nil, err
			}
			return c, nil
		case domain.TicketStatusRevoked:
			return RevokeTicket{}, nil
		}
	}
	return nil, domain.NewInvalidTransition(kind, "", "", target, fmt.Sprintf("%q is not a transition target for %s", target, kind))
}

// decodePayload round-trips raw through JSON into dst so numeric and
// string fields arrive with their declared types.
func decodePayload(raw map[string]any, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return apperrors.NewValidationError("invalid transition payload", map[string]any{"cause": err.Error()})
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return apperrors.NewValidationError("invalid transition payload", map[string]any{"cause": err.Error()})
	}
	return nil
}

// ParseEntityKind validates a kind from a path or query string.
func ParseEntityKind(raw string) (domain.EntityKind, bool) {
	kind := domain.EntityKind(strings.ToLower(strings.TrimSpace(raw)))
	return kind, kind.Valid()
}
