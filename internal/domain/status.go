package domain

// EntityKind identifies which lifecycle a row follows.
type EntityKind string

const (
	EntityKindEvent  EntityKind = "event"
	EntityKindTicket EntityKind = "ticket"
)

// Valid reports whether k is a known entity kind.
func (k EntityKind) Valid() bool {
	return k == EntityKindEvent || k == EntityKindTicket
}

// Status is the persisted lifecycle value of an event or ticket.
type Status string

// Event statuses.
const (
	EventStatusDraft     Status = "draft"
	EventStatusPublished Status = "published"
	EventStatusLive      Status = "live"
	EventStatusEnded     Status = "ended"
	EventStatusArchived  Status = "archived"
)

// Ticket statuses.
const (
	TicketStatusPending         Status = "pending"
	TicketStatusPendingApproval Status = "pending_approval"
	TicketStatusApproved        Status = "approved"
	TicketStatusRejected        Status = "rejected"
	TicketStatusIssued          Status = "issued"
	TicketStatusStaked          Status = "staked"
	TicketStatusCheckedIn       Status = "checked_in"
	// TicketStatusScanned is the legacy spelling of checked_in. Rows may
	// still carry it but it is never a transition target.
	TicketStatusScanned   Status = "scanned"
	TicketStatusRefunded  Status = "refunded"
	TicketStatusForfeited Status = "forfeited"
	TicketStatusRevoked   Status = "revoked"
)

// IsCheckedIn treats scanned and checked_in as the same state.
func (s Status) IsCheckedIn() bool {
	return s == TicketStatusCheckedIn || s == TicketStatusScanned
}
