package domain

// EventType is the UPPER_SNAKE_CASE verb stored on audit envelopes.
type EventType string

const (
	EventTypeEventCreated     EventType = "EVENT_CREATED"
	EventTypeEventPublished   EventType = "EVENT_PUBLISHED"
	EventTypeEventUnpublished EventType = "EVENT_UNPUBLISHED"
	EventTypeEventStarted     EventType = "EVENT_STARTED"
	EventTypeEventEnded       EventType = "EVENT_ENDED"
	EventTypeEventArchived    EventType = "EVENT_ARCHIVED"

	EventTypeTicketRegistered EventType = "TICKET_REGISTERED"
	EventTypeTicketApproved   EventType = "TICKET_APPROVED"
	EventTypeTicketRejected   EventType = "TICKET_REJECTED"
	EventTypeTicketIssued     EventType = "TICKET_ISSUED"
	EventTypeTicketStaked     EventType = "TICKET_STAKED"
	EventTypeTicketCheckedIn  EventType = "TICKET_CHECKED_IN"
	EventTypeTicketRefunded   EventType = "TICKET_REFUNDED"
	EventTypeTicketForfeited  EventType = "TICKET_FORFEITED"
	EventTypeTicketRevoked    EventType = "TICKET_REVOKED"

	// EventTypeSettlementRequested claims a ticket's stake before funds move.
	EventTypeSettlementRequested EventType = "SETTLEMENT_REQUESTED"
	EventTypeSettlementReleased  EventType = "SETTLEMENT_RELEASED"
	EventTypeSettlementForfeited EventType = "SETTLEMENT_FORFEITED"
	EventTypeSettlementFailed    EventType = "SETTLEMENT_FAILED"
)

var transitionEventTypes = map[EntityKind]map[Status]EventType{
	EntityKindEvent: {
		EventStatusDraft:     EventTypeEventUnpublished,
		EventStatusPublished: EventTypeEventPublished,
		EventStatusLive:      EventTypeEventStarted,
		EventStatusEnded:     EventTypeEventEnded,
		EventStatusArchived:  EventTypeEventArchived,
	},
	EntityKindTicket: {
		TicketStatusApproved:  EventTypeTicketApproved,
		TicketStatusRejected:  EventTypeTicketRejected,
		TicketStatusIssued:    EventTypeTicketIssued,
		TicketStatusStaked:    EventTypeTicketStaked,
		TicketStatusCheckedIn: EventTypeTicketCheckedIn,
		TicketStatusRefunded:  EventTypeTicketRefunded,
		TicketStatusForfeited: EventTypeTicketForfeited,
		TicketStatusRevoked:   EventTypeTicketRevoked,
	},
}

// EventTypeFor returns the envelope type recorded when an entity of kind
// enters target. The second value is false for statuses that are never
// reached through a transition.
func EventTypeFor(kind EntityKind, target Status) (EventType, bool) {
	t, ok := transitionEventTypes[kind][target]
	return t, ok
}
