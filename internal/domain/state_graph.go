package domain

// lifecycleGraph holds the legal edges per entity kind. Statuses mapped to
// an empty slice are terminal.
var lifecycleGraph = map[EntityKind]map[Status][]Status{
	EntityKindEvent: {
		EventStatusDraft:     {EventStatusPublished},
		EventStatusPublished: {EventStatusLive, EventStatusDraft, EventStatusArchived},
		EventStatusLive:      {EventStatusEnded},
		EventStatusEnded:     {EventStatusArchived},
		EventStatusArchived:  {},
	},
	EntityKindTicket: {
		TicketStatusPending:         {TicketStatusApproved, TicketStatusRejected},
		TicketStatusPendingApproval: {TicketStatusApproved, TicketStatusRejected},
		TicketStatusApproved:        {TicketStatusIssued, TicketStatusStaked},
		TicketStatusIssued:          {TicketStatusStaked, TicketStatusCheckedIn, TicketStatusRevoked},
		TicketStatusStaked:          {TicketStatusCheckedIn, TicketStatusRefunded, TicketStatusForfeited},
		TicketStatusCheckedIn:       {},
		TicketStatusScanned:         {},
		TicketStatusRejected:        {},
		TicketStatusRefunded:        {},
		TicketStatusForfeited:       {},
		TicketStatusRevoked:         {},
	},
}

// LegalTargets lists the statuses reachable from current in one step. The
// returned slice is a copy in table order.
func LegalTargets(kind EntityKind, current Status) []Status {
	targets := lifecycleGraph[kind][current]
	out := make([]Status, len(targets))
	copy(out, targets)
	return out
}

// IsLegal reports whether from→to is an edge of the kind's graph.
func IsLegal(kind EntityKind, from, to Status) bool {
	for _, candidate := range lifecycleGraph[kind][from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// IsKnownStatus reports whether status belongs to the kind's status set.
func IsKnownStatus(kind EntityKind, status Status) bool {
	_, ok := lifecycleGraph[kind][status]
	return ok
}

// IsTerminal reports whether status is a known status with no outgoing edges.
func IsTerminal(kind EntityKind, status Status) bool {
	targets, ok := lifecycleGraph[kind][status]
	return ok && len(targets) == 0
}

// Statuses returns every status of kind in a stable order.
func Statuses(kind EntityKind) []Status {
	switch kind {
	case EntityKindEvent:
		return []Status{EventStatusDraft, EventStatusPublished, EventStatusLive, EventStatusEnded, EventStatusArchived}
	case EntityKindTicket:
		return []Status{
			TicketStatusPending, TicketStatusPendingApproval, TicketStatusApproved, TicketStatusRejected,
			TicketStatusIssued, TicketStatusStaked, TicketStatusCheckedIn, TicketStatusScanned,
			TicketStatusRefunded, TicketStatusForfeited, TicketStatusRevoked,
		}
	default:
		return nil
	}
}
