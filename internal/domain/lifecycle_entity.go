package domain

import "time"

// LifecycleEntity is the status-bearing part of an event or ticket row.
type LifecycleEntity struct {
	Kind           EntityKind
	ID             string
	Status         Status
	PreviousStatus *Status
	TransitionedAt *time.Time
	// OwnerID is the organizer for events and the holder for tickets.
	OwnerID string
	// EventID is set for tickets only.
	EventID string
}
