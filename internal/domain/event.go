package domain

import (
	"strings"
	"time"
)

// Event is an organizer's listing. Title and StartsAt are edited outside
// the lifecycle; Status only changes through transitions.
type Event struct {
	ID             string
	OrganizerID    string
	Title          string
	StartsAt       *time.Time
	Status         Status
	PreviousStatus *Status
	TransitionedAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasTitle reports whether a non-blank title is set.
func (e *Event) HasTitle() bool {
	return strings.TrimSpace(e.Title) != ""
}

// Lifecycle projects the event onto the common lifecycle shape.
func (e *Event) Lifecycle() *LifecycleEntity {
	return &LifecycleEntity{
		Kind:           EntityKindEvent,
		ID:             e.ID,
		Status:         e.Status,
		PreviousStatus: e.PreviousStatus,
		TransitionedAt: e.TransitionedAt,
		OwnerID:        e.OrganizerID,
	}
}
