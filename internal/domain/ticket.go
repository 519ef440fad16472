package domain

import "time"

// Ticket is a guest's admission to an event.
type Ticket struct {
	ID             string
	EventID        string
	HolderID       string
	Status         Status
	PreviousStatus *Status
	TransitionedAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Lifecycle projects the ticket onto the common lifecycle shape.
func (t *Ticket) Lifecycle() *LifecycleEntity {
	return &LifecycleEntity{
		Kind:           EntityKindTicket,
		ID:             t.ID,
		Status:         t.Status,
		PreviousStatus: t.PreviousStatus,
		TransitionedAt: t.TransitionedAt,
		OwnerID:        t.HolderID,
		EventID:        t.EventID,
	}
}
