package domain

// ActorType differentiates who triggered a transition.
type ActorType string

const (
	ActorTypeUser    ActorType = "user"
	ActorTypeSystem  ActorType = "system"
	ActorTypeCron    ActorType = "cron"
	ActorTypeWebhook ActorType = "webhook"
)

// Valid reports whether t is a known actor type.
func (t ActorType) Valid() bool {
	switch t {
	case ActorTypeUser, ActorTypeSystem, ActorTypeCron, ActorTypeWebhook:
		return true
	}
	return false
}

// Actor identifies the caller behind a transition. ID is empty for
// anonymous system work.
type Actor struct {
	Type ActorType `json:"type"`
	ID   string    `json:"id,omitempty"`
}

// SystemActor returns an actor of the given type with no id.
func SystemActor(t ActorType) Actor {
	return Actor{Type: t}
}
