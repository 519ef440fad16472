package domain

import "time"

// AuditEnvelope is an immutable ledger entry. Once appended it is never
// updated or deleted.
type AuditEnvelope struct {
	ID            string
	EntityType    EntityKind
	EntityID      string
	EventType     EventType
	Actor         Actor
	CorrelationID string
	CausationID   *string
	Payload       map[string]any
	CreatedAt     time.Time
}

// PayloadString returns payload[key] when it is a string.
func (e *AuditEnvelope) PayloadString(key string) string {
	if e == nil || e.Payload == nil {
		return ""
	}
	if v, ok := e.Payload[key].(string); ok {
		return v
	}
	return ""
}
