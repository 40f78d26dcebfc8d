package domain

import "time"

// Event types
const (
	EventTypePartyCreated   = "party.created"
	EventTypePartyUpdated   = "party.updated"
	EventTypePartyDeleted   = "party.deleted"
	EventTypeEntryCreated   = "entry.created"
	EventTypeEntryUpdated   = "entry.updated"
	EventTypeEntryDeleted   = "entry.deleted"
	EventTypeBalanceChanged = "party.balance_changed"
)

// Aggregate types
const (
	AggregateTypeParty = "party"
	AggregateTypeEntry = "entry"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// BalanceChangedPayload builds the payload of EventTypeBalanceChanged.
func BalanceChangedPayload(change *BalanceChange, entry *Entry) map[string]any {
	return map[string]any{
		"party_id":   change.Party.ID,
		"party_kind": string(change.Party.Kind),
		"entry_id":   entry.ID,
		"entry_kind": string(entry.Kind),
		"before":     change.Before.String(),
		"after":      change.After.String(),
		"clamped":    change.Clamped,
	}
}
