package models

import "time"

// Event types recorded in the log.
const (
	EventToggle       = "TOGGLE"
	EventToggleFailed = "TOGGLE_FAILED"
	EventTimerFired   = "TIMER_FIRED"
	EventAlert        = "ALERT"
	EventRelayCreated = "RELAY_CREATED"
	EventRelayUpdated = "RELAY_UPDATED"
	EventRelayDeleted = "RELAY_DELETED"
)

// Event is a single log entry.
type Event struct {
	EventID     string    `json:"event_id"`
	OwnerID     int       `json:"owner_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
