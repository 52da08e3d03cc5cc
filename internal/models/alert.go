package models

import "time"

const (
	AlertCritical = "critical"
	AlertWarning  = "warning"
)

// Alert is an abnormal-usage notification.
type Alert struct {
	OwnerID    int       `json:"owner_id"`
	DeviceID   string    `json:"device_id,omitempty"`
	Level      string    `json:"level"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}
