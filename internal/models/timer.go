package models

// TimerState is the countdown attached to a relay.
type TimerState struct {
	TotalMillis     int64 `json:"total_millis"`
	RemainingMillis int64 `json:"remaining_millis"`
	IsRunning       bool  `json:"is_running"`
}
