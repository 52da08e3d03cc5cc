package service

import "time"

// LogFilter supports history filtering by time range and type.
type LogFilter struct {
	OwnerID int
	From    time.Time // inclusive; zero means no lower bound
	To      time.Time // inclusive; zero means no upper bound
	Type    string
}

// RelayParams are the user-editable fields of a switch.
type RelayParams struct {
	Name            string
	Description     string
	ControlEndpoint string
	Threshold       *float64
	ThresholdUnit   string // A | W
}

// ProfileParams are the user-editable fields of a profile.
type ProfileParams struct {
	FullName string
	Username string
	Phone    string
}

// CostEstimate is the result of a cost query.
type CostEstimate struct {
	Period        CostPeriod `json:"period"`
	Label         string     `json:"label"`
	Hours         float64    `json:"hours"`
	PricePerKwh   float64    `json:"price_per_kwh"`
	EstimatedCost float64    `json:"estimated_cost"`
	Display       string     `json:"display"`
	Samples       int        `json:"samples"`
}

// CostUpdate is what the cost poller publishes. Error is only set while no
// history has been fetched for the session yet.
type CostUpdate struct {
	CostEstimate
	Error string `json:"error,omitempty"`
}
