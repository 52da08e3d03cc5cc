package models

// Threshold units accepted for per-appliance alerts.
const (
	UnitAmps  = "A"
	UnitWatts = "W"
)

// RelayDevice is a remotely controllable switch owned by a user.
type RelayDevice struct {
	ID              string   `json:"id"`
	OwnerID         int      `json:"owner_id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	ControlEndpoint string   `json:"control_endpoint"` // relay id on the sensor backend
	IsOn            bool     `json:"is_on"`
	IsFavorite      bool     `json:"is_favorite"`
	Pin             int      `json:"pin"`
	Threshold       *float64 `json:"threshold,omitempty"`
	ThresholdUnit   string   `json:"threshold_unit"` // A | W
}

// RelayUsage is the hours each backend relay spent switched on.
type RelayUsage struct {
	Relay1Hours float64 `json:"relay1"`
	Relay2Hours float64 `json:"relay2"`
}
