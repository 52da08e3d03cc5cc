package models

const (
	ThemeLight  = "Light"
	ThemeDark   = "Dark"
	ThemeSystem = "System"
)

// Settings holds per-user preferences.
type Settings struct {
	UserID               int     `json:"-"`
	Theme                string  `json:"theme"`
	CostPerKwh           float64 `json:"cost_per_kwh"`
	MaxSensorSpikeAlert  bool    `json:"max_sensor_spike_alert"`
	PerApplianceAlert    bool    `json:"per_appliance_alert"`
	SummaryEnabled       bool    `json:"summary_enabled"`
	SummaryIntervalHours int     `json:"summary_interval_hours"`
	HapticsEnabled       bool    `json:"haptics_enabled"`
}

// DefaultSettings returns the preferences a new account starts with.
func DefaultSettings(userID int) Settings {
	return Settings{
		UserID:               userID,
		Theme:                ThemeSystem,
		CostPerKwh:           10.0,
		SummaryEnabled:       true,
		SummaryIntervalHours: 24,
		HapticsEnabled:       true,
	}
}
