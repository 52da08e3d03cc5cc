package models

// SensorData is the latest reading reported by the sensor backend.
type SensorData struct {
	Voltage   float64 `json:"voltage"`
	Current   float64 `json:"current"`
	Power     float64 `json:"power"`
	Energy    float64 `json:"energy"`
	Timestamp string  `json:"timestamp"`
}

// PowerSample is one point of a historical series.
// Timestamp is UTC ISO-8601 with millisecond precision.
type PowerSample struct {
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
}

// HistoricalSensorData is the chart payload for a given interval.
type HistoricalSensorData struct {
	Current           float64       `json:"current"`
	AvgCurrent        float64       `json:"avgCurrent"`
	Voltage           float64       `json:"voltage"`
	InstPower         float64       `json:"instPower"`
	AvgPower          float64       `json:"avgPower"`
	CurrentHistory    []PowerSample `json:"currentHistory"`
	AvgCurrentHistory []PowerSample `json:"avgCurrentHistory"`
	VoltageHistory    []PowerSample `json:"voltageHistory"`
	PowerHistory      []PowerSample `json:"powerHistory"`
}
