package service

import (
	"math"
	"sort"
	"strings"
	"time"

	"powersense/internal/models"
)

// CostPeriod is the look-back window used for cost estimation.
type CostPeriod string

const (
	PeriodNone            CostPeriod = "none"
	PeriodOneMinute       CostPeriod = "1m"
	PeriodFiveMinutes     CostPeriod = "5m"
	PeriodTenMinutes      CostPeriod = "10m"
	PeriodThirtyMinutes   CostPeriod = "30m"
	PeriodOneHour         CostPeriod = "1h"
	PeriodSixHours        CostPeriod = "6h"
	PeriodTwelveHours     CostPeriod = "12h"
	PeriodTwentyFourHours CostPeriod = "24h"
)

var periodHours = map[CostPeriod]float64{
	PeriodNone:            0,
	PeriodOneMinute:       1.0 / 60.0,
	PeriodFiveMinutes:     5.0 / 60.0,
	PeriodTenMinutes:      10.0 / 60.0,
	PeriodThirtyMinutes:   0.5,
	PeriodOneHour:         1,
	PeriodSixHours:        6,
	PeriodTwelveHours:     12,
	PeriodTwentyFourHours: 24,
}

var periodLabels = map[CostPeriod]string{
	PeriodNone:            "Select Period",
	PeriodOneMinute:       "Last 1 Minute",
	PeriodFiveMinutes:     "Last 5 Minutes",
	PeriodTenMinutes:      "Last 10 Minutes",
	PeriodThirtyMinutes:   "Last 30 Minutes",
	PeriodOneHour:         "Last 1 Hour",
	PeriodSixHours:        "Last 6 Hours",
	PeriodTwelveHours:     "Last 12 Hours",
	PeriodTwentyFourHours: "Last 24 Hours",
}

// ParseCostPeriod accepts the short codes ("5m", "1h") and "" / "none".
func ParseCostPeriod(s string) (CostPeriod, bool) {
	p := CostPeriod(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return PeriodNone, true
	}
	_, ok := periodHours[p]
	return p, ok
}

// Hours returns the window length in fractional hours; 0 for None or unknown.
func (p CostPeriod) Hours() float64 { return periodHours[p] }

func (p CostPeriod) Label() string { return periodLabels[p] }

func (p CostPeriod) duration() time.Duration {
	return time.Duration(p.Hours() * float64(time.Hour))
}

const (
	// sampleLayout is what the sensor backend emits.
	sampleLayout = "2006-01-02T15:04:05.000Z"

	// Intervals this long or longer are sensor-offline gaps.
	maxIntegrationGapSec = 300.0

	wattSecondsPerKwh = 3_600_000.0
)

type timedSample struct {
	ms    int64
	watts float64
}

func parseSampleTime(ts string) (int64, bool) {
	t, err := time.Parse(sampleLayout, ts)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return 0, false
		}
	}
	return t.UnixMilli(), true
}

// EstimateCost integrates a power series (watts) over the period ending at
// the latest sample and prices it per kWh. It never fails: anything that
// cannot be computed yields 0.
func EstimateCost(samples []models.PowerSample, period CostPeriod, pricePerKwh float64) (cost float64) {
	hours := period.Hours()
	if hours <= 0 || !(pricePerKwh > 0) {
		return 0
	}

	defer func() {
		if r := recover(); r != nil {
			cost = 0
		}
		if math.IsNaN(cost) || math.IsInf(cost, 0) {
			cost = 0
		}
	}()

	points := make([]timedSample, 0, len(samples))
	for _, s := range samples {
		ms, ok := parseSampleTime(s.Timestamp)
		if !ok {
			continue
		}
		points = append(points, timedSample{ms: ms, watts: s.Value})
	}
	if len(points) == 0 {
		return 0
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].ms < points[j].ms })

	// Anchor to the newest sample rather than the local clock.
	latest := points[len(points)-1].ms
	cutoff := latest - period.duration().Milliseconds()

	window := points[:0:0]
	for _, p := range points {
		if p.ms >= cutoff {
			window = append(window, p)
		}
	}

	if len(window) < 2 {
		if len(window) == 0 {
			return 0
		}
		return (window[0].watts / 1000.0) * hours * pricePerKwh
	}

	var wattSeconds float64
	for i := 0; i < len(window)-1; i++ {
		a, b := window[i], window[i+1]
		dt := float64(b.ms-a.ms) / 1000.0
		if dt <= 0 || dt >= maxIntegrationGapSec {
			continue
		}
		wattSeconds += (a.watts + b.watts) / 2.0 * dt
	}

	return wattSeconds / wattSecondsPerKwh * pricePerKwh
}

// historyHoursFor is how much history to request so the window start is covered.
func historyHoursFor(period CostPeriod) int {
	hours := period.Hours()
	if period == PeriodNone || hours <= 0 {
		hours = 24
	}
	n := int(math.Ceil(hours + 1.5))
	if n < 1 {
		n = 1
	}
	return n
}
