package service

import (
	"math"
	"testing"
	"time"

	"powersense/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, time.March, 4, 10, 0, 0, 0, time.UTC)

func sampleAt(offset time.Duration, watts float64) models.PowerSample {
	return models.PowerSample{Timestamp: t0.Add(offset).Format(sampleLayout), Value: watts}
}

func TestEstimateCost_TwoPointExample(t *testing.T) {
	samples := []models.PowerSample{
		sampleAt(0, 100),
		sampleAt(10*time.Second, 200),
	}

	got := EstimateCost(samples, PeriodOneMinute, 10)

	want := 1500.0 / 3_600_000.0 * 10
	assert.InDelta(t, want, got, 1e-12)
}

func TestEstimateCost_ZeroForNoneOrNonPositivePrice(t *testing.T) {
	samples := []models.PowerSample{sampleAt(0, 1000), sampleAt(time.Second, 1000)}

	cases := []struct {
		name   string
		period CostPeriod
		price  float64
	}{
		{"none period", PeriodNone, 10},
		{"zero price", PeriodOneHour, 0},
		{"negative price", PeriodOneHour, -3},
		{"nan price", PeriodOneHour, math.NaN()},
		{"unknown period", CostPeriod("7d"), 10},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Zero(t, EstimateCost(samples, c.period, c.price))
		})
	}
}

func TestEstimateCost_ConstantPowerOverWholePeriod(t *testing.T) {
	const watts = 500.0
	var samples []models.PowerSample
	for s := 0; s <= 3600; s += 10 {
		samples = append(samples, sampleAt(time.Duration(s)*time.Second, watts))
	}

	got := EstimateCost(samples, PeriodOneHour, 8)

	assert.InDelta(t, watts/1000*1*8, got, 1e-9)
}

func TestEstimateCost_GapsAreSkipped(t *testing.T) {
	var samples []models.PowerSample
	for s := 0; s <= 60; s += 10 {
		samples = append(samples, sampleAt(time.Duration(s)*time.Second, 100))
	}
	// 600s offline, then a second segment.
	for s := 660; s <= 720; s += 10 {
		samples = append(samples, sampleAt(time.Duration(s)*time.Second, 300))
	}

	got := EstimateCost(samples, PeriodTwentyFourHours, 10)

	want := (100.0*60 + 300.0*60) / 3_600_000.0 * 10
	assert.InDelta(t, want, got, 1e-12)
}

func TestEstimateCost_GapOfExactlyMaxIsSkipped(t *testing.T) {
	samples := []models.PowerSample{sampleAt(0, 100), sampleAt(300*time.Second, 100)}

	assert.Zero(t, EstimateCost(samples, PeriodOneHour, 10))
}

func TestEstimateCost_WindowAnchoredToLatestSample(t *testing.T) {
	// Old samples are far in the past; the window still covers the last minute.
	samples := []models.PowerSample{
		sampleAt(0, 1000),
		sampleAt(10*time.Second, 1000),
		sampleAt(2*time.Hour, 200),
		sampleAt(2*time.Hour+30*time.Second, 200),
	}

	got := EstimateCost(samples, PeriodOneMinute, 10)

	assert.InDelta(t, 200.0*30/3_600_000.0*10, got, 1e-12)
}

func TestEstimateCost_CutoffIsInclusive(t *testing.T) {
	samples := []models.PowerSample{
		sampleAt(0, 100),
		sampleAt(60*time.Second, 100),
	}

	got := EstimateCost(samples, PeriodOneMinute, 10)

	assert.InDelta(t, 100.0*60/3_600_000.0*10, got, 1e-12)
}

func TestEstimateCost_SingleSampleFlatEstimate(t *testing.T) {
	samples := []models.PowerSample{
		sampleAt(0, 2000),
		sampleAt(3*time.Hour, 400),
	}

	got := EstimateCost(samples, PeriodOneHour, 5)

	assert.InDelta(t, 0.4*1*5, got, 1e-12)
}

func TestEstimateCost_DropsUnparseableAndSorts(t *testing.T) {
	samples := []models.PowerSample{
		sampleAt(10*time.Second, 200),
		{Timestamp: "yesterday", Value: 99999},
		{Timestamp: "", Value: 99999},
		sampleAt(0, 100),
	}

	got := EstimateCost(samples, PeriodOneMinute, 10)

	assert.InDelta(t, 1500.0/3_600_000.0*10, got, 1e-12)
}

func TestEstimateCost_AcceptsRFC3339(t *testing.T) {
	samples := []models.PowerSample{
		{Timestamp: t0.Format(time.RFC3339Nano), Value: 100},
		{Timestamp: t0.Add(10 * time.Second).Format(time.RFC3339), Value: 200},
	}

	assert.InDelta(t, 1500.0/3_600_000.0*10, EstimateCost(samples, PeriodOneMinute, 10), 1e-12)
}

func TestEstimateCost_EmptyAndNonFinite(t *testing.T) {
	assert.Zero(t, EstimateCost(nil, PeriodOneHour, 10))
	assert.Zero(t, EstimateCost([]models.PowerSample{{Timestamp: "bad"}}, PeriodOneHour, 10))

	samples := []models.PowerSample{sampleAt(0, math.Inf(1)), sampleAt(time.Second, 1)}
	assert.Zero(t, EstimateCost(samples, PeriodOneHour, 10))
}

func TestParseCostPeriod(t *testing.T) {
	p, ok := ParseCostPeriod(" 5M ")
	require.True(t, ok)
	assert.Equal(t, PeriodFiveMinutes, p)
	assert.InDelta(t, 5.0/60.0, p.Hours(), 1e-12)
	assert.Equal(t, "Last 5 Minutes", p.Label())

	p, ok = ParseCostPeriod("")
	require.True(t, ok)
	assert.Equal(t, PeriodNone, p)

	_, ok = ParseCostPeriod("2h")
	assert.False(t, ok)
}

func TestHistoryHoursFor(t *testing.T) {
	assert.Equal(t, 26, historyHoursFor(PeriodNone))
	assert.Equal(t, 26, historyHoursFor(PeriodTwentyFourHours))
	assert.Equal(t, 2, historyHoursFor(PeriodOneMinute))
	assert.Equal(t, 2, historyHoursFor(PeriodThirtyMinutes))
	assert.Equal(t, 3, historyHoursFor(PeriodOneHour))
	assert.Equal(t, 8, historyHoursFor(PeriodSixHours))
}
