package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"powersense/internal/models"

	"github.com/shopspring/decimal"
)

const (
	defaultHistoryRefresh = 15 * time.Second
	relayUsageHours       = 24
)

var ErrNoBackend = errors.New("sensor backend is not configured")

type cachedHistory struct {
	data      models.HistoricalSensorData
	fetchedAt time.Time
}

// UsageService fronts the backend's historical endpoints. It keeps the last
// successful history per look-back so that a failed refresh keeps serving
// the previous series.
type UsageService struct {
	backend   SensorBackend
	telemetry Telemetry
	refresh   time.Duration
	now       func() time.Time

	mu    sync.Mutex
	cache map[int]cachedHistory
}

func NewUsageService(backend SensorBackend, telemetry Telemetry, refresh time.Duration) *UsageService {
	if telemetry == nil {
		telemetry = nopTelemetry{}
	}
	if refresh <= 0 {
		refresh = defaultHistoryRefresh
	}
	return &UsageService{
		backend:   backend,
		telemetry: telemetry,
		refresh:   refresh,
		now:       time.Now,
		cache:     make(map[int]cachedHistory),
	}
}

// History returns the series for the last `hours` hours, served from cache
// while it is fresher than the refresh interval.
func (s *UsageService) History(ctx context.Context, hours int) (models.HistoricalSensorData, error) {
	if hours < 1 {
		hours = 1
	}

	s.mu.Lock()
	cached, ok := s.cache[hours]
	s.mu.Unlock()
	if ok && s.now().Sub(cached.fetchedAt) < s.refresh {
		return cached.data, nil
	}

	if s.backend == nil {
		return models.HistoricalSensorData{}, ErrNoBackend
	}
	data, err := s.backend.History(ctx, hours)
	if err != nil {
		if ok {
			return cached.data, nil
		}
		return models.HistoricalSensorData{}, fmt.Errorf("fetch history (%dh): %w", hours, err)
	}

	s.mu.Lock()
	s.cache[hours] = cachedHistory{data: data, fetchedAt: s.now()}
	s.mu.Unlock()
	return data, nil
}

func (s *UsageService) RelayUsage(ctx context.Context, hours int) (models.RelayUsage, error) {
	if s.backend == nil {
		return models.RelayUsage{}, ErrNoBackend
	}
	if hours < 1 {
		hours = relayUsageHours
	}
	u, err := s.backend.RelayUsage(ctx, hours)
	if err != nil {
		return models.RelayUsage{}, fmt.Errorf("fetch relay usage (%dh): %w", hours, err)
	}
	return u, nil
}

// EstimatedCost prices the power history over period. None or a
// non-positive price short-circuits to zero without touching the backend.
// A non-finite price is treated as zero so the estimate always encodes.
func (s *UsageService) EstimatedCost(ctx context.Context, period CostPeriod, pricePerKwh float64) (CostEstimate, error) {
	pricePerKwh = finitePrice(pricePerKwh)
	if period == PeriodNone || !(pricePerKwh > 0) {
		return zeroEstimate(period, pricePerKwh), nil
	}

	hist, err := s.History(ctx, historyHoursFor(period))
	if err != nil {
		return zeroEstimate(period, pricePerKwh), err
	}
	return s.estimate(period, pricePerKwh, hist.PowerHistory), nil
}

func (s *UsageService) estimate(period CostPeriod, pricePerKwh float64, power []models.PowerSample) CostEstimate {
	est := zeroEstimate(period, pricePerKwh)
	if period == PeriodNone || !(pricePerKwh > 0) {
		return est
	}
	cost := EstimateCost(power, period, pricePerKwh)
	est.EstimatedCost = cost
	est.Display = formatCost(cost)
	est.Samples = len(power)
	s.telemetry.CostEstimated(string(period), cost)
	return est
}

func zeroEstimate(period CostPeriod, pricePerKwh float64) CostEstimate {
	return CostEstimate{
		Period:      period,
		Label:       period.Label(),
		Hours:       period.Hours(),
		PricePerKwh: pricePerKwh,
		Display:     formatCost(0),
	}
}

func finitePrice(p float64) float64 {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	return p
}

func formatCost(cost float64) string {
	return decimal.NewFromFloat(cost).StringFixed(2)
}
