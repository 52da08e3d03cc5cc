package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"powersense/internal/logger"
	"powersense/internal/models"
)

// Connection states reported by the monitor.
const (
	StatusConnecting = "Connecting..."
	StatusConnected  = "Connected"
	StatusOffline    = "Offline"
)

// chartEvery is how many polls pass between chart and usage refreshes.
const chartEvery = 3

const defaultChartHours = 24

// LiveSnapshot is the monitor state streamed to clients. Charts holds every
// window some user watches; ForWindow picks one into Chart.
type LiveSnapshot struct {
	Status         string                       `json:"status"`
	ConnectedSince *time.Time                   `json:"connected_since,omitempty"`
	Latest         *models.SensorData           `json:"latest,omitempty"`
	Chart          *models.HistoricalSensorData `json:"chart,omitempty"`
	RelayUsage     *models.RelayUsage           `json:"relay_usage,omitempty"`
	ChartHours     int                          `json:"chart_hours"`
	UpdatedAt      time.Time                    `json:"updated_at"`

	Charts map[int]*models.HistoricalSensorData `json:"-"`
}

// ForWindow returns the snapshot as seen by a user watching the last hours.
func (s LiveSnapshot) ForWindow(hours int) LiveSnapshot {
	s.ChartHours = hours
	s.Chart = s.Charts[hours]
	s.Charts = nil
	return s
}

// MonitorService polls the latest readings, tracks connectivity and feeds
// the alert checks.
type MonitorService struct {
	backend SensorBackend
	usage   Usage
	alerts  *AlertService
	log     *logger.Logger
	now     func() time.Time

	mu         sync.Mutex
	state      LiveSnapshot
	chartHours map[int]int // per user; unset means defaultChartHours
	polls      int
	feed       *Feed[LiveSnapshot]
}

func NewMonitorService(backend SensorBackend, usage Usage, alerts *AlertService, log *logger.Logger) *MonitorService {
	if log == nil {
		log = logger.Nop()
	}
	m := &MonitorService{
		backend: backend,
		usage:   usage,
		alerts:  alerts,
		log:     log,
		now:     time.Now,
		state:   LiveSnapshot{Status: StatusConnecting, ChartHours: defaultChartHours},
		feed:    NewFeed[LiveSnapshot](),

		chartHours: make(map[int]int),
	}
	m.feed.Publish(m.state)
	return m
}

// Run polls every tick until ctx is cancelled.
func (m *MonitorService) Run(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	m.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *MonitorService) poll(ctx context.Context) {
	if m.backend == nil {
		return
	}

	reading, err := m.backend.LatestReadings(ctx)

	m.mu.Lock()
	m.state.UpdatedAt = m.now().UTC()
	if err != nil {
		if m.state.Status != StatusOffline {
			m.log.Warnw("sensor_backend_offline", "error", err)
		}
		m.state.Status = StatusOffline
		m.state.ConnectedSince = nil
	} else {
		if m.state.ConnectedSince == nil {
			since := m.now().UTC()
			m.state.ConnectedSince = &since
		}
		m.state.Status = StatusConnected
		latest := reading
		m.state.Latest = &latest
	}
	refreshCharts := m.polls%chartEvery == 0
	m.polls++
	windows := m.windowsLocked()
	m.publishLocked()
	m.mu.Unlock()

	if err == nil && m.alerts != nil {
		m.alerts.Check(ctx, reading)
	}
	if refreshCharts {
		m.refreshCharts(ctx, windows)
	}
}

// windowsLocked lists the distinct chart windows in use, ascending.
func (m *MonitorService) windowsLocked() []int {
	seen := map[int]bool{defaultChartHours: true}
	out := []int{defaultChartHours}
	for _, h := range m.chartHours {
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	sort.Ints(out)
	return out
}

func (m *MonitorService) refreshCharts(ctx context.Context, windows []int) {
	if m.usage == nil {
		return
	}
	fetched := make(map[int]*models.HistoricalSensorData, len(windows))
	for _, hours := range windows {
		chart, err := m.usage.History(ctx, hours)
		if err != nil {
			m.log.Warnw("chart_refresh_failed", "hours", hours, "error", err)
			continue
		}
		fetched[hours] = &chart
	}
	usage, usageErr := m.usage.RelayUsage(ctx, relayUsageHours)

	m.mu.Lock()
	defer m.mu.Unlock()
	// Published snapshots share the old map, so build a new one.
	charts := make(map[int]*models.HistoricalSensorData, len(windows))
	for _, hours := range m.windowsLocked() {
		if c, ok := fetched[hours]; ok {
			charts[hours] = c
		} else if c, ok := m.state.Charts[hours]; ok {
			charts[hours] = c
		}
	}
	m.state.Charts = charts
	m.state.Chart = charts[defaultChartHours]
	if usageErr != nil {
		m.log.Warnw("relay_usage_refresh_failed", "error", usageErr)
	} else {
		m.state.RelayUsage = &usage
	}
	m.publishLocked()
}

// SetChartHours changes the chart look-back for one user. A window no one
// watched before is fetched on the next poll.
func (m *MonitorService) SetChartHours(userID, hours int) {
	if hours < 1 {
		hours = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chartHours[userID] = hours
	if _, ok := m.state.Charts[hours]; !ok {
		m.polls = 0
	}
}

// ChartHours is the window userID last selected.
func (m *MonitorService) ChartHours(userID int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.chartHours[userID]; ok {
		return h
	}
	return defaultChartHours
}

func (m *MonitorService) Snapshot() LiveSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *MonitorService) Subscribe() (<-chan LiveSnapshot, func()) {
	return m.feed.Subscribe()
}

func (m *MonitorService) publishLocked() {
	m.feed.Publish(m.state)
}
