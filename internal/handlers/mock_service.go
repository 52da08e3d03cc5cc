package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"powersense/internal/models"
	"powersense/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error
	changeErr     error

	lastSignUpEmail    string
	lastSignUpPassword string
	lastSignUpName     string
	lastGenEmail       string
	lastGenPassword    string
	lastParseToken     string
	lastChangeUser     int
	lastChangeNext     string
}

func (m *mockAuth) SignUp(email, password, fullName string) (int, error) {
	m.lastSignUpEmail = email
	m.lastSignUpPassword = password
	m.lastSignUpName = fullName
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(email, password string) (string, error) {
	m.lastGenEmail = email
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}
func (m *mockAuth) ChangePassword(userID int, current, next string) error {
	m.lastChangeUser = userID
	m.lastChangeNext = next
	return m.changeErr
}

type mockRelays struct {
	devices   []models.RelayDevice
	listErr   error
	getErr    error
	addErr    error
	lastErr   string
	feed      *service.Feed[service.RelaySnapshot]
	toggled   []string
	cleared   int
	lastAdd   service.RelayParams
	lastOwner int
	deleted   []string
}

func (m *mockRelays) Refresh(ctx context.Context, ownerID int) ([]models.RelayDevice, error) {
	m.lastOwner = ownerID
	return m.devices, m.listErr
}
func (m *mockRelays) Devices(ctx context.Context, ownerID int) ([]models.RelayDevice, error) {
	m.lastOwner = ownerID
	return m.devices, m.listErr
}
func (m *mockRelays) Get(ctx context.Context, ownerID int, id string) (models.RelayDevice, error) {
	m.lastOwner = ownerID
	if m.getErr != nil {
		return models.RelayDevice{}, m.getErr
	}
	for _, d := range m.devices {
		if d.ID == id {
			return d, nil
		}
	}
	return models.RelayDevice{}, service.ErrRelayNotFound
}
func (m *mockRelays) Add(ctx context.Context, ownerID int, p service.RelayParams) (models.RelayDevice, error) {
	m.lastOwner = ownerID
	m.lastAdd = p
	if m.addErr != nil {
		return models.RelayDevice{}, m.addErr
	}
	return models.RelayDevice{ID: "new", OwnerID: ownerID, Name: p.Name, ControlEndpoint: p.ControlEndpoint}, nil
}
func (m *mockRelays) Update(ctx context.Context, ownerID int, id string, p service.RelayParams) (models.RelayDevice, error) {
	d, err := m.Get(ctx, ownerID, id)
	if err != nil {
		return d, err
	}
	d.Name = p.Name
	d.Description = p.Description
	return d, nil
}
func (m *mockRelays) Delete(ctx context.Context, ownerID int, id string) error {
	if _, err := m.Get(ctx, ownerID, id); err != nil {
		return err
	}
	m.deleted = append(m.deleted, id)
	return nil
}
func (m *mockRelays) ToggleRelay(d models.RelayDevice) models.RelayDevice {
	m.toggled = append(m.toggled, d.ID)
	d.IsOn = !d.IsOn
	return d
}
func (m *mockRelays) ToggleFavorite(ctx context.Context, ownerID int, id string) (models.RelayDevice, error) {
	d, err := m.Get(ctx, ownerID, id)
	d.IsFavorite = !d.IsFavorite
	return d, err
}
func (m *mockRelays) LastError(ownerID int) string { return m.lastErr }
func (m *mockRelays) ClearError(ownerID int)       { m.cleared++ }
func (m *mockRelays) Subscribe(ownerID int) (<-chan service.RelaySnapshot, func()) {
	if m.feed == nil {
		m.feed = service.NewFeed[service.RelaySnapshot]()
	}
	return m.feed.Subscribe()
}

type mockTimers struct {
	mu     sync.Mutex
	states map[string]models.TimerState
	calls  []string
	setErr error
	feed   *service.Feed[map[string]models.TimerState]
}

func newMockTimers() *mockTimers {
	return &mockTimers{
		states: map[string]models.TimerState{},
		feed:   service.NewFeed[map[string]models.TimerState](),
	}
}

func (m *mockTimers) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockTimers) SetTimer(id string, duration int64, unit string) (models.TimerState, error) {
	m.record("set:" + id)
	if m.setErr != nil {
		return models.TimerState{}, m.setErr
	}
	st := models.TimerState{TotalMillis: duration * 1000, RemainingMillis: duration * 1000}
	m.mu.Lock()
	m.states[id] = st
	m.mu.Unlock()
	return st, nil
}
func (m *mockTimers) StartTimer(id string) {
	m.record("start:" + id)
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.states[id]; ok {
		st.IsRunning = true
		m.states[id] = st
	}
}
func (m *mockTimers) StopTimer(id string)  { m.record("stop:" + id) }
func (m *mockTimers) ResetTimer(id string) { m.record("reset:" + id) }
func (m *mockTimers) ClearTimer(id string) {
	m.record("clear:" + id)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, id)
}
func (m *mockTimers) Snapshot() map[string]models.TimerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]models.TimerState, len(m.states))
	for k, v := range m.states {
		out[k] = v
	}
	return out
}
func (m *mockTimers) Subscribe() (<-chan map[string]models.TimerState, func()) {
	return m.feed.Subscribe()
}

type mockUsage struct {
	history    models.HistoricalSensorData
	usage      models.RelayUsage
	estimate   service.CostEstimate
	err        error
	lastHours  int
	lastPeriod service.CostPeriod
	lastPrice  float64
}

func (m *mockUsage) History(ctx context.Context, hours int) (models.HistoricalSensorData, error) {
	m.lastHours = hours
	return m.history, m.err
}
func (m *mockUsage) RelayUsage(ctx context.Context, hours int) (models.RelayUsage, error) {
	m.lastHours = hours
	return m.usage, m.err
}
func (m *mockUsage) EstimatedCost(ctx context.Context, p service.CostPeriod, price float64) (service.CostEstimate, error) {
	m.lastPeriod = p
	m.lastPrice = price
	return m.estimate, m.err
}

type mockMonitor struct {
	snap       service.LiveSnapshot
	chartHours map[int]int
	feed       *service.Feed[service.LiveSnapshot]
}

func (m *mockMonitor) Run(ctx context.Context, tick time.Duration) {}
func (m *mockMonitor) SetChartHours(userID, hours int) {
	if m.chartHours == nil {
		m.chartHours = map[int]int{}
	}
	m.chartHours[userID] = hours
}
func (m *mockMonitor) ChartHours(userID int) int {
	if h, ok := m.chartHours[userID]; ok {
		return h
	}
	return 24
}
func (m *mockMonitor) Snapshot() service.LiveSnapshot { return m.snap }
func (m *mockMonitor) Subscribe() (<-chan service.LiveSnapshot, func()) {
	if m.feed == nil {
		m.feed = service.NewFeed[service.LiveSnapshot]()
	}
	return m.feed.Subscribe()
}

type mockCosts struct {
	mu       sync.Mutex
	periods  []service.CostPeriod
	prices   map[int]float64
	feed     *service.Feed[service.CostUpdate]
	watchers int
}

func newMockCosts() *mockCosts {
	return &mockCosts{prices: map[int]float64{}, feed: service.NewFeed[service.CostUpdate]()}
}

func (m *mockCosts) StartPolling(userID int, period service.CostPeriod) service.CostUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.periods = append(m.periods, period)
	up := service.CostUpdate{CostEstimate: service.CostEstimate{Period: period, Display: "0.00"}}
	m.feed.Publish(up)
	return up
}
func (m *mockCosts) StopPolling(userID int) { m.StartPolling(userID, service.PeriodNone) }
func (m *mockCosts) SetPrice(userID int, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[userID] = price
}
func (m *mockCosts) Subscribe(userID int) (<-chan service.CostUpdate, func()) {
	m.mu.Lock()
	m.watchers++
	m.mu.Unlock()
	return m.feed.Subscribe()
}
func (m *mockCosts) Current(userID int) (service.CostUpdate, bool) { return m.feed.Last() }

func (m *mockCosts) startedPeriods() []service.CostPeriod {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]service.CostPeriod(nil), m.periods...)
}

type mockProfile struct {
	profile      models.UserProfile
	settings     models.Settings
	err          error
	lastParams   service.ProfileParams
	lastAvatar   string
	lastSettings models.Settings
}

func (m *mockProfile) GetProfile(ctx context.Context, uid int) (models.UserProfile, error) {
	return m.profile, m.err
}
func (m *mockProfile) SaveProfile(ctx context.Context, uid int, p service.ProfileParams) (models.UserProfile, error) {
	m.lastParams = p
	out := m.profile
	out.UID = uid
	out.FullName = p.FullName
	return out, m.err
}
func (m *mockProfile) UpdateAvatar(ctx context.Context, uid int, url string) (models.UserProfile, error) {
	m.lastAvatar = url
	out := m.profile
	out.ProfileImageURL = url
	return out, m.err
}
func (m *mockProfile) Avatars() []string { return []string{"a.png", "b.png"} }
func (m *mockProfile) GetSettings(ctx context.Context, uid int) (models.Settings, error) {
	return m.settings, m.err
}
func (m *mockProfile) SaveSettings(ctx context.Context, s models.Settings) (models.Settings, error) {
	m.lastSettings = s
	return s, m.err
}

type mockWeather struct {
	data    models.WeatherData
	coords  models.Coordinates
	results []string
	err     error
}

func (m *mockWeather) CurrentWeather(ctx context.Context, lat, lon float64) (models.WeatherData, error) {
	return m.data, m.err
}
func (m *mockWeather) Coordinates(ctx context.Context, city string) (models.Coordinates, error) {
	return m.coords, m.err
}
func (m *mockWeather) SearchCities(ctx context.Context, q string) ([]string, error) {
	return m.results, m.err
}

type mockEventLog struct {
	resp      []models.Event
	err       error
	lastOwner int
	lastFrom  time.Time
	lastTo    time.Time
	lastType  string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.Event, error) {
	m.lastOwner = f.OwnerID
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
