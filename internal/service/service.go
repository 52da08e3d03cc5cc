package service

import (
	"context"
	"time"

	"powersense/internal/logger"
	"powersense/internal/models"
	"powersense/internal/repository"
)

type Authorization interface {
	SignUp(email, password, fullName string) (int, error)
	GenerateToken(email, password string) (string, error)
	ParseToken(accessToken string) (int, error)
	ChangePassword(userID int, current, next string) error
}

// Relays is the per-user mirror of switches and the toggle path to the backend.
type Relays interface {
	Refresh(ctx context.Context, ownerID int) ([]models.RelayDevice, error)
	Devices(ctx context.Context, ownerID int) ([]models.RelayDevice, error)
	Get(ctx context.Context, ownerID int, id string) (models.RelayDevice, error)
	Add(ctx context.Context, ownerID int, p RelayParams) (models.RelayDevice, error)
	Update(ctx context.Context, ownerID int, id string, p RelayParams) (models.RelayDevice, error)
	Delete(ctx context.Context, ownerID int, id string) error
	ToggleRelay(device models.RelayDevice) models.RelayDevice
	ToggleFavorite(ctx context.Context, ownerID int, id string) (models.RelayDevice, error)
	LastError(ownerID int) string
	ClearError(ownerID int)
	Subscribe(ownerID int) (<-chan RelaySnapshot, func())
}

// Timers owns one countdown per relay id.
type Timers interface {
	SetTimer(deviceID string, duration int64, unit string) (models.TimerState, error)
	StartTimer(deviceID string)
	StopTimer(deviceID string)
	ResetTimer(deviceID string)
	ClearTimer(deviceID string)
	Snapshot() map[string]models.TimerState
	Subscribe() (<-chan map[string]models.TimerState, func())
}

// Usage serves chart data and cost estimates from the sensor backend.
type Usage interface {
	History(ctx context.Context, hours int) (models.HistoricalSensorData, error)
	RelayUsage(ctx context.Context, hours int) (models.RelayUsage, error)
	EstimatedCost(ctx context.Context, period CostPeriod, pricePerKwh float64) (CostEstimate, error)
}

// Costs keeps a polled cost estimate per user for the live stream.
type Costs interface {
	StartPolling(userID int, period CostPeriod) CostUpdate
	StopPolling(userID int)
	SetPrice(userID int, pricePerKwh float64)
	Subscribe(userID int) (<-chan CostUpdate, func())
	Current(userID int) (CostUpdate, bool)
}

// Monitor exposes the live readings loop. Chart windows are chosen per user.
type Monitor interface {
	Run(ctx context.Context, tick time.Duration)
	SetChartHours(userID, hours int)
	ChartHours(userID int) int
	Snapshot() LiveSnapshot
	Subscribe() (<-chan LiveSnapshot, func())
}

type Profile interface {
	GetProfile(ctx context.Context, userID int) (models.UserProfile, error)
	SaveProfile(ctx context.Context, userID int, p ProfileParams) (models.UserProfile, error)
	UpdateAvatar(ctx context.Context, userID int, url string) (models.UserProfile, error)
	Avatars() []string
	GetSettings(ctx context.Context, userID int) (models.Settings, error)
	SaveSettings(ctx context.Context, s models.Settings) (models.Settings, error)
}

type Weather interface {
	CurrentWeather(ctx context.Context, lat, lon float64) (models.WeatherData, error)
	Coordinates(ctx context.Context, city string) (models.Coordinates, error)
	SearchCities(ctx context.Context, query string) ([]string, error)
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.Event, error)
}

// SensorBackend is the read side of the sensor REST backend.
type SensorBackend interface {
	LatestReadings(ctx context.Context) (models.SensorData, error)
	History(ctx context.Context, hours int) (models.HistoricalSensorData, error)
	RelayUsage(ctx context.Context, hours int) (models.RelayUsage, error)
}

// RelayController is the write side of the sensor backend.
type RelayController interface {
	SetRelayState(ctx context.Context, endpoint string, on bool) error
	SyncRelayConfig(ctx context.Context, endpoint, name, description string) error
}

// WeatherProvider is implemented by the Open-Meteo client.
type WeatherProvider interface {
	CurrentTemperature(ctx context.Context, lat, lon float64) (float64, error)
	LocationName(ctx context.Context, lat, lon float64) (string, error)
	Search(ctx context.Context, name string, count int) ([]models.Place, error)
}

// AlertNotifier delivers alerts outside the process.
type AlertNotifier interface {
	Notify(ctx context.Context, a models.Alert) error
}

// Telemetry receives domain counters. Implemented by internal/metrics.
type Telemetry interface {
	RelayToggled(ok bool)
	TimerFired()
	AlertRaised(level string)
	CostEstimated(period string, cost float64)
}

type nopTelemetry struct{}

func (nopTelemetry) RelayToggled(bool)             {}
func (nopTelemetry) TimerFired()                   {}
func (nopTelemetry) AlertRaised(string)            {}
func (nopTelemetry) CostEstimated(string, float64) {}

// Deps carries the collaborators and tunables NewService needs.
type Deps struct {
	Backend    SensorBackend
	Controller RelayController
	Weather    WeatherProvider
	Notifier   AlertNotifier
	Telemetry  Telemetry
	Log        *logger.Logger

	SigningKey     string
	TokenTTL       time.Duration
	ToggleTimeout  time.Duration
	HistoryRefresh time.Duration
	TimerTick      time.Duration
}

func (d *Deps) withDefaults() {
	if d.Telemetry == nil {
		d.Telemetry = nopTelemetry{}
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Notifier == nil {
		d.Notifier = logNotifier{log: d.Log}
	}
}

// Service aggregates all sub-services.
type Service struct {
	Authorization Authorization
	Relays        Relays
	Timers        Timers
	Usage         Usage
	Costs         Costs
	Monitor       Monitor
	Profile       Profile
	Weather       Weather
	EventLog      EventLog

	timerEngine *TimerEngine
	costPoller  *CostPoller
}

// Close stops every running timer and cost loop.
func (s *Service) Close() {
	if s.timerEngine != nil {
		s.timerEngine.Shutdown()
	}
	if s.costPoller != nil {
		s.costPoller.Shutdown()
	}
}

// NewService wires the repository layer and external clients into concrete services.
func NewService(repos *repository.Repository, deps Deps) *Service {
	deps.withDefaults()

	recorder := newEventRecorder(repos.Events, deps.Log)
	relays := NewRelayService(repos.Relays, deps.Controller, recorder, deps.Telemetry, deps.Log, deps.ToggleTimeout)
	timers := NewTimerEngine(relays, recorder, deps.Telemetry, deps.Log, deps.TimerTick)
	usage := NewUsageService(deps.Backend, deps.Telemetry, deps.HistoryRefresh)
	costs := NewCostPoller(usage, repos.Settings, deps.Log, deps.HistoryRefresh)
	alerts := NewAlertService(repos.Settings, relays, deps.Notifier, recorder, deps.Telemetry, deps.Log)

	return &Service{
		Authorization: NewAuthService(repos.Auth, repos.Profiles, deps.SigningKey, deps.TokenTTL),
		Relays:        relays,
		Timers:        timers,
		Usage:         usage,
		Costs:         costs,
		Monitor:       NewMonitorService(deps.Backend, usage, alerts, deps.Log),
		Profile:       NewProfileService(repos.Auth, repos.Profiles, repos.Settings),
		Weather:       NewWeatherService(deps.Weather),
		EventLog:      NewEventLogService(repos.Events),
		timerEngine:   timers,
		costPoller:    costs,
	}
}
