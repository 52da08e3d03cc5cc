package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"powersense/internal/logger"
	"powersense/internal/models"
	"powersense/internal/repository"
)

const (
	// Current above this is a sensor overload regardless of appliance.
	maxSensorCurrentAmps = 30.0

	// Per-appliance alerts trigger once power exceeds the limit by 5%.
	applianceTolerance = 1.05

	defaultAlertCooldown = time.Minute
)

// AlertService checks each reading against the thresholds of every user
// who enabled alerts, and dispatches what it finds.
type AlertService struct {
	settings  repository.SettingsRepo
	relays    Relays
	notifier  AlertNotifier
	events    *eventRecorder
	telemetry Telemetry
	log       *logger.Logger
	cooldown  time.Duration
	now       func() time.Time

	mu   sync.Mutex
	last map[string]time.Time // owner/device -> last dispatch
}

func NewAlertService(
	settings repository.SettingsRepo,
	relays Relays,
	notifier AlertNotifier,
	events *eventRecorder,
	telemetry Telemetry,
	log *logger.Logger,
) *AlertService {
	if telemetry == nil {
		telemetry = nopTelemetry{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if notifier == nil {
		notifier = logNotifier{log: log}
	}
	return &AlertService{
		settings:  settings,
		relays:    relays,
		notifier:  notifier,
		events:    events,
		telemetry: telemetry,
		log:       log,
		cooldown:  defaultAlertCooldown,
		now:       time.Now,
		last:      make(map[string]time.Time),
	}
}

// Evaluate returns the alerts a reading raises for one user, without dispatching.
func Evaluate(s models.Settings, devices []models.RelayDevice, r models.SensorData, at time.Time) []models.Alert {
	var out []models.Alert
	clock := at.Format("15:04:05")

	if s.MaxSensorSpikeAlert && r.Current > maxSensorCurrentAmps {
		out = append(out, models.Alert{
			OwnerID:    s.UserID,
			Level:      models.AlertCritical,
			Title:      "CRITICAL: Sensor Overload!",
			Message:    fmt.Sprintf("Current %.2fA > %.0fA! at %s", r.Current, maxSensorCurrentAmps, clock),
			OccurredAt: at,
		})
	}

	if !s.PerApplianceAlert {
		return out
	}
	for _, d := range devices {
		if !d.IsOn || d.Threshold == nil {
			continue
		}
		limitW := *d.Threshold
		if d.ThresholdUnit != models.UnitWatts {
			limitW = *d.Threshold * r.Voltage
		}
		if r.Power > limitW*applianceTolerance {
			unit := d.ThresholdUnit
			if unit == "" {
				unit = models.UnitAmps
			}
			out = append(out, models.Alert{
				OwnerID:    s.UserID,
				DeviceID:   d.ID,
				Level:      models.AlertWarning,
				Title:      "Abnormal: " + d.Name,
				Message:    fmt.Sprintf("Usage > %.2f%s. at %s", *d.Threshold, unit, clock),
				OccurredAt: at,
			})
		}
	}
	return out
}

// Check evaluates a reading for every alerting user and dispatches the
// results. Repeats of the same alert are suppressed for the cooldown.
func (a *AlertService) Check(ctx context.Context, r models.SensorData) []models.Alert {
	if a.settings == nil {
		return nil
	}
	users, err := a.settings.ListAlerting(ctx)
	if err != nil {
		a.log.Warnw("alert_settings_load_failed", "error", err)
		return nil
	}

	now := a.now()
	var sent []models.Alert
	for _, s := range users {
		var devices []models.RelayDevice
		if s.PerApplianceAlert && a.relays != nil {
			devices, err = a.relays.Devices(ctx, s.UserID)
			if err != nil {
				a.log.Warnw("alert_relays_load_failed", "user_id", s.UserID, "error", err)
			}
		}
		for _, alert := range Evaluate(s, devices, r, now) {
			if !a.admit(alert, now) {
				continue
			}
			a.dispatch(ctx, alert)
			sent = append(sent, alert)
		}
	}
	return sent
}

func (a *AlertService) admit(alert models.Alert, now time.Time) bool {
	key := fmt.Sprintf("%d/%s", alert.OwnerID, alert.DeviceID)
	a.mu.Lock()
	defer a.mu.Unlock()
	if last, ok := a.last[key]; ok && now.Sub(last) < a.cooldown {
		return false
	}
	a.last[key] = now
	return true
}

func (a *AlertService) dispatch(ctx context.Context, alert models.Alert) {
	a.telemetry.AlertRaised(alert.Level)
	if err := a.notifier.Notify(ctx, alert); err != nil {
		a.log.Errorw("alert_notify_failed", "user_id", alert.OwnerID, "device_id", alert.DeviceID, "error", err)
	}
	a.events.record(ctx, alert.OwnerID, models.EventAlert, alert.Title+": "+alert.Message,
		map[string]any{"device_id": alert.DeviceID, "level": alert.Level})
}

// logNotifier is used when no broker is configured.
type logNotifier struct {
	log *logger.Logger
}

func (n logNotifier) Notify(_ context.Context, a models.Alert) error {
	n.log.Warnw("alert", "user_id", a.OwnerID, "device_id", a.DeviceID, "level", a.Level, "title", a.Title, "message", a.Message)
	return nil
}
