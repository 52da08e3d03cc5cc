package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"powersense/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSettingsRepo struct {
	mu       sync.Mutex
	byUser   map[int]models.Settings
	alerting []models.Settings
	listErr  error
}

func (f *fakeSettingsRepo) Get(_ context.Context, userID int) (models.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.byUser[userID]; ok {
		return s, nil
	}
	return models.DefaultSettings(userID), nil
}

func (f *fakeSettingsRepo) Save(_ context.Context, s models.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byUser == nil {
		f.byUser = map[int]models.Settings{}
	}
	f.byUser[s.UserID] = s
	return nil
}

func (f *fakeSettingsRepo) ListAlerting(context.Context) ([]models.Settings, error) {
	return f.alerting, f.listErr
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []models.Alert
	err  error
}

func (n *fakeNotifier) Notify(_ context.Context, a models.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, a)
	return n.err
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func floatPtr(v float64) *float64 { return &v }

func TestEvaluate_SensorSpike(t *testing.T) {
	s := models.Settings{UserID: 4, MaxSensorSpikeAlert: true}

	assert.Empty(t, Evaluate(s, nil, models.SensorData{Current: 30}, t0))

	alerts := Evaluate(s, nil, models.SensorData{Current: 30.5}, t0)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertCritical, alerts[0].Level)
	assert.Equal(t, "CRITICAL: Sensor Overload!", alerts[0].Title)
	assert.Equal(t, "Current 30.50A > 30A! at 10:00:00", alerts[0].Message)
	assert.Equal(t, 4, alerts[0].OwnerID)
}

func TestEvaluate_PerAppliance(t *testing.T) {
	s := models.Settings{UserID: 1, PerApplianceAlert: true}
	devices := []models.RelayDevice{
		{ID: "amps", Name: "Heater", IsOn: true, Threshold: floatPtr(5), ThresholdUnit: models.UnitAmps},
		{ID: "watts", Name: "Kettle", IsOn: true, Threshold: floatPtr(1000), ThresholdUnit: models.UnitWatts},
		{ID: "off", Name: "Fan", IsOn: false, Threshold: floatPtr(1)},
		{ID: "none", Name: "Lamp", IsOn: true},
	}

	// 5A * 220V = 1100W limit, 1155W with tolerance; 1000W limit -> 1050W.
	alerts := Evaluate(s, devices, models.SensorData{Voltage: 220, Power: 1100}, t0)
	require.Len(t, alerts, 1)
	assert.Equal(t, "watts", alerts[0].DeviceID)
	assert.Equal(t, "Abnormal: Kettle", alerts[0].Title)
	assert.Equal(t, "Usage > 1000.00W. at 10:00:00", alerts[0].Message)

	alerts = Evaluate(s, devices, models.SensorData{Voltage: 220, Power: 1156}, t0)
	assert.Len(t, alerts, 2)

	s.PerApplianceAlert = false
	assert.Empty(t, Evaluate(s, devices, models.SensorData{Voltage: 220, Power: 5000}, t0))
}

func TestAlertService_CheckDispatchesWithCooldown(t *testing.T) {
	settings := &fakeSettingsRepo{alerting: []models.Settings{{UserID: 1, MaxSensorSpikeAlert: true}}}
	notifier := &fakeNotifier{}
	events := &fakeEventRepo{}
	tel := &recordingTelemetry{}
	a := NewAlertService(settings, nil, notifier, newEventRecorder(events, nil), tel, nil)
	now := t0
	a.now = func() time.Time { return now }

	reading := models.SensorData{Current: 45}
	ctx := context.Background()

	assert.Len(t, a.Check(ctx, reading), 1)
	assert.Empty(t, a.Check(ctx, reading), "repeat inside cooldown is suppressed")

	now = now.Add(2 * time.Minute)
	assert.Len(t, a.Check(ctx, reading), 1)

	assert.Equal(t, 2, notifier.count())
	assert.Equal(t, []string{models.EventAlert, models.EventAlert}, events.types())
	assert.Equal(t, []string{models.AlertCritical, models.AlertCritical}, tel.alerts)
}

func TestAlertService_UsesRelayMirror(t *testing.T) {
	d := heater()
	d.IsOn = true
	d.Threshold = floatPtr(2)
	repo := newMemRelayRepo(d)
	relays := newTestRelayService(repo, &fakeController{}, nil)

	settings := &fakeSettingsRepo{alerting: []models.Settings{{UserID: 1, PerApplianceAlert: true}}}
	notifier := &fakeNotifier{err: errors.New("broker down")}
	a := NewAlertService(settings, relays, notifier, nil, nil, nil)

	sent := a.Check(context.Background(), models.SensorData{Voltage: 230, Power: 600})
	require.Len(t, sent, 1, "notifier failure does not drop the alert")
	assert.Equal(t, "r-1", sent[0].DeviceID)
}

func TestAlertService_SettingsError(t *testing.T) {
	settings := &fakeSettingsRepo{listErr: errors.New("db locked")}
	a := NewAlertService(settings, nil, &fakeNotifier{}, nil, nil, nil)
	assert.Nil(t, a.Check(context.Background(), models.SensorData{Current: 99}))
}
