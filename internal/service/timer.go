package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"powersense/internal/logger"
	"powersense/internal/models"
)

// Duration units accepted by SetTimer.
const (
	UnitSeconds = "Seconds"
	UnitMinutes = "Minutes"
	UnitHours   = "Hours"
	UnitDays    = "Days"
)

const timerStepMillis int64 = 1000

// MaxTimerMillis caps a countdown at one year.
const MaxTimerMillis int64 = 365 * 24 * 60 * 60 * 1000

var ErrInvalidTimerDuration = errors.New("timer duration must be positive and at most 365 days")

// Toggler flips a relay by id. It reports false if the relay is unknown.
type Toggler interface {
	ToggleDevice(deviceID string) bool
	OwnerOf(deviceID string) (int, bool)
}

func unitMillis(unit string) int64 {
	switch strings.TrimSpace(unit) {
	case UnitSeconds:
		return 1000
	case UnitMinutes:
		return 60 * 1000
	case UnitHours:
		return 60 * 60 * 1000
	case UnitDays:
		return 24 * 60 * 60 * 1000
	default:
		return 0
	}
}

// durationMillis converts a (duration, unit) pair; unknown units give 0.
// Durations past MaxTimerMillis are rejected before multiplying.
func durationMillis(duration int64, unit string) (int64, error) {
	per := unitMillis(unit)
	if per == 0 {
		return 0, nil
	}
	if duration < 1 || duration > MaxTimerMillis/per {
		return 0, fmt.Errorf("%w: %d %s", ErrInvalidTimerDuration, duration, unit)
	}
	return duration * per, nil
}

// ValidTimerUnit reports whether unit is one SetTimer understands.
func ValidTimerUnit(unit string) bool {
	switch unit {
	case UnitSeconds, UnitMinutes, UnitHours, UnitDays:
		return true
	}
	return false
}

// TimerEngine runs at most one countdown loop per relay id. When a countdown
// reaches zero the relay is toggled and the timer resets to its full length.
type TimerEngine struct {
	toggler   Toggler
	events    *eventRecorder
	telemetry Telemetry
	log       *logger.Logger
	tick      time.Duration

	mu      sync.Mutex
	states  map[string]models.TimerState // replaced wholesale on every change
	cancels map[string]context.CancelFunc
	feed    *Feed[map[string]models.TimerState]
	loops   sync.WaitGroup
}

func NewTimerEngine(toggler Toggler, events *eventRecorder, telemetry Telemetry, log *logger.Logger, tick time.Duration) *TimerEngine {
	if telemetry == nil {
		telemetry = nopTelemetry{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if tick <= 0 {
		tick = time.Second
	}
	e := &TimerEngine{
		toggler:   toggler,
		events:    events,
		telemetry: telemetry,
		log:       log,
		tick:      tick,
		states:    map[string]models.TimerState{},
		cancels:   map[string]context.CancelFunc{},
		feed:      NewFeed[map[string]models.TimerState](),
	}
	e.feed.Publish(e.states)
	return e
}

// SetTimer (re)configures the countdown for deviceID. Any running loop is
// cancelled and the timer is left stopped at its full length. An out of
// range duration leaves any existing timer untouched.
func (e *TimerEngine) SetTimer(deviceID string, duration int64, unit string) (models.TimerState, error) {
	total, err := durationMillis(duration, unit)
	if err != nil {
		return models.TimerState{}, err
	}
	st := models.TimerState{TotalMillis: total, RemainingMillis: total}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelLocked(deviceID)
	e.putLocked(deviceID, st)
	return st, nil
}

// StartTimer is a no-op when no timer is set or it is already running.
func (e *TimerEngine) StartTimer(deviceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.states[deviceID]
	if !ok || st.IsRunning {
		return
	}
	st.IsRunning = true
	e.putLocked(deviceID, st)

	e.cancelLocked(deviceID)
	ctx, cancel := context.WithCancel(context.Background())
	e.cancels[deviceID] = cancel
	e.loops.Add(1)
	go e.run(ctx, deviceID)
}

// StopTimer pauses the countdown, keeping the remaining time.
func (e *TimerEngine) StopTimer(deviceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelLocked(deviceID)
	st, ok := e.states[deviceID]
	if !ok {
		return
	}
	st.IsRunning = false
	e.putLocked(deviceID, st)
}

// ResetTimer stops the countdown and restores the full length.
func (e *TimerEngine) ResetTimer(deviceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelLocked(deviceID)
	st, ok := e.states[deviceID]
	if !ok {
		return
	}
	e.putLocked(deviceID, models.TimerState{TotalMillis: st.TotalMillis, RemainingMillis: st.TotalMillis})
}

// ClearTimer stops the countdown and forgets the timer.
func (e *TimerEngine) ClearTimer(deviceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelLocked(deviceID)
	if _, ok := e.states[deviceID]; !ok {
		return
	}
	next := make(map[string]models.TimerState, len(e.states))
	for id, st := range e.states {
		if id != deviceID {
			next[id] = st
		}
	}
	e.states = next
	e.feed.Publish(next)
}

// Snapshot returns the current immutable map of timers.
func (e *TimerEngine) Snapshot() map[string]models.TimerState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.states
}

func (e *TimerEngine) Subscribe() (<-chan map[string]models.TimerState, func()) {
	return e.feed.Subscribe()
}

// Shutdown cancels every loop and waits for them to return.
func (e *TimerEngine) Shutdown() {
	e.mu.Lock()
	for id := range e.cancels {
		e.cancelLocked(id)
	}
	e.mu.Unlock()
	e.loops.Wait()
}

func (e *TimerEngine) run(ctx context.Context, deviceID string) {
	defer e.loops.Done()

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if fired := e.step(ctx, deviceID); fired {
				e.fire(deviceID)
				return
			}
			if ctx.Err() != nil {
				return
			}
		}
	}
}

// step advances one tick. It returns true when the countdown expired; the
// timer has then already been reset and the loop must toggle and exit.
func (e *TimerEngine) step(ctx context.Context, deviceID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Stop/Reset/Set cancel under the same lock, so a stale tick is dropped here.
	if ctx.Err() != nil {
		return false
	}
	st, ok := e.states[deviceID]
	if !ok || !st.IsRunning {
		e.cancelLocked(deviceID)
		return false
	}

	remaining := st.RemainingMillis - timerStepMillis
	if remaining <= 0 {
		e.cancelLocked(deviceID)
		e.putLocked(deviceID, models.TimerState{TotalMillis: st.TotalMillis, RemainingMillis: st.TotalMillis})
		return true
	}
	st.RemainingMillis = remaining
	e.putLocked(deviceID, st)
	return false
}

func (e *TimerEngine) fire(deviceID string) {
	e.telemetry.TimerFired()
	toggled := e.toggler != nil && e.toggler.ToggleDevice(deviceID)
	e.log.Infow("timer_fired", "device_id", deviceID, "toggled", toggled)
	if e.toggler == nil {
		return
	}
	if owner, ok := e.toggler.OwnerOf(deviceID); ok {
		e.events.record(context.Background(), owner, models.EventTimerFired, "timer expired",
			map[string]any{"device_id": deviceID, "toggled": toggled})
	}
}

func (e *TimerEngine) cancelLocked(deviceID string) {
	if cancel, ok := e.cancels[deviceID]; ok {
		cancel()
		delete(e.cancels, deviceID)
	}
}

func (e *TimerEngine) putLocked(deviceID string, st models.TimerState) {
	next := make(map[string]models.TimerState, len(e.states)+1)
	for id, v := range e.states {
		next[id] = v
	}
	next[deviceID] = st
	e.states = next
	e.feed.Publish(next)
}
