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
	"powersense/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrRelayNotFound    = errors.New("relay not found")
	ErrInvalidRelayName = errors.New("relay name is required")
	ErrInvalidThreshold = errors.New("threshold must be positive with unit A or W")
)

// ErrBackendUnreachable is the message shown when a toggle could not be confirmed.
const ErrBackendUnreachable = "Backend server is unreachable or turned off."

const defaultToggleTimeout = 5 * time.Second

// RelaySnapshot is what relay subscribers receive.
type RelaySnapshot struct {
	Devices []models.RelayDevice `json:"devices"`
	Error   string               `json:"error,omitempty"`
}

// RelayService keeps an in-memory mirror of each user's switches, applies
// toggles optimistically and confirms them with the sensor backend.
type RelayService struct {
	repo       repository.RelayRepo
	controller RelayController
	events     *eventRecorder
	telemetry  Telemetry
	log        *logger.Logger
	timeout    time.Duration

	mu      sync.Mutex
	mirrors map[int][]models.RelayDevice // replaced wholesale on every change
	loaded  map[int]bool
	errs    map[int]string
	feeds   map[int]*Feed[RelaySnapshot]

	inflight sync.WaitGroup
}

func NewRelayService(
	repo repository.RelayRepo,
	controller RelayController,
	events *eventRecorder,
	telemetry Telemetry,
	log *logger.Logger,
	toggleTimeout time.Duration,
) *RelayService {
	if telemetry == nil {
		telemetry = nopTelemetry{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if toggleTimeout <= 0 {
		toggleTimeout = defaultToggleTimeout
	}
	return &RelayService{
		repo:       repo,
		controller: controller,
		events:     events,
		telemetry:  telemetry,
		log:        log,
		timeout:    toggleTimeout,
		mirrors:    make(map[int][]models.RelayDevice),
		loaded:     make(map[int]bool),
		errs:       make(map[int]string),
		feeds:      make(map[int]*Feed[RelaySnapshot]),
	}
}

// Refresh reloads the owner's switches from the store. The locally held
// on/off state wins for ids already in the mirror.
func (s *RelayService) Refresh(ctx context.Context, ownerID int) ([]models.RelayDevice, error) {
	stored, err := s.repo.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list relays: %w", err)
	}

	s.mu.Lock()
	local := make(map[string]bool, len(s.mirrors[ownerID]))
	for _, d := range s.mirrors[ownerID] {
		local[d.ID] = d.IsOn
	}
	merged := make([]models.RelayDevice, len(stored))
	for i, d := range stored {
		if on, ok := local[d.ID]; ok {
			d.IsOn = on
		}
		merged[i] = d
	}
	s.mirrors[ownerID] = merged
	s.loaded[ownerID] = true
	s.publishLocked(ownerID)
	s.mu.Unlock()

	return cloneDevices(merged), nil
}

// Devices returns the mirror, loading it from the store on first use.
func (s *RelayService) Devices(ctx context.Context, ownerID int) ([]models.RelayDevice, error) {
	s.mu.Lock()
	if s.loaded[ownerID] {
		out := cloneDevices(s.mirrors[ownerID])
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()
	return s.Refresh(ctx, ownerID)
}

func (s *RelayService) Get(ctx context.Context, ownerID int, id string) (models.RelayDevice, error) {
	devices, err := s.Devices(ctx, ownerID)
	if err != nil {
		return models.RelayDevice{}, err
	}
	for _, d := range devices {
		if d.ID == id {
			return d, nil
		}
	}
	return models.RelayDevice{}, ErrRelayNotFound
}

func validateRelayParams(p RelayParams) (RelayParams, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	p.ControlEndpoint = strings.TrimSpace(p.ControlEndpoint)
	p.ThresholdUnit = strings.ToUpper(strings.TrimSpace(p.ThresholdUnit))
	if p.Name == "" {
		return p, ErrInvalidRelayName
	}
	if p.ThresholdUnit == "" {
		p.ThresholdUnit = models.UnitAmps
	}
	if p.ThresholdUnit != models.UnitAmps && p.ThresholdUnit != models.UnitWatts {
		return p, ErrInvalidThreshold
	}
	if p.Threshold != nil && *p.Threshold <= 0 {
		return p, ErrInvalidThreshold
	}
	return p, nil
}

// Add creates a switch in the store and the mirror.
func (s *RelayService) Add(ctx context.Context, ownerID int, p RelayParams) (models.RelayDevice, error) {
	p, err := validateRelayParams(p)
	if err != nil {
		return models.RelayDevice{}, err
	}
	if _, err := s.Devices(ctx, ownerID); err != nil {
		return models.RelayDevice{}, err
	}

	d := models.RelayDevice{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		Name:            p.Name,
		Description:     p.Description,
		ControlEndpoint: p.ControlEndpoint,
		Threshold:       p.Threshold,
		ThresholdUnit:   p.ThresholdUnit,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return models.RelayDevice{}, fmt.Errorf("create relay: %w", err)
	}

	s.mu.Lock()
	next := append(cloneDevices(s.mirrors[ownerID]), d)
	s.mirrors[ownerID] = next
	s.publishLocked(ownerID)
	s.mu.Unlock()

	s.events.record(ctx, ownerID, models.EventRelayCreated, fmt.Sprintf("relay %q added", d.Name),
		map[string]any{"device_id": d.ID})
	return d, nil
}

// Update applies the edit to the mirror first and reverts it if the store
// rejects it. The backend is told about the new name afterwards, best effort.
func (s *RelayService) Update(ctx context.Context, ownerID int, id string, p RelayParams) (models.RelayDevice, error) {
	p, err := validateRelayParams(p)
	if err != nil {
		return models.RelayDevice{}, err
	}
	prev, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return models.RelayDevice{}, err
	}

	updated := prev
	updated.Name = p.Name
	updated.Description = p.Description
	updated.ControlEndpoint = p.ControlEndpoint
	updated.Threshold = p.Threshold
	updated.ThresholdUnit = p.ThresholdUnit

	s.replaceDevice(ownerID, updated)

	if err := s.repo.Update(ctx, updated); err != nil {
		s.replaceDevice(ownerID, prev)
		s.setError(ownerID, fmt.Sprintf("Failed to update device: %v", err))
		if errors.Is(err, repository.ErrNotFound) {
			return models.RelayDevice{}, ErrRelayNotFound
		}
		return models.RelayDevice{}, fmt.Errorf("update relay: %w", err)
	}

	if s.controller != nil && updated.ControlEndpoint != "" {
		if err := s.controller.SyncRelayConfig(ctx, updated.ControlEndpoint, updated.Name, updated.Description); err != nil {
			s.log.Warnw("relay_config_sync_failed", "device_id", id, "endpoint", updated.ControlEndpoint, "error", err)
		}
	}

	s.events.record(ctx, ownerID, models.EventRelayUpdated, fmt.Sprintf("relay %q updated", updated.Name),
		map[string]any{"device_id": id})
	return updated, nil
}

func (s *RelayService) Delete(ctx context.Context, ownerID int, id string) error {
	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRelayNotFound
		}
		return fmt.Errorf("delete relay: %w", err)
	}

	s.mu.Lock()
	cur := s.mirrors[ownerID]
	next := make([]models.RelayDevice, 0, len(cur))
	for _, d := range cur {
		if d.ID != id {
			next = append(next, d)
		}
	}
	s.mirrors[ownerID] = next
	s.publishLocked(ownerID)
	s.mu.Unlock()

	s.events.record(ctx, ownerID, models.EventRelayDeleted, "relay deleted", map[string]any{"device_id": id})
	return nil
}

func (s *RelayService) ToggleFavorite(ctx context.Context, ownerID int, id string) (models.RelayDevice, error) {
	d, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return models.RelayDevice{}, err
	}
	d.IsFavorite = !d.IsFavorite
	if err := s.repo.SetFavorite(ctx, id, d.IsFavorite); err != nil {
		return models.RelayDevice{}, fmt.Errorf("set favorite: %w", err)
	}
	s.replaceDevice(ownerID, d)
	return d, nil
}

// ToggleRelay flips the switch locally, publishes the optimistic state and
// confirms it with the backend in the background. The mirror copy is the
// source of truth; the caller's snapshot is only used when the id is unknown.
// On any failure the local flag is reverted and a user-visible error is set.
func (s *RelayService) ToggleRelay(device models.RelayDevice) models.RelayDevice {
	s.mu.Lock()
	current, ownerID, found := s.findLocked(device.ID)
	if !found {
		current = device
		ownerID = device.OwnerID
	}
	newState := !current.IsOn
	current.IsOn = newState
	if found {
		s.replaceLocked(ownerID, current)
		s.publishLocked(ownerID)
	}
	s.mu.Unlock()

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.confirmToggle(current, ownerID, newState)
	}()
	return current
}

// ToggleDevice flips a relay by id. It reports false when the id is not mirrored.
func (s *RelayService) ToggleDevice(deviceID string) bool {
	s.mu.Lock()
	d, _, found := s.findLocked(deviceID)
	s.mu.Unlock()
	if !found {
		return false
	}
	s.ToggleRelay(d)
	return true
}

// OwnerOf returns the user whose mirror holds deviceID.
func (s *RelayService) OwnerOf(deviceID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, owner, ok := s.findLocked(deviceID)
	return owner, ok
}

func (s *RelayService) confirmToggle(d models.RelayDevice, ownerID int, newState bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var err error
	switch {
	case s.controller == nil:
		err = errors.New("no relay controller configured")
	case strings.TrimSpace(d.ControlEndpoint) == "":
		err = errors.New("relay has no control endpoint")
	default:
		err = s.controller.SetRelayState(ctx, d.ControlEndpoint, newState)
	}

	meta := map[string]any{"device_id": d.ID, "endpoint": d.ControlEndpoint, "state": newState}
	if err != nil {
		s.log.Errorw("relay_toggle_failed", "device_id", d.ID, "endpoint", d.ControlEndpoint, "error", err)
		s.mu.Lock()
		if cur, owner, ok := s.findLocked(d.ID); ok {
			cur.IsOn = !newState
			s.replaceLocked(owner, cur)
		}
		s.errs[ownerID] = ErrBackendUnreachable
		s.publishLocked(ownerID)
		s.mu.Unlock()
		s.telemetry.RelayToggled(false)
		s.events.record(ctx, ownerID, models.EventToggleFailed, fmt.Sprintf("toggle %q failed", d.Name), meta)
		return
	}

	s.telemetry.RelayToggled(true)
	if err := s.repo.SetOn(ctx, d.ID, newState); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.log.Warnw("relay_state_persist_failed", "device_id", d.ID, "error", err)
	}
	s.log.Infow("relay_toggled", "device_id", d.ID, "state", newState)
	s.events.record(ctx, ownerID, models.EventToggle, fmt.Sprintf("%s turned %s", d.Name, onOff(newState)), meta)
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func (s *RelayService) LastError(ownerID int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs[ownerID]
}

func (s *RelayService) ClearError(ownerID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.errs[ownerID]; !ok {
		return
	}
	delete(s.errs, ownerID)
	s.publishLocked(ownerID)
}

// Subscribe streams the owner's mirror. The current state is delivered first.
func (s *RelayService) Subscribe(ownerID int) (<-chan RelaySnapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feedLocked(ownerID).Subscribe()
}

func (s *RelayService) setError(ownerID int, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[ownerID] = msg
	s.publishLocked(ownerID)
}

func (s *RelayService) replaceDevice(ownerID int, d models.RelayDevice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(ownerID, d)
	s.publishLocked(ownerID)
}

func (s *RelayService) replaceLocked(ownerID int, d models.RelayDevice) {
	cur := s.mirrors[ownerID]
	next := make([]models.RelayDevice, len(cur))
	for i, x := range cur {
		if x.ID == d.ID {
			x = d
		}
		next[i] = x
	}
	s.mirrors[ownerID] = next
}

func (s *RelayService) findLocked(id string) (models.RelayDevice, int, bool) {
	for owner, devices := range s.mirrors {
		for _, d := range devices {
			if d.ID == id {
				return d, owner, true
			}
		}
	}
	return models.RelayDevice{}, 0, false
}

func (s *RelayService) feedLocked(ownerID int) *Feed[RelaySnapshot] {
	f, ok := s.feeds[ownerID]
	if !ok {
		f = NewFeed[RelaySnapshot]()
		s.feeds[ownerID] = f
		if s.loaded[ownerID] {
			f.Publish(s.snapshotLocked(ownerID))
		}
	}
	return f
}

func (s *RelayService) snapshotLocked(ownerID int) RelaySnapshot {
	return RelaySnapshot{Devices: cloneDevices(s.mirrors[ownerID]), Error: s.errs[ownerID]}
}

func (s *RelayService) publishLocked(ownerID int) {
	s.feedLocked(ownerID).Publish(s.snapshotLocked(ownerID))
}

// wait blocks until every background toggle confirmation has finished.
func (s *RelayService) wait() { s.inflight.Wait() }

func cloneDevices(in []models.RelayDevice) []models.RelayDevice {
	out := make([]models.RelayDevice, len(in))
	copy(out, in)
	return out
}
