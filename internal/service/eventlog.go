package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"powersense/internal/logger"
	"powersense/internal/models"
	"powersense/internal/repository"

	"github.com/google/uuid"
)

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: From must be <= To")
)

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeEventType trims spaces and uppercases the event type filter.
func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter prepares query parameters and validates the time range.
func normalizeAndValidateFilter(f LogFilter) (time.Time, time.Time, string, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, "", errInvalidTimeRange
	}

	eventType := normalizeEventType(f.Type)
	return from, to, eventType, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.Event, error) {
	from, to, typ, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, f.OwnerID, from, to, typ)
}

// eventRecorder appends events on behalf of other services. Failures are
// logged and never propagate: the log must not break the operation it records.
type eventRecorder struct {
	repo repository.EventRepo
	log  *logger.Logger
	now  func() time.Time
}

func newEventRecorder(repo repository.EventRepo, log *logger.Logger) *eventRecorder {
	if log == nil {
		log = logger.Nop()
	}
	return &eventRecorder{repo: repo, log: log, now: time.Now}
}

func (r *eventRecorder) record(ctx context.Context, ownerID int, typ, description string, meta any) {
	if r == nil || r.repo == nil {
		return
	}
	ev := models.Event{
		EventID:     uuid.NewString(),
		OwnerID:     ownerID,
		OccurredAt:  r.now().UTC(),
		Type:        typ,
		Description: description,
		Metadata:    meta,
	}
	if err := r.repo.Append(ctx, ev); err != nil {
		r.log.Warnw("event_append_failed", "type", typ, "owner_id", ownerID, "error", err)
	}
}
