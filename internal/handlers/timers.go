package handlers

import (
	"net/http"

	"powersense/internal/models"
	"powersense/internal/service"

	"github.com/gin-gonic/gin"
)

// TimerRequest configures a countdown. The upper bound is one year in
// seconds; the service enforces the same cap for the larger units.
type TimerRequest struct {
	Duration int64  `json:"duration" binding:"required,min=1,max=31536000" example:"10"`
	Unit     string `json:"unit" binding:"required" example:"Minutes" enums:"Seconds,Minutes,Hours,Days"`
}

// ownedRelay loads the switch for the caller; writes the error response on failure.
func (h *Handler) ownedRelay(c *gin.Context) (models.RelayDevice, bool) {
	uid, id := currentUser(c), c.Param("id")
	d, err := h.services.Relays.Get(c.Request.Context(), uid, id)
	if err != nil {
		h.respondServiceError(c, err, http.StatusInternalServerError, "failed to load relay", "timer_relay_lookup_failed", "user_id", uid, "device_id", id)
		return models.RelayDevice{}, false
	}
	return d, true
}

// userTimers keeps only the timers of the caller's switches.
func (h *Handler) userTimers(c *gin.Context, all map[string]models.TimerState) (map[string]models.TimerState, error) {
	devices, err := h.services.Relays.Devices(c.Request.Context(), currentUser(c))
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.TimerState)
	for _, d := range devices {
		if st, ok := all[d.ID]; ok {
			out[d.ID] = st
		}
	}
	return out, nil
}

// @Summary      List timers
// @Tags         timers
// @Produce      json
// @Success      200  {object}  map[string]models.TimerState
// @Router       /api/v1/timers [get]
// @Security     BearerAuth
func (h *Handler) listTimers(c *gin.Context) {
	timers, err := h.userTimers(c, h.services.Timers.Snapshot())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load timers", "timers_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, timers)
}

// @Summary      Set timer
// @Description  Replaces any existing countdown; the timer is left stopped at its full length.
// @Tags         timers
// @Accept       json
// @Produce      json
// @Param        id    path      string        true  "Switch id"
// @Param        body  body      TimerRequest  true  "Duration"
// @Success      200   {object}  models.TimerState
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/timers/{id} [put]
// @Security     BearerAuth
func (h *Handler) setTimer(c *gin.Context) {
	var req TimerRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	if !service.ValidTimerUnit(req.Unit) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unit must be one of Seconds, Minutes, Hours, Days"})
		return
	}
	d, ok := h.ownedRelay(c)
	if !ok {
		return
	}
	st, err := h.services.Timers.SetTimer(d.ID, req.Duration, req.Unit)
	if err != nil {
		h.respondServiceError(c, err, http.StatusInternalServerError, "failed to set timer", "timer_set_failed",
			"device_id", d.ID, "duration", req.Duration, "unit", req.Unit)
		return
	}
	c.JSON(http.StatusOK, st)
}

// timerAction runs fn for an owned relay and responds with its timer state.
func (h *Handler) timerAction(c *gin.Context, fn func(id string)) {
	d, ok := h.ownedRelay(c)
	if !ok {
		return
	}
	fn(d.ID)
	st, exists := h.services.Timers.Snapshot()[d.ID]
	if !exists {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Start timer
// @Tags         timers
// @Produce      json
// @Param        id   path      string  true  "Switch id"
// @Success      200  {object}  models.TimerState
// @Success      204  "no timer set"
// @Router       /api/v1/timers/{id}/start [post]
// @Security     BearerAuth
func (h *Handler) startTimer(c *gin.Context) { h.timerAction(c, h.services.Timers.StartTimer) }

// @Summary      Stop timer
// @Tags         timers
// @Produce      json
// @Param        id   path      string  true  "Switch id"
// @Success      200  {object}  models.TimerState
// @Router       /api/v1/timers/{id}/stop [post]
// @Security     BearerAuth
func (h *Handler) stopTimer(c *gin.Context) { h.timerAction(c, h.services.Timers.StopTimer) }

// @Summary      Reset timer
// @Tags         timers
// @Produce      json
// @Param        id   path      string  true  "Switch id"
// @Success      200  {object}  models.TimerState
// @Router       /api/v1/timers/{id}/reset [post]
// @Security     BearerAuth
func (h *Handler) resetTimer(c *gin.Context) { h.timerAction(c, h.services.Timers.ResetTimer) }

// @Summary      Clear timer
// @Tags         timers
// @Param        id   path  string  true  "Switch id"
// @Success      204
// @Router       /api/v1/timers/{id} [delete]
// @Security     BearerAuth
func (h *Handler) clearTimer(c *gin.Context) { h.timerAction(c, h.services.Timers.ClearTimer) }
