package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"powersense/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	defaultHistoryHours = 24
	maxHistoryHours     = 168
)

// hoursQuery reads ?interval= as whole hours in [1, maxHistoryHours].
func hoursQuery(c *gin.Context) (int, bool) {
	s := c.Query("interval")
	if s == "" {
		return defaultHistoryHours, true
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 || v > maxHistoryHours {
		return 0, false
	}
	return v, true
}

func (h *Handler) backendError(c *gin.Context, logKey string, err error, kv ...interface{}) {
	code := http.StatusBadGateway
	if errors.Is(err, service.ErrNoBackend) {
		code = http.StatusServiceUnavailable
	}
	h.logAndJSONError(c, code, errBackend, logKey, err, kv...)
}

// @Summary      Latest reading
// @Description  Most recent reading seen by the live monitor.
// @Tags         sensors
// @Produce      json
// @Success      200  {object}  models.SensorData
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/sensors/latest [get]
// @Security     BearerAuth
func (h *Handler) latestReadings(c *gin.Context) {
	snap := h.services.Monitor.Snapshot()
	if snap.Latest == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no reading yet", "status": snap.Status})
		return
	}
	c.JSON(http.StatusOK, snap.Latest)
}

// @Summary      Sensor history
// @Description  Chart series for the last `interval` hours. Also switches the caller's live stream chart window.
// @Tags         sensors
// @Produce      json
// @Param        interval  query     int  false  "Hours (1-168)"  default(24)
// @Success      200       {object}  models.HistoricalSensorData
// @Failure      400       {object}  map[string]string
// @Failure      502       {object}  map[string]string
// @Router       /api/v1/sensors/history [get]
// @Security     BearerAuth
func (h *Handler) sensorHistory(c *gin.Context) {
	hours, ok := hoursQuery(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval must be an integer between 1 and 168"})
		return
	}
	data, err := h.services.Usage.History(c.Request.Context(), hours)
	if err != nil {
		h.backendError(c, "sensor_history_failed", err, "hours", hours)
		return
	}
	if c.Query("interval") != "" {
		h.services.Monitor.SetChartHours(currentUser(c), hours)
	}
	c.JSON(http.StatusOK, data)
}

// @Summary      Relay usage
// @Description  Hours each backend relay was on during the last `interval` hours.
// @Tags         sensors
// @Produce      json
// @Param        interval  query     int  false  "Hours (1-168)"  default(24)
// @Success      200       {object}  models.RelayUsage
// @Failure      400       {object}  map[string]string
// @Failure      502       {object}  map[string]string
// @Router       /api/v1/sensors/usage [get]
// @Security     BearerAuth
func (h *Handler) relayUsage(c *gin.Context) {
	hours, ok := hoursQuery(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval must be an integer between 1 and 168"})
		return
	}
	usage, err := h.services.Usage.RelayUsage(c.Request.Context(), hours)
	if err != nil {
		h.backendError(c, "relay_usage_failed", err, "hours", hours)
		return
	}
	c.JSON(http.StatusOK, usage)
}

// @Summary      Connection status
// @Description  Live monitor state with the chart for the caller's window.
// @Tags         sensors
// @Produce      json
// @Success      200  {object}  service.LiveSnapshot
// @Router       /api/v1/sensors/status [get]
// @Security     BearerAuth
func (h *Handler) connectionStatus(c *gin.Context) {
	snap := h.services.Monitor.Snapshot()
	c.JSON(http.StatusOK, snap.ForWindow(h.services.Monitor.ChartHours(currentUser(c))))
}

// @Summary      Estimated cost
// @Description  Integrates power over the selected window anchored at the latest sample. Without `price` the user's cost per kWh setting is used.
// @Tags         sensors
// @Produce      json
// @Param        period  query     string  false  "Window"  Enums(none,1m,5m,10m,30m,1h,6h,12h,24h)
// @Param        price   query     number  false  "Price per kWh"
// @Success      200     {object}  service.CostEstimate
// @Failure      400     {object}  map[string]string
// @Failure      502     {object}  map[string]string
// @Router       /api/v1/cost [get]
// @Security     BearerAuth
func (h *Handler) estimatedCost(c *gin.Context) {
	ctx := c.Request.Context()
	period, ok := service.ParseCostPeriod(c.Query("period"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown period"})
		return
	}

	var price float64
	if s := c.Query("price"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "price must be a finite number"})
			return
		}
		price = v
	} else {
		uid := currentUser(c)
		settings, err := h.services.Profile.GetSettings(ctx, uid)
		if err != nil {
			h.logAndJSONError(c, http.StatusInternalServerError, "failed to load settings", "cost_settings_failed", err, "user_id", uid)
			return
		}
		price = settings.CostPerKwh
	}

	est, err := h.services.Usage.EstimatedCost(ctx, period, price)
	if err != nil {
		h.backendError(c, "cost_estimate_failed", err, "period", period)
		return
	}
	c.JSON(http.StatusOK, est)
}

// CostPeriodRequest selects the window for the polled estimate.
type CostPeriodRequest struct {
	Period string `json:"period" binding:"required" example:"1h" enums:"none,1m,5m,10m,30m,1h,6h,12h,24h"`
}

// @Summary      Select polled cost window
// @Description  Restarts the caller's background cost estimate with a new window; "none" stops it. Updates are pushed as "cost" envelopes on /ws.
// @Tags         sensors
// @Accept       json
// @Produce      json
// @Param        body  body      CostPeriodRequest  true  "Window"
// @Success      200   {object}  service.CostUpdate
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/cost/period [put]
// @Security     BearerAuth
func (h *Handler) selectCostPeriod(c *gin.Context) {
	var req CostPeriodRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	period, ok := service.ParseCostPeriod(req.Period)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown period"})
		return
	}
	uid := currentUser(c)
	if h.log != nil {
		h.log.Infow("cost_period_selected", "user_id", uid, "period", period)
	}
	c.JSON(http.StatusOK, h.services.Costs.StartPolling(uid, period))
}

// @Summary      Current polled cost
// @Tags         sensors
// @Produce      json
// @Success      200  {object}  service.CostUpdate
// @Success      204  "no window selected"
// @Router       /api/v1/cost/period [get]
// @Security     BearerAuth
func (h *Handler) currentPolledCost(c *gin.Context) {
	up, ok := h.services.Costs.Current(currentUser(c))
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, up)
}
