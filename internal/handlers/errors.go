package handlers

import (
	"errors"
	"net/http"

	"powersense/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK = "ok"

	errInvalidBodyPref = "invalid body: "
	errInternal        = "internal error"
	errBackend         = "sensor backend unavailable"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// clientErrors are domain errors whose message is safe to show as-is.
var clientErrors = []struct {
	err  error
	code int
}{
	{service.ErrRelayNotFound, http.StatusNotFound},
	{service.ErrUserNotFound, http.StatusNotFound},
	{service.ErrLocationNotFound, http.StatusNotFound},
	{service.ErrInvalidRelayName, http.StatusBadRequest},
	{service.ErrInvalidThreshold, http.StatusBadRequest},
	{service.ErrInvalidSettings, http.StatusBadRequest},
	{service.ErrUnknownAvatar, http.StatusBadRequest},
	{service.ErrWeakPassword, http.StatusBadRequest},
	{service.ErrInvalidEmail, http.StatusBadRequest},
	{service.ErrInvalidCoordinates, http.StatusBadRequest},
	{service.ErrInvalidTimerDuration, http.StatusBadRequest},
	{service.ErrInvalidPassword, http.StatusForbidden},
}

// respondServiceError maps domain errors to 4xx and everything else to
// fallbackCode with a generic message.
func (h *Handler) respondServiceError(c *gin.Context, err error, fallbackCode int, fallbackMsg, logKey string, kv ...interface{}) {
	for _, ce := range clientErrors {
		if errors.Is(err, ce.err) {
			if h.log != nil {
				h.log.Infow(logKey, append([]interface{}{"err", err}, kv...)...)
			}
			c.JSON(ce.code, gin.H{"error": err.Error()})
			return
		}
	}
	h.logAndJSONError(c, fallbackCode, fallbackMsg, logKey, err, kv...)
}

// bindJSONOrBadRequest tries to bind the request body into dst and writes a 400 JSON on failure.
// Returns false if the request was already handled (aborted), true otherwise.
func (h *Handler) bindJSONOrBadRequest(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if h.log != nil {
			h.log.Infow("bad_request_body", "path", c.FullPath(), "err", err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return false
	}
	return true
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}
