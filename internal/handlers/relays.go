package handlers

import (
	"net/http"

	"powersense/internal/service"

	"github.com/gin-gonic/gin"
)

// RelayRequest is the create/update payload for a switch.
type RelayRequest struct {
	Name            string   `json:"name" binding:"required" example:"Kettle"`
	Description     string   `json:"description" example:"Kitchen"`
	ControlEndpoint string   `json:"control_endpoint" example:"relay1"`
	Threshold       *float64 `json:"threshold,omitempty" example:"1500"`
	ThresholdUnit   string   `json:"threshold_unit,omitempty" example:"W"`
}

func (r RelayRequest) params() service.RelayParams {
	return service.RelayParams{
		Name:            r.Name,
		Description:     r.Description,
		ControlEndpoint: r.ControlEndpoint,
		Threshold:       r.Threshold,
		ThresholdUnit:   r.ThresholdUnit,
	}
}

// @Summary      List switches
// @Description  Reloads the user's switches from the store, keeping the locally known on/off state.
// @Tags         relays
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "devices, error"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/relays [get]
// @Security     BearerAuth
func (h *Handler) listRelays(c *gin.Context) {
	uid := currentUser(c)
	devices, err := h.services.Relays.Refresh(c.Request.Context(), uid)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load relays", "relays_list_failed", err, "user_id", uid)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"devices": devices,
		"error":   h.services.Relays.LastError(uid),
	})
}

// @Summary      Add switch
// @Tags         relays
// @Accept       json
// @Produce      json
// @Param        body  body      RelayRequest  true  "Switch"
// @Success      201   {object}  models.RelayDevice
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/v1/relays [post]
// @Security     BearerAuth
func (h *Handler) createRelay(c *gin.Context) {
	var req RelayRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	uid := currentUser(c)
	d, err := h.services.Relays.Add(c.Request.Context(), uid, req.params())
	if err != nil {
		h.respondServiceError(c, err, http.StatusInternalServerError, "failed to add relay", "relay_create_failed", "user_id", uid)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// @Summary      Update switch
// @Tags         relays
// @Accept       json
// @Produce      json
// @Param        id    path      string        true  "Switch id"
// @Param        body  body      RelayRequest  true  "Switch"
// @Success      200   {object}  models.RelayDevice
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/relays/{id} [put]
// @Security     BearerAuth
func (h *Handler) updateRelay(c *gin.Context) {
	var req RelayRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	uid, id := currentUser(c), c.Param("id")
	d, err := h.services.Relays.Update(c.Request.Context(), uid, id, req.params())
	if err != nil {
		h.respondServiceError(c, err, http.StatusInternalServerError, "failed to update relay", "relay_update_failed", "user_id", uid, "device_id", id)
		return
	}
	c.JSON(http.StatusOK, d)
}

// @Summary      Delete switch
// @Description  Also clears any timer attached to the switch.
// @Tags         relays
// @Param        id   path  string  true  "Switch id"
// @Success      204
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/relays/{id} [delete]
// @Security     BearerAuth
func (h *Handler) deleteRelay(c *gin.Context) {
	uid, id := currentUser(c), c.Param("id")
	if err := h.services.Relays.Delete(c.Request.Context(), uid, id); err != nil {
		h.respondServiceError(c, err, http.StatusInternalServerError, "failed to delete relay", "relay_delete_failed", "user_id", uid, "device_id", id)
		return
	}
	h.services.Timers.ClearTimer(id)
	c.Status(http.StatusNoContent)
}

// @Summary      Toggle switch
// @Description  Flips the switch optimistically and confirms with the sensor backend in the background. A failed confirmation rolls the state back and surfaces an error on the relay stream.
// @Tags         relays
// @Produce      json
// @Param        id   path      string  true  "Switch id"
// @Success      202  {object}  models.RelayDevice
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/relays/{id}/toggle [post]
// @Security     BearerAuth
func (h *Handler) toggleRelay(c *gin.Context) {
	uid, id := currentUser(c), c.Param("id")
	d, err := h.services.Relays.Get(c.Request.Context(), uid, id)
	if err != nil {
		h.respondServiceError(c, err, http.StatusInternalServerError, "failed to load relay", "relay_toggle_failed", "user_id", uid, "device_id", id)
		return
	}
	c.JSON(http.StatusAccepted, h.services.Relays.ToggleRelay(d))
}

// @Summary      Toggle favorite
// @Tags         relays
// @Produce      json
// @Param        id   path      string  true  "Switch id"
// @Success      200  {object}  models.RelayDevice
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/relays/{id}/favorite [post]
// @Security     BearerAuth
func (h *Handler) toggleFavorite(c *gin.Context) {
	uid, id := currentUser(c), c.Param("id")
	d, err := h.services.Relays.ToggleFavorite(c.Request.Context(), uid, id)
	if err != nil {
		h.respondServiceError(c, err, http.StatusInternalServerError, "failed to update relay", "relay_favorite_failed", "user_id", uid, "device_id", id)
		return
	}
	c.JSON(http.StatusOK, d)
}

// @Summary      Dismiss relay error
// @Tags         relays
// @Success      204
// @Router       /api/v1/relays/error [delete]
// @Security     BearerAuth
func (h *Handler) clearRelayError(c *gin.Context) {
	h.services.Relays.ClearError(currentUser(c))
	c.Status(http.StatusNoContent)
}
