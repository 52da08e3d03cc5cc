package handlers

import (
	"net/http"

	"powersense/internal/models"
	"powersense/internal/service"

	"github.com/gin-gonic/gin"
)

// ProfileRequest holds the editable profile fields.
type ProfileRequest struct {
	FullName string `json:"full_name" example:"Ann Lee"`
	Username string `json:"username" example:"ann"`
	Phone    string `json:"phone" example:"+15550100"`
}

// AvatarRequest selects an avatar from the catalogue.
type AvatarRequest struct {
	URL string `json:"url" binding:"required"`
}

// @Summary      Get profile
// @Tags         profile
// @Produce      json
// @Success      200  {object}  models.UserProfile
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/profile [get]
// @Security     BearerAuth
func (h *Handler) getProfile(c *gin.Context) {
	uid := currentUser(c)
	p, err := h.services.Profile.GetProfile(c.Request.Context(), uid)
	if err != nil {
		h.respondServiceError(c, err, http.StatusInternalServerError, "failed to load profile", "profile_get_failed", "user_id", uid)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary      Save profile
// @Tags         profile
// @Accept       json
// @Produce      json
// @Param        body  body      ProfileRequest  true  "Profile"
// @Success      200   {object}  models.UserProfile
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/profile [put]
// @Security     BearerAuth
func (h *Handler) saveProfile(c *gin.Context) {
	var req ProfileRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	uid := currentUser(c)
	p, err := h.services.Profile.SaveProfile(c.Request.Context(), uid, service.ProfileParams{
		FullName: req.FullName,
		Username: req.Username,
		Phone:    req.Phone,
	})
	if err != nil {
		h.respondServiceError(c, err, http.StatusInternalServerError, "failed to save profile", "profile_save_failed", "user_id", uid)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary      Change avatar
// @Tags         profile
// @Accept       json
// @Produce      json
// @Param        body  body      AvatarRequest  true  "Avatar URL from /api/v1/avatars"
// @Success      200   {object}  models.UserProfile
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/profile/avatar [put]
// @Security     BearerAuth
func (h *Handler) updateAvatar(c *gin.Context) {
	var req AvatarRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	uid := currentUser(c)
	p, err := h.services.Profile.UpdateAvatar(c.Request.Context(), uid, req.URL)
	if err != nil {
		h.respondServiceError(c, err, http.StatusInternalServerError, "failed to update avatar", "profile_avatar_failed", "user_id", uid)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary      Avatar catalogue
// @Tags         profile
// @Produce      json
// @Success      200  {object}  map[string][]string  "avatars"
// @Router       /api/v1/avatars [get]
// @Security     BearerAuth
func (h *Handler) listAvatars(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"avatars": h.services.Profile.Avatars()})
}

// @Summary      Get settings
// @Tags         profile
// @Produce      json
// @Success      200  {object}  models.Settings
// @Router       /api/v1/settings [get]
// @Security     BearerAuth
func (h *Handler) getSettings(c *gin.Context) {
	uid := currentUser(c)
	s, err := h.services.Profile.GetSettings(c.Request.Context(), uid)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load settings", "settings_get_failed", err, "user_id", uid)
		return
	}
	c.JSON(http.StatusOK, s)
}

// @Summary      Save settings
// @Tags         profile
// @Accept       json
// @Produce      json
// @Param        body  body      models.Settings  true  "Settings"
// @Success      200   {object}  models.Settings
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/settings [put]
// @Security     BearerAuth
func (h *Handler) saveSettings(c *gin.Context) {
	var req models.Settings
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	uid := currentUser(c)
	req.UserID = uid
	s, err := h.services.Profile.SaveSettings(c.Request.Context(), req)
	if err != nil {
		h.respondServiceError(c, err, http.StatusInternalServerError, "failed to save settings", "settings_save_failed", "user_id", uid)
		return
	}
	if h.services.Costs != nil {
		h.services.Costs.SetPrice(uid, s.CostPerKwh)
	}
	c.JSON(http.StatusOK, s)
}
