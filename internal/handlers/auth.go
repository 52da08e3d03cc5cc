package handlers

import (
	"errors"
	"net/http"

	"powersense/internal/service"

	"github.com/gin-gonic/gin"
)

// SignUpRequest is the sign-up payload.
type SignUpRequest struct {
	Email    string `json:"email" binding:"required" example:"ann@example.com"`
	Password string `json:"password" binding:"required" example:"s3cret-pass"`
	FullName string `json:"full_name" example:"Ann Lee"`
}

// SignInRequest is the sign-in payload.
type SignInRequest struct {
	Email    string `json:"email" binding:"required" example:"ann@example.com"`
	Password string `json:"password" binding:"required" example:"s3cret-pass"`
}

// ChangePasswordRequest re-authenticates with the current password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// @Summary      Sign up
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      SignUpRequest  true  "Account"
// @Success      200   {object}  map[string]int  "id"
// @Failure      400   {object}  map[string]string
// @Router       /auth/sign-up [post]
func (h *Handler) signUp(c *gin.Context) {
	var input SignUpRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	id, err := h.services.Authorization.SignUp(input.Email, input.Password, input.FullName)
	if err != nil {
		if h.log != nil {
			h.log.Infow("auth_sign_up_failed", "email", input.Email, "err", err)
		}
		msg := "could not create account"
		if errors.Is(err, service.ErrWeakPassword) || errors.Is(err, service.ErrInvalidEmail) {
			msg = err.Error()
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id})
}

// @Summary      Sign in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      SignInRequest  true  "Credentials"
// @Success      200   {object}  map[string]string  "token"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /auth/sign-in [post]
func (h *Handler) signIn(c *gin.Context) {
	var input SignInRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	token, err := h.services.Authorization.GenerateToken(input.Email, input.Password)
	if err != nil {
		if h.log != nil {
			h.log.Infow("auth_sign_in_failed", "email", input.Email, "err", err)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// @Summary      Change password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      ChangePasswordRequest  true  "Passwords"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Router       /api/v1/account/password [post]
// @Security     BearerAuth
func (h *Handler) changePassword(c *gin.Context) {
	var input ChangePasswordRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}
	uid := currentUser(c)
	if err := h.services.Authorization.ChangePassword(uid, input.CurrentPassword, input.NewPassword); err != nil {
		h.respondServiceError(c, err, http.StatusInternalServerError, errInternal, "auth_change_password_failed", "user_id", uid)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password_changed"})
}
