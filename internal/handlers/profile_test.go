package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"powersense/internal/models"
	"powersense/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileHandlers(t *testing.T) {
	profile := &mockProfile{profile: models.UserProfile{UID: 2, Email: "ann@example.com"}}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{parseID: 2}, Profile: profile})

	w := doAuthed(r, http.MethodGet, "/api/v1/profile", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doAuthed(r, http.MethodPut, "/api/v1/profile", `{"full_name":"Ann Lee","username":"ann","phone":"+1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.ProfileParams{FullName: "Ann Lee", Username: "ann", Phone: "+1"}, profile.lastParams)

	w = doAuthed(r, http.MethodGet, "/api/v1/avatars", "")
	require.Equal(t, http.StatusOK, w.Code)
	var avatars struct {
		Avatars []string `json:"avatars"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &avatars))
	assert.Len(t, avatars.Avatars, 2)

	w = doAuthed(r, http.MethodPut, "/api/v1/profile/avatar", `{"url":"a.png"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a.png", profile.lastAvatar)

	profile.err = service.ErrUnknownAvatar
	w = doAuthed(r, http.MethodPut, "/api/v1/profile/avatar", `{"url":"https://evil.example/x.png"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	profile.err = service.ErrUserNotFound
	w = doAuthed(r, http.MethodGet, "/api/v1/profile", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSettingsHandlers(t *testing.T) {
	profile := &mockProfile{settings: models.DefaultSettings(2)}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{parseID: 2}, Profile: profile})

	w := doAuthed(r, http.MethodGet, "/api/v1/settings", "")
	require.Equal(t, http.StatusOK, w.Code)
	var s models.Settings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	assert.Equal(t, models.ThemeSystem, s.Theme)

	w = doAuthed(r, http.MethodPut, "/api/v1/settings", `{"theme":"Dark","cost_per_kwh":9.5,"summary_interval_hours":12}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, profile.lastSettings.UserID)
	assert.Equal(t, models.ThemeDark, profile.lastSettings.Theme)

	profile.err = service.ErrInvalidSettings
	w = doAuthed(r, http.MethodPut, "/api/v1/settings", `{"theme":"Neon"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSettingsHandlers_PriceReachesCostPoller(t *testing.T) {
	profile := &mockProfile{settings: models.DefaultSettings(2)}
	costs := newMockCosts()
	r := newTestRouter(&service.Service{Authorization: &mockAuth{parseID: 2}, Profile: profile, Costs: costs})

	w := doAuthed(r, http.MethodPut, "/api/v1/settings", `{"theme":"Light","cost_per_kwh":0.31,"summary_interval_hours":6}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 0.31, costs.prices[2])

	profile.err = service.ErrInvalidSettings
	w = doAuthed(r, http.MethodPut, "/api/v1/settings", `{"theme":"Light","cost_per_kwh":5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0.31, costs.prices[2], "failed saves do not change the price")
}
