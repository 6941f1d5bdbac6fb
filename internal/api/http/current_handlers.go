package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/sessionhub/internal/domain/session"
	"github.com/GriffinCanCode/sessionhub/internal/types"
)

// respondCurrent writes the current session, or 404 when there is none
func (h *Handlers) respondCurrent(c *gin.Context) {
	info, ok := h.sessions.CurrentSession()
	if !ok {
		fail(c, http.StatusNotFound, "no current session")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"session":     info,
		"can_go_back": h.sessions.CanGoBack(),
		"can_unstack": h.sessions.CanUnstack(),
		"private":     info.Settings.PrivateMode,
	})
}

// GetCurrent returns the current session
func (h *Handlers) GetCurrent(c *gin.Context) {
	h.respondCurrent(c)
}

// requireCurrent answers 409 when there is no current session
func (h *Handlers) requireCurrent(c *gin.Context) bool {
	if !h.sessions.CurrentSessionID().Valid() {
		fail(c, http.StatusConflict, "no current session")
		return false
	}
	return true
}

func (h *Handlers) currentAction(action func()) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.requireCurrent(c) {
			return
		}
		action()
		h.respondCurrent(c)
	}
}

// Load loads a URI into the current session; an empty URI means home
func (h *Handlers) Load(c *gin.Context) {
	var req struct {
		URI string `json:"uri"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if !h.requireCurrent(c) {
		return
	}
	h.sessions.LoadURI(req.URI)
	h.respondCurrent(c)
}

// UpdateSettings applies session settings to the current session.
// Multiprocess and tracking protection replace the session.
func (h *Handlers) UpdateSettings(c *gin.Context) {
	var req struct {
		Multiprocess       *bool   `json:"multiprocess"`
		TrackingProtection *bool   `json:"tracking_protection"`
		UserAgentMode      *string `json:"user_agent_mode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if !h.requireCurrent(c) {
		return
	}

	if req.UserAgentMode != nil {
		mode := types.UserAgentMode(*req.UserAgentMode)
		switch mode {
		case types.UserAgentMobile, types.UserAgentDesktop, types.UserAgentVR:
		default:
			fail(c, http.StatusBadRequest, "invalid user_agent_mode: "+*req.UserAgentMode)
			return
		}
		h.sessions.SetUserAgentMode(mode)
	}

	ctx := c.Request.Context()
	updates := []struct {
		field session.Setting
		value *bool
	}{
		{session.SettingMultiprocess, req.Multiprocess},
		{session.SettingTrackingProtection, req.TrackingProtection},
	}
	for _, u := range updates {
		if u.value == nil {
			continue
		}
		if err := h.sessions.UpdateSetting(ctx, u.field, *u.value); err != nil {
			h.failErr(c, err)
			return
		}
	}
	h.respondCurrent(c)
}

// SetRegion stores the region used to tag the home page
func (h *Handlers) SetRegion(c *gin.Context) {
	var req struct {
		Region string `json:"region" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	h.sessions.SetRegion(req.Region)
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"home_uri": h.sessions.HomeURI(),
	})
}

// SwitchPrivate toggles private mode
func (h *Handlers) SwitchPrivate(c *gin.Context) {
	if !h.requireCurrent(c) {
		return
	}
	if err := h.sessions.SwitchPrivateMode(c.Request.Context()); err != nil {
		h.failErr(c, err)
		return
	}
	h.respondCurrent(c)
}

// ExitPrivate leaves private mode and destroys the private sessions
func (h *Handlers) ExitPrivate(c *gin.Context) {
	if !h.requireCurrent(c) {
		return
	}
	h.sessions.ExitPrivateMode()
	h.respondCurrent(c)
}
