package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/sessionhub/internal/types"
)

// ListSessions returns every session, optionally filtered by ?private=true|false
func (h *Handlers) ListSessions(c *gin.Context) {
	var ids []types.SessionID
	switch c.Query("private") {
	case "true":
		ids = h.sessions.SessionsByPrivateMode(true)
	case "false":
		ids = h.sessions.SessionsByPrivateMode(false)
	default:
		ids = h.sessions.Sessions()
	}

	infos := make([]types.SessionInfo, 0, len(ids))
	for _, id := range ids {
		// a session may disappear between the two calls
		if info, ok := h.sessions.Session(id); ok {
			infos = append(infos, info)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"sessions": infos,
		"stats":    h.sessions.Stats(),
	})
}

// CreateSession creates a session from the store defaults
func (h *Handlers) CreateSession(c *gin.Context) {
	var req struct {
		Private bool   `json:"private"`
		Current bool   `json:"current"`
		URI     string `json:"uri"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "Invalid request: "+err.Error())
			return
		}
	}

	id, err := h.sessions.CreateDefaultSession(c.Request.Context(), req.Private)
	if err != nil {
		h.failErr(c, err)
		return
	}
	if req.Current || req.URI != "" {
		h.sessions.SetCurrentSession(id)
		if req.URI != "" {
			h.sessions.LoadURI(req.URI)
		}
	}

	info, _ := h.sessions.Session(id)
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"session": info,
	})
}

// GetSession returns one session
func (h *Handlers) GetSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	info, found := h.sessions.Session(id)
	if !found {
		fail(c, http.StatusNotFound, "session not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"session": info,
	})
}

// DeleteSession removes a session
func (h *Handlers) DeleteSession(c *gin.Context) {
	id, ok := h.knownSession(c)
	if !ok {
		return
	}
	h.sessions.RemoveSession(id)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"current": h.sessions.CurrentSessionID(),
	})
}

// SetCurrent makes a session current
func (h *Handlers) SetCurrent(c *gin.Context) {
	id, ok := h.knownSession(c)
	if !ok {
		return
	}
	h.sessions.SetCurrentSession(id)
	h.respondCurrent(c)
}

// StackSession pushes the current session and makes :id current
func (h *Handlers) StackSession(c *gin.Context) {
	id, ok := h.knownSession(c)
	if !ok {
		return
	}
	if !h.sessions.Stack(id) {
		fail(c, http.StatusConflict, "session is already current")
		return
	}
	h.respondCurrent(c)
}

// Unstack closes the current session and returns to its parent
func (h *Handlers) Unstack(c *gin.Context) {
	if err := h.sessions.Unstack(); err != nil {
		h.failErr(c, err)
		return
	}
	h.respondCurrent(c)
}
