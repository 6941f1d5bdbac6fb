package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListPopups returns the pop-ups waiting on a session
func (h *Handlers) ListPopups(c *gin.Context) {
	if h.popups == nil {
		fail(c, http.StatusNotFound, "pop-up queue disabled")
		return
	}
	id, ok := sessionID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"popups":  h.popups.Pending(id),
	})
}

// ResolvePopups answers every pop-up waiting on a session
func (h *Handlers) ResolvePopups(c *gin.Context) {
	if h.popups == nil {
		fail(c, http.StatusNotFound, "pop-up queue disabled")
		return
	}
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req struct {
		Allow    *bool `json:"allow" binding:"required"`
		Remember bool  `json:"remember"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	n := h.popups.ResolvePending(id, *req.Allow, req.Remember)
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"resolved": n,
	})
}
