package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListSettings returns the browser settings, optionally filtered by
// ?category=
func (h *Handlers) ListSettings(c *gin.Context) {
	if h.settings == nil {
		fail(c, http.StatusNotFound, "settings not available")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"settings": h.settings.List(c.Query("category")),
		"region":   h.settings.Region(),
	})
}
