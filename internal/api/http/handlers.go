package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/sessionhub/internal/domain/popup"
	"github.com/GriffinCanCode/sessionhub/internal/domain/session"
	"github.com/GriffinCanCode/sessionhub/internal/engine"
	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sessionhub/internal/providers/settings"
	"github.com/GriffinCanCode/sessionhub/internal/types"
)

// Handlers serves the session inspection API
type Handlers struct {
	sessions *session.Registry
	popups   *popup.Queue
	settings *settings.Store
	logger   *logging.Logger
}

// NewHandlers creates the handlers. popups may be nil, in which case the
// pop-up routes answer 404.
func NewHandlers(sessions *session.Registry, popups *popup.Queue, logger *logging.Logger) *Handlers {
	return &Handlers{
		sessions: sessions,
		popups:   popups,
		logger:   logging.OrNop(logger).Named("api"),
	}
}

// WithSettings exposes the settings store read-only under /api/settings
func (h *Handlers) WithSettings(store *settings.Store) *Handlers {
	h.settings = store
	return h
}

// Register mounts every route on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/health", h.Health)

	api := r.Group("/api")

	api.GET("/sessions", h.ListSessions)
	api.POST("/sessions", h.CreateSession)
	api.GET("/sessions/:id", h.GetSession)
	api.DELETE("/sessions/:id", h.DeleteSession)
	api.POST("/sessions/:id/current", h.SetCurrent)
	api.POST("/sessions/:id/stack", h.StackSession)
	api.POST("/stack/unstack", h.Unstack)

	api.GET("/current", h.GetCurrent)
	api.POST("/current/load", h.Load)
	api.POST("/current/back", h.currentAction(h.sessions.GoBack))
	api.POST("/current/forward", h.currentAction(h.sessions.GoForward))
	api.POST("/current/reload", h.currentAction(h.sessions.Reload))
	api.POST("/current/stop", h.currentAction(h.sessions.Stop))
	api.PUT("/current/settings", h.UpdateSettings)
	api.PUT("/region", h.SetRegion)

	api.POST("/private/switch", h.SwitchPrivate)
	api.POST("/private/exit", h.ExitPrivate)

	api.GET("/settings", h.ListSettings)

	api.GET("/popups/:id", h.ListPopups)
	api.POST("/popups/:id/resolve", h.ResolvePopups)
}

// Health reports liveness together with a registry summary
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"stats":  h.sessions.Stats(),
	})
}

// sessionID parses the :id path parameter, answering 400 on failure
func sessionID(c *gin.Context) (types.SessionID, bool) {
	n, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || !types.SessionID(n).Valid() {
		fail(c, http.StatusBadRequest, "invalid session id: "+c.Param("id"))
		return types.NoSession, false
	}
	return types.SessionID(n), true
}

// knownSession parses :id and checks the registry, answering 404 when unknown
func (h *Handlers) knownSession(c *gin.Context) (types.SessionID, bool) {
	id, ok := sessionID(c)
	if !ok {
		return id, false
	}
	if _, found := h.sessions.Session(id); !found {
		fail(c, http.StatusNotFound, "session not found")
		return id, false
	}
	return id, true
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   msg,
	})
}

// failErr maps registry errors to status codes
func (h *Handlers) failErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrEngineUnavailable):
		fail(c, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, session.ErrEmptyStack):
		fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrUnknownSetting):
		fail(c, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		fail(c, http.StatusInternalServerError, err.Error())
	}
}
