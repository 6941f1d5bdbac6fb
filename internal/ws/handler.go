package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/sessionhub/internal/domain/intercept"
	"github.com/GriffinCanCode/sessionhub/internal/domain/listener"
	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sessionhub/internal/shared/id"
	"github.com/GriffinCanCode/sessionhub/internal/types"
)

const (
	DefaultPingInterval = 30 * time.Second
	DefaultBufferSize   = 256

	writeWait      = 10 * time.Second
	maxMessageSize = 64 << 10
)

// Registry is the part of the session registry a stream client needs
type Registry interface {
	AddNavigationListener(l listener.Navigation)
	RemoveNavigationListener(l listener.Navigation)
	AddProgressListener(l listener.Progress)
	RemoveProgressListener(l listener.Progress)
	AddContentListener(l listener.Content)
	RemoveContentListener(l listener.Content)
	AddTextInputListener(l listener.TextInput)
	RemoveTextInputListener(l listener.TextInput)
	AddPromptListener(l listener.Prompt)
	RemovePromptListener(l listener.Prompt)
	AddSessionChangeListener(l listener.SessionChange)
	RemoveSessionChangeListener(l listener.SessionChange)
	AddVideoAvailabilityListener(l listener.VideoAvailability)
	RemoveVideoAvailabilityListener(l listener.VideoAvailability)
	CurrentSessionID() types.SessionID
}

// Handler manages WebSocket connections. It also acts as the pop-up
// notifier and the DRM window provider, broadcasting both to every
// connected client.
type Handler struct {
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	bufferSize   int
	logger       *logging.Logger
	metrics      *monitoring.Metrics

	mu       sync.Mutex
	registry Registry
	clients  map[*client]struct{}
	prompts  map[string]*types.Deferred[types.PromptResponse]
	promptOf map[*types.Deferred[types.PromptResponse]]string
	closed   bool
}

// Option configures a Handler
type Option func(*Handler)

// WithLogger sets the logger
func WithLogger(l *logging.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithMetrics sets the metrics
func WithMetrics(m *monitoring.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithPingInterval sets how often idle connections are pinged
func WithPingInterval(d time.Duration) Option {
	return func(h *Handler) { h.pingInterval = d }
}

// WithBufferSize sets the per-client event buffer. Events beyond it are
// dropped for that client.
func WithBufferSize(n int) Option {
	return func(h *Handler) { h.bufferSize = n }
}

// NewHandler creates a handler. SetRegistry must be called before
// connections are served.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		pingInterval: DefaultPingInterval,
		bufferSize:   DefaultBufferSize,
		clients:      make(map[*client]struct{}),
		prompts:      make(map[string]*types.Deferred[types.PromptResponse]),
		promptOf:     make(map[*types.Deferred[types.PromptResponse]]string),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = logging.OrNop(h.logger).Named("ws")
	return h
}

// SetRegistry sets the registry clients subscribe to
func (h *Handler) SetRegistry(r Registry) {
	h.mu.Lock()
	h.registry = r
	h.mu.Unlock()
}

// HandleConnection handles WebSocket upgrade and messages
func (h *Handler) HandleConnection(c *gin.Context) {
	h.mu.Lock()
	reg, closed := h.registry, h.closed
	h.mu.Unlock()
	if reg == nil || closed {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "event stream unavailable"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := newClient(h, conn)
	if !h.attach(cl) {
		conn.Close()
		return
	}
	h.metrics.IncWSConnections()
	h.logger.Info("stream client connected", zap.String("client", cl.id))

	cl.push(EventWelcome, types.NoSession, gin.H{"client": cl.id})
	subscribe(reg, cl)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		cl.writeLoop()
	}()
	cl.readLoop()

	unsubscribe(reg, cl)
	h.detach(cl)
	close(cl.quit)
	<-writerDone
	conn.Close()

	h.metrics.DecWSConnections()
	h.logger.Info("stream client disconnected",
		zap.String("client", cl.id),
		zap.Int64("dropped", cl.dropped.Load()),
	)
}

func subscribe(r Registry, cl *client) {
	r.AddSessionChangeListener(cl)
	r.AddNavigationListener(cl)
	r.AddProgressListener(cl)
	r.AddContentListener(cl)
	r.AddTextInputListener(cl)
	r.AddPromptListener(cl)
	r.AddVideoAvailabilityListener(cl)
}

func unsubscribe(r Registry, cl *client) {
	r.RemoveSessionChangeListener(cl)
	r.RemoveNavigationListener(cl)
	r.RemoveProgressListener(cl)
	r.RemoveContentListener(cl)
	r.RemoveTextInputListener(cl)
	r.RemovePromptListener(cl)
	r.RemoveVideoAvailabilityListener(cl)
}

func (h *Handler) attach(cl *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[cl] = struct{}{}
	return true
}

// detach forgets a client. When the last client leaves, prompts still
// waiting on an answer are dismissed.
func (h *Handler) detach(cl *client) {
	h.mu.Lock()
	delete(h.clients, cl)
	var orphans []*types.Deferred[types.PromptResponse]
	if len(h.clients) == 0 {
		for _, d := range h.prompts {
			orphans = append(orphans, d)
		}
	}
	h.mu.Unlock()

	for _, d := range orphans {
		d.Complete(types.PromptResponse{})
	}
}

// Clients returns the number of connected clients
func (h *Handler) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones
func (h *Handler) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.Unlock()

	for _, cl := range clients {
		cl.conn.Close()
	}
}

func (h *Handler) broadcast(typ string, sid types.SessionID, data any) {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.Unlock()

	for _, cl := range clients {
		cl.push(typ, sid, data)
	}
}

// registerPrompt returns the stream id of a prompt, allocating one the
// first time any client sees it
func (h *Handler) registerPrompt(d *types.Deferred[types.PromptResponse]) string {
	h.mu.Lock()
	if pid, ok := h.promptOf[d]; ok {
		h.mu.Unlock()
		return pid
	}
	pid := id.NewEventID().String()
	h.prompts[pid] = d
	h.promptOf[d] = pid
	h.mu.Unlock()

	d.Then(func(types.PromptResponse) {
		h.mu.Lock()
		delete(h.prompts, pid)
		delete(h.promptOf, d)
		h.mu.Unlock()
	})
	return pid
}

// answerPrompt completes a forwarded prompt. It reports false for unknown
// or already answered prompts.
func (h *Handler) answerPrompt(pid string, resp types.PromptResponse) bool {
	h.mu.Lock()
	d, ok := h.prompts[pid]
	h.mu.Unlock()
	if !ok {
		return false
	}
	return d.Complete(resp)
}

// OnPopUpAvailable implements popup.Notifier
func (h *Handler) OnPopUpAvailable(sid types.SessionID) {
	h.broadcast(EventPopupAvailable, sid, nil)
}

// OnPopUpsCleared implements popup.Notifier
func (h *Handler) OnPopUpsCleared(sid types.SessionID) {
	h.broadcast(EventPopupsCleared, sid, nil)
}

// FocusedWindow implements intercept.WindowProvider. Without connected
// clients there is no window to show a dialog in.
func (h *Handler) FocusedWindow() intercept.Window {
	if h.Clients() == 0 {
		return nil
	}
	return window{h: h}
}

type window struct {
	h *Handler
}

func (w window) ShowDRMDialog() {
	sid := types.NoSession
	w.h.mu.Lock()
	reg := w.h.registry
	w.h.mu.Unlock()
	if reg != nil {
		sid = reg.CurrentSessionID()
	}
	w.h.broadcast(EventDRMDialog, sid, nil)
}
