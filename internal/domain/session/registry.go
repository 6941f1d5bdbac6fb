package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/sessionhub/internal/domain/intercept"
	"github.com/GriffinCanCode/sessionhub/internal/domain/listener"
	"github.com/GriffinCanCode/sessionhub/internal/domain/popup"
	"github.com/GriffinCanCode/sessionhub/internal/engine"
	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sessionhub/internal/types"
)

// Defaults is the read side of the settings store the registry needs
type Defaults interface {
	SessionSettings(private bool) types.Settings
	Homepage() string
	PrivateLanding() string
	Region() string
	SetRegion(region string)
}

// record is the registry's view of one session
type record struct {
	id        types.SessionID
	handle    engine.Handle
	settings  types.Settings
	nav       types.NavState
	security  *types.SecurityInfo
	media     []types.Media
	state     []byte
	opened    bool
	createdAt time.Time
}

func (r *record) info(current types.SessionID) types.SessionInfo {
	info := types.SessionInfo{
		ID:       r.id,
		Settings: r.settings,
		Nav:      r.nav,
		Media:    slices.Clone(r.media),
		Open:     r.opened,
		Current:  r.id == current,
		HasState: len(r.state) > 0,
	}
	if info.Media == nil {
		info.Media = []types.Media{}
	}
	if r.security != nil {
		sec := *r.security
		info.Security = &sec
	}
	return info
}

type stacks struct {
	normal  []types.SessionID
	private []types.SessionID
}

func (s *stacks) of(private bool) *[]types.SessionID {
	if private {
		return &s.private
	}
	return &s.normal
}

func (s *stacks) purge(id types.SessionID) {
	s.normal = slices.DeleteFunc(s.normal, func(v types.SessionID) bool { return v == id })
	s.private = slices.DeleteFunc(s.private, func(v types.SessionID) bool { return v == id })
}

// Registry owns every session, the current-session pointer, the two
// session stacks and the private-mode slot. It is the single delegate of
// every engine handle it creates.
//
// All state lives under one mutex. Engine commands and listener
// notifications are queued while locked and run in order without it.
type Registry struct {
	mu       sync.Mutex
	nextID   types.SessionID
	sessions map[types.SessionID]*record
	byHandle map[engine.Handle]types.SessionID
	order    []types.SessionID
	current  types.SessionID
	previous types.SessionID
	stacks   stacks

	effects  []func()
	draining bool

	runtime  engine.Runtime
	defaults Defaults
	hub      *listener.Hub
	chain    *intercept.Chain
	popups   *popup.Queue
	pages    *intercept.ErrorPages
	logger   *logging.Logger
	metrics  *monitoring.Metrics
}

// Option configures a Registry
type Option func(*Registry)

// WithLogger sets the logger
func WithLogger(l *logging.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithMetrics sets the metrics
func WithMetrics(m *monitoring.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithInterceptors replaces the default load-request interceptors
func WithInterceptors(c *intercept.Chain) Option {
	return func(r *Registry) { r.chain = c }
}

// WithPopups routes pop-up prompts to q. Without a queue every pop-up
// is denied.
func WithPopups(q *popup.Queue) Option {
	return func(r *Registry) { r.popups = q }
}

// WithErrorPages sets the renderer used for load errors
func WithErrorPages(p *intercept.ErrorPages) Option {
	return func(r *Registry) { r.pages = p }
}

// WithHub shares an existing listener hub
func WithHub(h *listener.Hub) Option {
	return func(r *Registry) { r.hub = h }
}

// New creates an empty registry
func New(rt engine.Runtime, defaults Defaults, opts ...Option) *Registry {
	r := &Registry{
		nextID:   1,
		sessions: make(map[types.SessionID]*record),
		byHandle: make(map[engine.Handle]types.SessionID),
		current:  types.NoSession,
		previous: types.NoSession,
		runtime:  rt,
		defaults: defaults,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrNop(r.logger).Named("sessions")
	if r.hub == nil {
		r.hub = listener.NewHub(r.logger, r.metrics)
	}
	if r.chain == nil {
		r.chain = intercept.NewChain(r.metrics,
			intercept.ErrorBridge{},
			intercept.NewRewrites(),
			intercept.PrivateBrowsing{},
		)
	}
	if r.pages == nil {
		r.pages = intercept.NewErrorPages()
	}
	return r
}

// Hub returns the listener hub
func (r *Registry) Hub() *listener.Hub {
	return r.hub
}

// CreateSession creates a session with the given settings. The session is
// not current and its handle is opened on first SetCurrentSession.
func (r *Registry) CreateSession(ctx context.Context, settings types.Settings) (types.SessionID, error) {
	h, err := r.createHandle(ctx, settings)
	if err != nil {
		return types.NoSession, err
	}

	r.mu.Lock()
	id := r.registerLocked(h, settings)
	r.mu.Unlock()
	r.drain()

	return id, nil
}

// CreateDefaultSession creates a session from the settings store defaults
func (r *Registry) CreateDefaultSession(ctx context.Context, private bool) (types.SessionID, error) {
	return r.CreateSession(ctx, r.defaults.SessionSettings(private))
}

func (r *Registry) createHandle(ctx context.Context, settings types.Settings) (engine.Handle, error) {
	h, err := r.runtime.CreateHandle(ctx, settings)
	if err == nil && h == nil {
		err = errors.New("runtime returned no handle")
	}
	if err != nil {
		if !errors.Is(err, engine.ErrEngineUnavailable) {
			err = fmt.Errorf("%w: %w", engine.ErrEngineUnavailable, err)
		}
		r.logger.Warn("engine handle creation failed", zap.Error(err))
		return nil, fmt.Errorf("create session: %w", err)
	}
	h.SetDelegate(r)
	return h, nil
}

func (r *Registry) registerLocked(h engine.Handle, settings types.Settings) types.SessionID {
	id := r.nextID
	r.nextID++

	r.sessions[id] = &record{
		id:        id,
		handle:    h,
		settings:  settings,
		createdAt: time.Now(),
	}
	r.byHandle[h] = id
	r.order = append(r.order, id)

	r.metrics.SessionCreated(settings.PrivateMode)
	r.metrics.SetSessionsActive(len(r.sessions))
	r.logger.Debug("session created", logging.Session(id), zap.Bool("private", settings.PrivateMode))

	r.enqueueLocked(func() {
		r.hub.NotifySessionChange(func(l listener.SessionChange) { l.OnNewSession(id) })
	})
	return id
}

// RemoveSession destroys a session. Unknown ids are ignored. Removing the
// current session leaves the registry without a current session.
func (r *Registry) RemoveSession(id types.SessionID) {
	r.mu.Lock()
	r.removeLocked(id)
	r.mu.Unlock()
	r.drain()
}

func (r *Registry) removeLocked(id types.SessionID) bool {
	rec, ok := r.sessions[id]
	if !ok {
		return false
	}

	delete(r.sessions, id)
	delete(r.byHandle, rec.handle)
	r.order = slices.DeleteFunc(r.order, func(v types.SessionID) bool { return v == id })
	r.stacks.purge(id)
	r.publishStackDepthLocked()
	if r.previous == id {
		r.previous = types.NoSession
	}

	h := rec.handle
	r.enqueueLocked(
		func() { h.SetDelegate(nil) },
		func() {
			r.hub.NotifySessionChange(func(l listener.SessionChange) { l.OnRemoveSession(id) })
		},
	)

	if r.current == id {
		r.logger.Warn("removed the current session", logging.Session(id))
		r.current = types.NoSession
		r.enqueueLocked(func() {
			r.hub.NotifySessionChange(func(l listener.SessionChange) {
				l.OnCurrentSessionChange(id, types.NoSession)
			})
		})
	}

	r.enqueueLocked(func() {
		if r.popups != nil {
			r.popups.Remove(id)
		}
		h.SetActive(false)
		h.Stop()
		h.Close()
	})

	r.metrics.SessionRemoved()
	r.metrics.SetSessionsActive(len(r.sessions))
	r.logger.Debug("session removed", logging.Session(id))
	return true
}

// Close removes every session and cancels pending pop-ups
func (r *Registry) Close() {
	r.mu.Lock()
	if cur := r.current; cur.Valid() {
		r.setCurrentLocked(types.NoSession)
	}
	for _, id := range slices.Clone(r.order) {
		r.removeLocked(id)
	}
	r.previous = types.NoSession
	r.mu.Unlock()
	r.drain()

	if r.popups != nil {
		r.popups.Close()
	}
}

// Handle returns the engine handle of a session
func (r *Registry) Handle(id types.SessionID) (engine.Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return rec.handle, true
}

// SessionIDOf is the reverse lookup of Handle
func (r *Registry) SessionIDOf(h engine.Handle) (types.SessionID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byHandle[h]
	return id, ok
}

// Sessions lists every session id in creation order
func (r *Registry) Sessions() []types.SessionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

// SessionsByPrivateMode lists the sessions whose private flag equals private
func (r *Registry) SessionsByPrivateMode(private bool) []types.SessionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]types.SessionID, 0, len(r.order))
	for _, id := range r.order {
		if r.sessions[id].settings.PrivateMode == private {
			ids = append(ids, id)
		}
	}
	return ids
}

// Session returns a copy of one session's record
func (r *Registry) Session(id types.SessionID) (types.SessionInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.sessions[id]
	if !ok {
		return types.SessionInfo{}, false
	}
	return rec.info(r.current), true
}

// Stats summarizes the registry
func (r *Registry) Stats() types.Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := types.Stats{
		TotalSessions:  len(r.sessions),
		NormalStack:    len(r.stacks.normal),
		PrivateStack:   len(r.stacks.private),
		CurrentSession: r.current,
	}
	for _, rec := range r.sessions {
		if rec.settings.PrivateMode {
			s.PrivateSessions++
		}
	}
	return s
}

func (r *Registry) publishStackDepthLocked() {
	r.metrics.SetStackDepth(false, len(r.stacks.normal))
	r.metrics.SetStackDepth(true, len(r.stacks.private))
}

// lookupLocked resolves an engine handle for a callback. Unknown handles
// belong to removed sessions; their events are dropped.
func (r *Registry) lookupLocked(h engine.Handle, event string) (*record, bool) {
	id, ok := r.byHandle[h]
	if !ok {
		r.logger.Debug("event from unknown session dropped", zap.String("event", event))
		return nil, false
	}
	return r.sessions[id], id == r.current
}
