package popup

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sessionhub/internal/shared/id"
	"github.com/GriffinCanCode/sessionhub/internal/types"
)

// DefaultDecisionDelay is how long a remembered decision waits before it
// is applied, so a page that opens and immediately navigates away does
// not get a pop-up.
const DefaultDecisionDelay = 500 * time.Millisecond

// Notifier is the UI side of the queue
type Notifier interface {
	// OnPopUpAvailable fires when a session's queue goes from empty to non-empty
	OnPopUpAvailable(id types.SessionID)
	// OnPopUpsCleared fires when a non-empty queue is emptied
	OnPopUpsCleared(id types.SessionID)
}

// DecisionStore holds the pop-up preferences
type DecisionStore interface {
	PopupBlocking() bool
	PopupDecision(origin string) (allowed bool, known bool)
	RememberPopupDecision(origin string, allowed bool)
}

type entry struct {
	req    types.PopupRequest
	result *types.Deferred[types.AllowOrDeny]
}

type delayed struct {
	timer  *time.Timer
	result *types.Deferred[types.AllowOrDeny]
}

// Queue holds pop-up requests per session until the user decides.
// Every request resolves exactly once; cancelled requests resolve Deny.
type Queue struct {
	mu      sync.Mutex
	pending map[types.SessionID][]entry
	timers  map[types.SessionID]map[*delayed]struct{}

	store    DecisionStore
	notifier Notifier
	delay    time.Duration
	logger   *logging.Logger
	metrics  *monitoring.Metrics
}

// Option configures a Queue
type Option func(*Queue)

// WithDecisionDelay overrides DefaultDecisionDelay
func WithDecisionDelay(d time.Duration) Option {
	return func(q *Queue) { q.delay = d }
}

// WithLogger sets the logger
func WithLogger(l *logging.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithMetrics sets the metrics
func WithMetrics(m *monitoring.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

// NewQueue creates a queue. notifier may be nil.
func NewQueue(store DecisionStore, notifier Notifier, opts ...Option) *Queue {
	q := &Queue{
		pending:  make(map[types.SessionID][]entry),
		timers:   make(map[types.SessionID]map[*delayed]struct{}),
		store:    store,
		notifier: notifier,
		delay:    DefaultDecisionDelay,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = logging.OrNop(q.logger).Named("popups")
	return q
}

// SetNotifier replaces the notifier
func (q *Queue) SetNotifier(n Notifier) {
	q.mu.Lock()
	q.notifier = n
	q.mu.Unlock()
}

// Request asks whether page content of session sid, currently showing
// pageURI, may open targetURI in a pop-up.
func (q *Queue) Request(sid types.SessionID, pageURI, targetURI string) *types.Deferred[types.AllowOrDeny] {
	if !q.store.PopupBlocking() {
		q.metrics.PopupResolved("unblocked")
		return types.Resolved(types.Allow)
	}

	origin := OriginOf(pageURI)
	if allowed, known := q.store.PopupDecision(origin); known {
		return q.delayed(sid, verdict(allowed))
	}

	result := types.NewDeferred[types.AllowOrDeny]()
	req := types.PopupRequest{
		ID:        id.NewPopupID().String(),
		SessionID: sid,
		Origin:    origin,
		TargetURI: targetURI,
		CreatedAt: time.Now(),
	}

	q.mu.Lock()
	first := len(q.pending[sid]) == 0
	q.pending[sid] = append(q.pending[sid], entry{req: req, result: result})
	notifier := q.notifier
	q.mu.Unlock()

	q.metrics.PopupQueued()
	q.logger.Debug("pop-up queued", logging.Session(sid), zap.String("origin", origin), zap.String("target", targetURI))

	if first && notifier != nil {
		notifier.OnPopUpAvailable(sid)
	}
	return result
}

func (q *Queue) delayed(sid types.SessionID, v types.AllowOrDeny) *types.Deferred[types.AllowOrDeny] {
	result := types.NewDeferred[types.AllowOrDeny]()
	d := &delayed{result: result}

	q.mu.Lock()
	set := q.timers[sid]
	if set == nil {
		set = make(map[*delayed]struct{})
		q.timers[sid] = set
	}
	set[d] = struct{}{}
	d.timer = time.AfterFunc(q.delay, func() {
		q.mu.Lock()
		if s := q.timers[sid]; s != nil {
			delete(s, d)
			if len(s) == 0 {
				delete(q.timers, sid)
			}
		}
		q.mu.Unlock()
		if result.Complete(v) {
			q.metrics.PopupResolved("remembered_" + v.String())
		}
	})
	q.mu.Unlock()

	return result
}

// ResolvePending answers every queued request of the session, optionally
// remembering the decision per origin. It returns how many were resolved.
func (q *Queue) ResolvePending(sid types.SessionID, allowed, remember bool) int {
	q.mu.Lock()
	entries := q.pending[sid]
	delete(q.pending, sid)
	notifier := q.notifier
	q.mu.Unlock()

	if len(entries) == 0 {
		return 0
	}

	v := verdict(allowed)
	remembered := make(map[string]bool)
	for _, e := range entries {
		if remember && !remembered[e.req.Origin] {
			remembered[e.req.Origin] = true
			q.store.RememberPopupDecision(e.req.Origin, allowed)
		}
		if e.result.Complete(v) {
			q.metrics.PopupResolved(v.String())
		}
	}

	if notifier != nil {
		notifier.OnPopUpsCleared(sid)
	}
	return len(entries)
}

// Purge cancels everything queued or delayed for the session. Cancelled
// requests resolve Deny.
func (q *Queue) Purge(sid types.SessionID) int {
	q.mu.Lock()
	entries := q.pending[sid]
	delete(q.pending, sid)
	timers := q.timers[sid]
	delete(q.timers, sid)
	notifier := q.notifier
	q.mu.Unlock()

	for d := range timers {
		d.timer.Stop()
		if d.result.Complete(types.Deny) {
			q.metrics.PopupResolved("cancelled")
		}
	}
	for _, e := range entries {
		if e.result.Complete(types.Deny) {
			q.metrics.PopupResolved("cancelled")
		}
	}

	if len(entries) > 0 && notifier != nil {
		notifier.OnPopUpsCleared(sid)
	}
	return len(entries) + len(timers)
}

// Remove drops the session entirely; used when the session is destroyed
func (q *Queue) Remove(sid types.SessionID) {
	if n := q.Purge(sid); n > 0 {
		q.logger.Debug("pop-ups dropped with session", logging.Session(sid), zap.Int("count", n))
	}
}

// Close cancels every pending and delayed request
func (q *Queue) Close() {
	q.mu.Lock()
	ids := make(map[types.SessionID]struct{})
	for sid := range q.pending {
		ids[sid] = struct{}{}
	}
	for sid := range q.timers {
		ids[sid] = struct{}{}
	}
	q.mu.Unlock()

	for sid := range ids {
		q.Purge(sid)
	}
}

// Pending returns a copy of the queued requests of a session
func (q *Queue) Pending(sid types.SessionID) []types.PopupRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries := q.pending[sid]
	out := make([]types.PopupRequest, len(entries))
	for i, e := range entries {
		out[i] = e.req
	}
	return out
}

// HasPending reports whether the session has queued requests
func (q *Queue) HasPending(sid types.SessionID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending[sid]) > 0
}

// OriginOf is the lower-case host of uri, or the lower-cased uri itself
// when it has no host.
func OriginOf(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Hostname() == "" {
		return strings.ToLower(uri)
	}
	return strings.ToLower(u.Hostname())
}

func verdict(allowed bool) types.AllowOrDeny {
	if allowed {
		return types.Allow
	}
	return types.Deny
}
