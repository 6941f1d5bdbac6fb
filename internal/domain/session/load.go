package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/sessionhub/internal/domain/intercept"
	"github.com/GriffinCanCode/sessionhub/internal/domain/listener"
	"github.com/GriffinCanCode/sessionhub/internal/engine"
	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sessionhub/internal/types"
)

var _ intercept.Actions = (*Registry)(nil)

// OnLoadRequest decides whether a session may load a URI. Interceptors
// see the request first; a request they do not claim is put to the
// navigation listeners when the session is current. Any listener allowing
// it is enough, and with no listeners it is allowed. Loads in background
// sessions are allowed.
func (r *Registry) OnLoadRequest(h engine.Handle, req types.LoadRequest) *types.Deferred[types.AllowOrDeny] {
	r.mu.Lock()
	rec, current := r.lookupLocked(h, "load_request")
	if rec == nil {
		r.mu.Unlock()
		return types.Resolved(types.Deny)
	}
	ireq := intercept.Request{
		SessionID: rec.id,
		Current:   current,
		Private:   rec.settings.PrivateMode,
		Load:      req,
	}
	r.mu.Unlock()

	if v, name, handled := r.chain.Run(ireq, r); handled {
		r.logger.Debug("load request intercepted",
			logging.Session(ireq.SessionID),
			logging.URI(req.URI),
			zap.String("interceptor", name),
			zap.Stringer("verdict", v),
		)
		return types.Resolved(v)
	}

	if !current {
		return types.Resolved(types.Allow)
	}
	return r.vote(ireq.SessionID, req)
}

// vote collects the navigation listeners' answers. A nil answer counts
// as allow; a listener that panics counts as deny.
func (r *Registry) vote(id types.SessionID, req types.LoadRequest) *types.Deferred[types.AllowOrDeny] {
	navs := r.hub.Navigations()
	if len(navs) == 0 {
		return types.Resolved(types.Allow)
	}

	result := types.NewDeferred[types.AllowOrDeny]()
	var (
		mu        sync.Mutex
		remaining = len(navs)
		allowed   bool
	)
	settle := func(v types.AllowOrDeny) {
		mu.Lock()
		remaining--
		if v == types.Allow {
			allowed = true
		}
		done, ok := remaining == 0 || allowed, allowed
		mu.Unlock()
		if done {
			if ok {
				result.Complete(types.Allow)
			} else {
				result.Complete(types.Deny)
			}
		}
	}

	for _, l := range navs {
		var answer *types.Deferred[types.AllowOrDeny]
		ok := r.hub.Call(listener.CategoryNavigation, func() { answer = l.OnLoadRequest(id, req) })
		switch {
		case !ok:
			settle(types.Deny)
		case answer == nil:
			settle(types.Allow)
		default:
			answer.Then(settle)
		}
	}
	return result
}

// Redirect implements intercept.Actions
func (r *Registry) Redirect(id types.SessionID, uri string) {
	r.withSession(id, func(h engine.Handle) { h.LoadURI(uri) })
}

// InjectScript implements intercept.Actions
func (r *Registry) InjectScript(id types.SessionID, script string) {
	r.withSession(id, func(h engine.Handle) {
		if err := h.InjectScript(script); err != nil {
			r.logger.Debug("script injection failed", logging.Session(id), zap.Error(err))
		}
	})
}

// SetUserAgentOverride implements intercept.Actions
func (r *Registry) SetUserAgentOverride(id types.SessionID, ua string) {
	r.withSession(id, func(h engine.Handle) { h.SetUserAgentOverride(ua) })
}

// TogglePrivateMode implements intercept.Actions
func (r *Registry) TogglePrivateMode() {
	if err := r.SwitchPrivateMode(context.Background()); err != nil {
		r.logger.Warn("private mode switch failed", zap.Error(err))
	}
}

// withSession queues fn against the handle of id
func (r *Registry) withSession(id types.SessionID, fn func(h engine.Handle)) {
	r.mu.Lock()
	if rec, ok := r.sessions[id]; ok {
		h := rec.handle
		r.enqueueLocked(func() { fn(h) })
	}
	r.mu.Unlock()
	r.drain()
}
