package session

import (
	"context"
	"slices"

	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sessionhub/internal/types"
)

// Stack pushes the current session onto the stack of its mode and makes
// id current. Unknown ids and the current id are ignored. It reports
// whether id became current.
func (r *Registry) Stack(id types.SessionID) bool {
	r.mu.Lock()
	ok := r.stackLocked(id)
	r.mu.Unlock()
	r.drain()
	return ok
}

func (r *Registry) stackLocked(id types.SessionID) bool {
	if _, ok := r.sessions[id]; !ok || id == r.current {
		r.logger.Debug("stack ignored", logging.Session(id))
		return false
	}
	if cur, ok := r.sessions[r.current]; ok {
		s := r.stacks.of(cur.settings.PrivateMode)
		*s = append(*s, cur.id)
		r.publishStackDepthLocked()
	}
	r.setCurrentLocked(id)
	return true
}

// Unstack closes the current session and returns to the session below it
// on the current mode's stack.
func (r *Registry) Unstack() error {
	r.mu.Lock()
	err := r.unstackLocked()
	r.mu.Unlock()
	r.drain()
	return err
}

func (r *Registry) unstackLocked() error {
	s := r.stacks.of(r.currentPrivateLocked())
	if len(*s) == 0 {
		return ErrEmptyStack
	}
	top := (*s)[len(*s)-1]
	*s = (*s)[:len(*s)-1]
	r.publishStackDepthLocked()

	closing := r.current
	r.setCurrentLocked(top)
	r.removeLocked(closing)
	return nil
}

// CanUnstack reports whether the current mode's stack is non-empty
func (r *Registry) CanUnstack() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.canUnstackLocked()
}

func (r *Registry) canUnstackLocked() bool {
	return len(*r.stacks.of(r.currentPrivateLocked())) > 0
}

// IsCurrentSessionPrivate reports the private flag of the current session
func (r *Registry) IsCurrentSessionPrivate() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentPrivateLocked()
}

func (r *Registry) currentPrivateLocked() bool {
	cur, ok := r.sessions[r.current]
	return ok && cur.settings.PrivateMode
}

// SwitchPrivateMode toggles between the normal session and the private
// one. The first switch into private mode creates the private session and
// loads the private landing page; later switches resume it.
func (r *Registry) SwitchPrivateMode(ctx context.Context) error {
	r.mu.Lock()
	cur, ok := r.sessions[r.current]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	if cur.settings.PrivateMode || r.previous.Valid() {
		if !r.previous.Valid() {
			r.logger.Warn("private session has nothing to return to", logging.Session(cur.id))
			r.mu.Unlock()
			return nil
		}
		next := r.previous
		r.previous = r.current
		r.setCurrentLocked(next)
		r.mu.Unlock()
		r.drain()
		return nil
	}
	from := cur.id
	r.mu.Unlock()

	id, err := r.CreateDefaultSession(ctx, true)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.current != from || r.previous.Valid() {
		// someone else switched while the handle was being created
		r.removeLocked(id)
		r.mu.Unlock()
		r.drain()
		return nil
	}
	r.previous = from
	r.setCurrentLocked(id)
	h := r.sessions[id].handle
	landing := r.defaults.PrivateLanding()
	if landing != "" {
		r.enqueueLocked(func() { h.LoadURI(landing) })
	}
	r.mu.Unlock()
	r.drain()
	return nil
}

// ExitPrivateMode returns to the normal session and destroys the private
// session together with every stacked private session.
func (r *Registry) ExitPrivateMode() {
	r.mu.Lock()
	if !r.currentPrivateLocked() {
		r.mu.Unlock()
		return
	}

	private := r.current
	r.setCurrentLocked(r.previous)
	r.previous = types.NoSession
	r.removeLocked(private)
	for _, id := range slices.Clone(r.stacks.private) {
		r.removeLocked(id)
	}
	r.stacks.private = nil
	r.publishStackDepthLocked()
	r.mu.Unlock()
	r.drain()
}
