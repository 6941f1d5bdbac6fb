package session

import (
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/sessionhub/internal/domain/intercept"
	"github.com/GriffinCanCode/sessionhub/internal/domain/listener"
	"github.com/GriffinCanCode/sessionhub/internal/engine"
	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sessionhub/internal/types"
)

// SetCurrentSession makes id the current session. An unknown id leaves
// the registry without a current session; listeners are still told and
// receive an empty state dump.
//
// The pointer changes before SetCurrentSession returns. The engine
// commands and listener notifications of the switch run before it returns
// only when no other goroutine is draining the effect queue; otherwise
// they run on that goroutine, after the effects queued ahead of them.
func (r *Registry) SetCurrentSession(id types.SessionID) {
	r.mu.Lock()
	r.setCurrentLocked(id)
	r.mu.Unlock()
	r.drain()
}

func (r *Registry) setCurrentLocked(id types.SessionID) {
	old := r.current
	if prev, ok := r.sessions[old]; ok {
		h := prev.handle
		r.enqueueLocked(func() { h.SetActive(false) })
	}

	rec, ok := r.sessions[id]
	if !ok {
		id = types.NoSession
	}
	r.current = id

	if ok && !rec.opened {
		rec.opened = true
		h := rec.handle
		r.enqueueLocked(func() {
			if err := h.Open(r.runtime); err != nil {
				r.logger.Error("failed to open engine handle", logging.Session(id), zap.Error(err))
			}
		})
	}

	r.enqueueLocked(
		func() {
			r.hub.NotifySessionChange(func(l listener.SessionChange) { l.OnCurrentSessionChange(old, id) })
		},
		func() { r.dumpAll(id) },
	)

	if ok {
		h := rec.handle
		r.enqueueLocked(func() { h.SetActive(true) })
	}

	r.metrics.CurrentSwitched()
	r.logger.Debug("current session changed", logging.Sessions(old, id))
}

// dumpState is what a state dump replays
type dumpState struct {
	nav      types.NavState
	security *types.SecurityInfo
}

func (r *Registry) snapshotForDump(id types.SessionID) dumpState {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.sessions[id]
	if !ok {
		return dumpState{}
	}
	info := rec.info(r.current)
	return dumpState{nav: info.Nav, security: info.Security}
}

// dumpAll replays the session's last known state to every navigation,
// progress and content listener. Runs as an effect, so it reads the
// record as of the moment it runs.
func (r *Registry) dumpAll(id types.SessionID) {
	st := r.snapshotForDump(id)
	r.hub.NotifyNavigation(func(l listener.Navigation) { dumpNavigation(l, id, st) })
	r.hub.NotifyProgress(func(l listener.Progress) { dumpProgress(l, id, st) })
	r.hub.NotifyContent(func(l listener.Content) { dumpContent(l, id, st) })
}

func dumpNavigation(l listener.Navigation, id types.SessionID, st dumpState) {
	l.OnCanGoBack(id, st.nav.CanGoBack)
	l.OnCanGoForward(id, st.nav.CanGoForward)
	l.OnLocationChange(id, st.nav.URI)
}

func dumpProgress(l listener.Progress, id types.SessionID, st dumpState) {
	if st.nav.IsLoading {
		l.OnPageStart(id, st.nav.URI)
	} else {
		l.OnPageStop(id, true)
	}
	if st.security != nil {
		l.OnSecurityChange(id, *st.security)
	}
}

func dumpContent(l listener.Content, id types.SessionID, st dumpState) {
	l.OnTitleChange(id, st.nav.Title)
}

// dumpTo queues a dump of the current session to a single new listener
func (r *Registry) dumpTo(category string, fn func(types.SessionID, dumpState)) {
	r.mu.Lock()
	r.enqueueLocked(func() {
		r.mu.Lock()
		id := r.current
		r.mu.Unlock()
		st := r.snapshotForDump(id)
		r.hub.Call(category, func() { fn(id, st) })
	})
	r.mu.Unlock()
	r.drain()
}

// AddNavigationListener adds l and replays the current state to it
func (r *Registry) AddNavigationListener(l listener.Navigation) {
	if r.hub.AddNavigation(l) {
		r.dumpTo(listener.CategoryNavigation, func(id types.SessionID, st dumpState) { dumpNavigation(l, id, st) })
	}
}

// RemoveNavigationListener removes l
func (r *Registry) RemoveNavigationListener(l listener.Navigation) { r.hub.RemoveNavigation(l) }

// AddProgressListener adds l and replays the current state to it
func (r *Registry) AddProgressListener(l listener.Progress) {
	if r.hub.AddProgress(l) {
		r.dumpTo(listener.CategoryProgress, func(id types.SessionID, st dumpState) { dumpProgress(l, id, st) })
	}
}

// RemoveProgressListener removes l
func (r *Registry) RemoveProgressListener(l listener.Progress) { r.hub.RemoveProgress(l) }

// AddContentListener adds l and replays the current title to it
func (r *Registry) AddContentListener(l listener.Content) {
	if r.hub.AddContent(l) {
		r.dumpTo(listener.CategoryContent, func(id types.SessionID, st dumpState) { dumpContent(l, id, st) })
	}
}

// RemoveContentListener removes l
func (r *Registry) RemoveContentListener(l listener.Content) { r.hub.RemoveContent(l) }

func (r *Registry) AddTextInputListener(l listener.TextInput) { r.hub.AddTextInput(l) }
func (r *Registry) RemoveTextInputListener(l listener.TextInput) { r.hub.RemoveTextInput(l) }

func (r *Registry) AddPromptListener(l listener.Prompt) { r.hub.AddPrompt(l) }
func (r *Registry) RemovePromptListener(l listener.Prompt) { r.hub.RemovePrompt(l) }

func (r *Registry) AddSessionChangeListener(l listener.SessionChange) { r.hub.AddSessionChange(l) }
func (r *Registry) RemoveSessionChangeListener(l listener.SessionChange) {
	r.hub.RemoveSessionChange(l)
}

func (r *Registry) AddVideoAvailabilityListener(l listener.VideoAvailability) {
	r.hub.AddVideoAvailability(l)
}
func (r *Registry) RemoveVideoAvailabilityListener(l listener.VideoAvailability) {
	r.hub.RemoveVideoAvailability(l)
}

// CurrentSessionID returns the current session or NoSession
func (r *Registry) CurrentSessionID() types.SessionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// CurrentSession returns a copy of the current session's record
func (r *Registry) CurrentSession() (types.SessionInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.sessions[r.current]
	if !ok {
		return types.SessionInfo{}, false
	}
	return rec.info(r.current), true
}

func (r *Registry) currentNav() types.NavState {
	info, _ := r.CurrentSession()
	return info.Nav
}

func (r *Registry) CurrentURI() string   { return r.currentNav().URI }
func (r *Registry) PreviousURI() string  { return r.currentNav().PreviousURI }
func (r *Registry) CurrentTitle() string { return r.currentNav().Title }
func (r *Registry) IsInFullScreen() bool { return r.currentNav().FullScreen }

// CanGoBack reports whether GoBack would do anything: either the current
// session has history or there is a stacked session to return to.
func (r *Registry) CanGoBack() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.sessions[r.current]
	if !ok {
		return false
	}
	return rec.nav.CanGoBack || r.canUnstackLocked()
}

// IsInputActive reports whether the soft keyboard is up for a session
func (r *Registry) IsInputActive(id types.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.sessions[id]
	return ok && rec.nav.IsInputActive
}

// FullScreenVideo returns the fullscreen media element of the current session
func (r *Registry) FullScreenVideo() (types.Media, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.sessions[r.current]
	if !ok {
		return types.Media{}, false
	}
	for _, m := range rec.media {
		if m.Fullscreen {
			return m, true
		}
	}
	return types.Media{}, false
}

// withCurrent queues fn against the current handle. No current session
// makes it a no-op.
func (r *Registry) withCurrent(fn func(rec *record, h engine.Handle)) {
	r.mu.Lock()
	rec, ok := r.sessions[r.current]
	if ok {
		fn(rec, rec.handle)
	}
	r.mu.Unlock()
	r.drain()
}

// LoadURI loads uri into the current session; empty means the home page
func (r *Registry) LoadURI(uri string) {
	if uri == "" {
		uri = r.HomeURI()
	}
	r.withCurrent(func(_ *record, h engine.Handle) {
		r.enqueueLocked(func() { h.LoadURI(uri) })
	})
}

// GoBack leaves fullscreen if needed, otherwise moves back in history or,
// with no history left, returns to the stacked parent session.
func (r *Registry) GoBack() {
	r.mu.Lock()
	rec, ok := r.sessions[r.current]
	switch {
	case !ok:
	case rec.nav.FullScreen:
		h := rec.handle
		r.enqueueLocked(h.ExitFullScreen)
	case rec.nav.CanGoBack:
		h := rec.handle
		r.enqueueLocked(h.GoBack)
	case r.canUnstackLocked():
		r.unstackLocked()
	}
	r.mu.Unlock()
	r.drain()
}

func (r *Registry) GoForward() {
	r.withCurrent(func(_ *record, h engine.Handle) { r.enqueueLocked(h.GoForward) })
}

func (r *Registry) Reload() {
	r.withCurrent(func(_ *record, h engine.Handle) { r.enqueueLocked(h.Reload) })
}

func (r *Registry) Stop() {
	r.withCurrent(func(_ *record, h engine.Handle) { r.enqueueLocked(h.Stop) })
}

func (r *Registry) ExitFullScreen() {
	r.withCurrent(func(_ *record, h engine.Handle) { r.enqueueLocked(h.ExitFullScreen) })
}

// SetActive activates or deactivates the current handle
func (r *Registry) SetActive(active bool) {
	r.withCurrent(func(_ *record, h engine.Handle) {
		r.enqueueLocked(func() { h.SetActive(active) })
	})
}

// HomeURI is the configured homepage, tagged with the region when known
func (r *Registry) HomeURI() string {
	return homeURI(r.defaults.Homepage(), r.defaults.Region())
}

func homeURI(homepage, region string) string {
	if region == "" {
		return homepage
	}
	u, err := url.Parse(homepage)
	if err != nil {
		return homepage
	}
	q := u.Query()
	q.Set("region", region)
	u.RawQuery = q.Encode()
	return u.String()
}

func isHomeURI(uri, homepage string) bool {
	return homepage != "" && strings.HasPrefix(strings.ToLower(uri), strings.ToLower(homepage))
}

// SetRegion stores the region and, when the current session shows the
// home page, reloads it with the region applied.
func (r *Registry) SetRegion(region string) {
	region = strings.ToLower(region)
	r.defaults.SetRegion(region)
	home := r.HomeURI()
	homepage := r.defaults.Homepage()

	r.withCurrent(func(rec *record, h engine.Handle) {
		if rec.nav.URI == "" || !isHomeURI(rec.nav.URI, homepage) || rec.nav.URI == home {
			return
		}
		r.enqueueLocked(func() { r.replaceLocation(h, home) })
	})
}

// replaceLocation navigates page content without adding a history entry
func (r *Registry) replaceLocation(h engine.Handle, uri string) {
	if err := h.InjectScript(intercept.ReplaceLocation(uri)); err != nil {
		r.logger.Debug("location replace failed", logging.URI(uri), zap.Error(err))
	}
}
