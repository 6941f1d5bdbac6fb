package memory

import (
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/GriffinCanCode/sessionhub/internal/engine"
	"github.com/GriffinCanCode/sessionhub/internal/types"
)

// Hosts under this TLD never resolve, which exercises the load error path.
const unreachableTLD = ".invalid"

// Handle is one in-memory browsing context. Delegate callbacks are made
// without holding the handle lock.
type Handle struct {
	mu       sync.Mutex
	settings types.Settings
	delegate engine.Delegate

	open   bool
	closed bool
	active bool
	closes int
	stops  int

	entries    []historyEntry
	index      int
	loading    bool
	fullScreen bool
	errorPage  string

	uaMode     types.UserAgentMode
	uaOverride string
	scripts    []string
	console    []string

	serializeErr error
}

var _ engine.Handle = (*Handle)(nil)

func newHandle(settings types.Settings) *Handle {
	return &Handle{
		settings: settings,
		index:    -1,
		uaMode:   settings.UserAgentMode,
	}
}

// Open implements engine.Handle
func (h *Handle) Open(rt engine.Runtime) error {
	if rt == nil {
		return errors.New("open: nil runtime")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return engine.ErrNotOpen
	}
	h.open = true
	return nil
}

// IsOpen implements engine.Handle
func (h *Handle) IsOpen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.open
}

// Close implements engine.Handle
func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closes++
	h.closed = true
	h.open = false
	h.active = false
}

// Stop implements engine.Handle
func (h *Handle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stops++
	h.loading = false
}

// SetActive implements engine.Handle
func (h *Handle) SetActive(active bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.active = active
	}
}

// SetDelegate implements engine.Handle
func (h *Handle) SetDelegate(d engine.Delegate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.delegate = d
}

// SetUserAgentMode implements engine.Handle
func (h *Handle) SetUserAgentMode(mode types.UserAgentMode) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.uaMode = mode
}

// SetUserAgentOverride implements engine.Handle
func (h *Handle) SetUserAgentOverride(ua string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.uaOverride = ua
}

// LoadURI asks the delegate for permission and navigates when allowed.
// Loads on a handle that is not open are ignored.
func (h *Handle) LoadURI(uri string) {
	h.mu.Lock()
	if !h.open {
		h.mu.Unlock()
		return
	}
	d := h.delegate
	trigger := h.currentURILocked()
	h.mu.Unlock()

	if d == nil {
		h.navigate(uri)
		return
	}

	verdict := d.OnLoadRequest(h, types.LoadRequest{URI: uri, TriggerURI: trigger, Target: types.TargetCurrent})
	if verdict == nil {
		h.navigate(uri)
		return
	}
	verdict.Then(func(v types.AllowOrDeny) {
		if v == types.Allow {
			h.navigate(uri)
		}
	})
}

func (h *Handle) navigate(uri string) {
	if isUnreachable(uri) {
		h.fail(uri)
		return
	}

	h.mu.Lock()
	if !h.open {
		h.mu.Unlock()
		return
	}
	h.entries = append(h.entries[:h.index+1], historyEntry{URI: uri, Title: titleFor(uri)})
	h.index = len(h.entries) - 1
	h.loading = true
	h.errorPage = ""
	snap := h.snapshotLocked()
	d := h.delegate
	h.mu.Unlock()

	if d == nil {
		h.setLoading(false)
		return
	}

	d.OnPageStart(h, uri)
	snap.emit(h, d)
	h.setLoading(false)
	d.OnPageStop(h, true)
	if data, err := encodeState(snap.state); err == nil {
		d.OnSessionStateChange(h, data)
	}
}

func (h *Handle) fail(uri string) {
	h.mu.Lock()
	d := h.delegate
	h.mu.Unlock()
	if d == nil {
		return
	}

	d.OnPageStart(h, uri)
	page := d.OnLoadError(h, uri, types.WebRequestError{
		Category: "network",
		Code:     0x53,
		Detail:   "<p>The server at <b>" + hostOf(uri) + "</b> could not be found.</p>",
	})
	if page != nil {
		page.Then(func(html string) {
			h.mu.Lock()
			h.errorPage = html
			h.mu.Unlock()
		})
	}
	d.OnPageStop(h, false)
}

// GoBack implements engine.Handle
func (h *Handle) GoBack() { h.step(-1) }

// GoForward implements engine.Handle
func (h *Handle) GoForward() { h.step(1) }

func (h *Handle) step(delta int) {
	h.mu.Lock()
	next := h.index + delta
	if !h.open || next < 0 || next >= len(h.entries) {
		h.mu.Unlock()
		return
	}
	h.index = next
	snap := h.snapshotLocked()
	d := h.delegate
	h.mu.Unlock()

	if d != nil {
		snap.emit(h, d)
	}
}

// Reload implements engine.Handle
func (h *Handle) Reload() {
	h.mu.Lock()
	uri := h.currentURILocked()
	d := h.delegate
	h.mu.Unlock()
	if d == nil || uri == "" {
		return
	}
	d.OnPageStart(h, uri)
	d.OnPageStop(h, true)
}

// ExitFullScreen implements engine.Handle
func (h *Handle) ExitFullScreen() {
	h.mu.Lock()
	was := h.fullScreen
	h.fullScreen = false
	d := h.delegate
	h.mu.Unlock()
	if was && d != nil {
		d.OnFullScreen(h, false)
	}
}

// SerializeState implements engine.Handle
func (h *Handle) SerializeState() ([]byte, error) {
	h.mu.Lock()
	if h.serializeErr != nil {
		err := h.serializeErr
		h.mu.Unlock()
		return nil, err
	}
	st := h.stateLocked()
	h.mu.Unlock()
	return encodeState(st)
}

// RestoreState replaces the history and reports the restored entry.
// It works before Open so a replacement handle can be primed.
func (h *Handle) RestoreState(data []byte) error {
	st, err := decodeState(data)
	if err != nil {
		return err
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return engine.ErrNotOpen
	}
	h.entries = append([]historyEntry(nil), st.Entries...)
	h.index = st.Index
	if len(h.entries) == 0 {
		h.index = -1
	}
	snap := h.snapshotLocked()
	d := h.delegate
	h.mu.Unlock()

	if d != nil && snap.uri != "" {
		snap.emit(h, d)
	}
	return nil
}

// InjectScript runs script against the current page
func (h *Handle) InjectScript(script string) error {
	h.mu.Lock()
	if !h.open {
		h.mu.Unlock()
		return engine.ErrNotOpen
	}
	h.mu.Unlock()

	fx, err := runScript(script)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.scripts = append(h.scripts, script)
	h.console = append(h.console, fx.console...)
	if fx.title != "" && h.index >= 0 {
		h.entries[h.index].Title = fx.title
	}
	d := h.delegate
	h.mu.Unlock()

	if fx.title != "" && d != nil {
		d.OnTitleChange(h, fx.title)
	}
	switch {
	case fx.navigate != "":
		h.LoadURI(fx.navigate)
	case fx.back:
		h.GoBack()
	case fx.reload:
		h.Reload()
	}
	return nil
}

func (h *Handle) setLoading(v bool) {
	h.mu.Lock()
	h.loading = v
	h.mu.Unlock()
}

func (h *Handle) currentURILocked() string {
	if h.index < 0 {
		return ""
	}
	return h.entries[h.index].URI
}

func (h *Handle) stateLocked() sessionState {
	return sessionState{
		Entries: append([]historyEntry(nil), h.entries...),
		Index:   h.index,
	}
}

// navSnapshot is what a history move reports, captured under the lock
type navSnapshot struct {
	uri      string
	title    string
	back     bool
	forward  bool
	security types.SecurityInfo
	state    sessionState
}

func (h *Handle) snapshotLocked() navSnapshot {
	s := navSnapshot{
		back:    h.index > 0,
		forward: h.index >= 0 && h.index < len(h.entries)-1,
		state:   h.stateLocked(),
	}
	if h.index >= 0 {
		e := h.entries[h.index]
		s.uri, s.title = e.URI, e.Title
		s.security = securityFor(e.URI)
	}
	return s
}

func (s navSnapshot) emit(h *Handle, d engine.Delegate) {
	d.OnLocationChange(h, s.uri)
	d.OnCanGoBack(h, s.back)
	d.OnCanGoForward(h, s.forward)
	d.OnSecurityChange(h, s.security)
	d.OnTitleChange(h, s.title)
}

func isUnreachable(uri string) bool {
	return strings.HasSuffix(hostOf(uri), unreachableTLD)
}

func hostOf(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func titleFor(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return uri
	}
	return u.Hostname()
}

func securityFor(uri string) types.SecurityInfo {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return types.SecurityInfo{}
	}
	return types.SecurityInfo{
		IsSecure: u.Scheme == "https",
		Host:     u.Hostname(),
		Origin:   u.Scheme + "://" + u.Host,
	}
}
