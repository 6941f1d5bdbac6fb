package memory

import (
	"github.com/GriffinCanCode/sessionhub/internal/engine"
	"github.com/GriffinCanCode/sessionhub/internal/types"
)

// The Simulate methods play the part of page content. They report to the
// delegate exactly as a real engine would.

func (h *Handle) live() engine.Delegate {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	return h.delegate
}

// SimulateTitle changes the current page title
func (h *Handle) SimulateTitle(title string) {
	h.mu.Lock()
	if h.index >= 0 {
		h.entries[h.index].Title = title
	}
	h.mu.Unlock()
	if d := h.live(); d != nil {
		d.OnTitleChange(h, title)
	}
}

// SimulateFullScreen enters or leaves fullscreen
func (h *Handle) SimulateFullScreen(fullScreen bool) {
	h.mu.Lock()
	h.fullScreen = fullScreen
	h.mu.Unlock()
	if d := h.live(); d != nil {
		d.OnFullScreen(h, fullScreen)
	}
}

// SimulateInput shows or hides the soft keyboard
func (h *Handle) SimulateInput(show bool) {
	d := h.live()
	if d == nil {
		return
	}
	if show {
		d.ShowSoftInput(h)
	} else {
		d.HideSoftInput(h)
	}
}

// SimulateSelection reports a selection change
func (h *Handle) SimulateSelection(sel types.Selection) {
	if d := h.live(); d != nil {
		d.UpdateSelection(h, sel)
	}
}

// SimulateRestartInput reports an input restart
func (h *Handle) SimulateRestartInput(reason int) {
	if d := h.live(); d != nil {
		d.RestartInput(h, reason)
	}
}

// SimulateContextMenu opens a context menu
func (h *Handle) SimulateContextMenu(x, y int, elem types.ContextElement) {
	if d := h.live(); d != nil {
		d.OnContextMenu(h, x, y, elem)
	}
}

// SimulateFirstComposite reports the first painted frame
func (h *Handle) SimulateFirstComposite() {
	if d := h.live(); d != nil {
		d.OnFirstComposite(h)
	}
}

// SimulatePrompt raises a modal prompt
func (h *Handle) SimulatePrompt(p types.Prompt) {
	if d := h.live(); d != nil {
		d.OnPrompt(h, p)
	}
}

// SimulatePopup asks whether a pop-up may open
func (h *Handle) SimulatePopup(target string) *types.Deferred[types.AllowOrDeny] {
	d := h.live()
	if d == nil {
		return types.Resolved(types.Deny)
	}
	return d.OnPopupPrompt(h, target)
}

// SimulateWindowOpen asks for a new window and loads uri into it
func (h *Handle) SimulateWindowOpen(uri string) *types.Deferred[engine.Handle] {
	d := h.live()
	if d == nil {
		return types.Resolved[engine.Handle](nil)
	}
	child := d.OnNewSession(h, uri)
	child.Then(func(c engine.Handle) {
		if c != nil {
			c.LoadURI(uri)
		}
	})
	return child
}

// SimulateCloseRequest is window.close() from content
func (h *Handle) SimulateCloseRequest() {
	if d := h.live(); d != nil {
		d.OnCloseRequest(h)
	}
}

// SimulateCrash reports a content process crash
func (h *Handle) SimulateCrash() {
	if d := h.live(); d != nil {
		d.OnCrash(h)
	}
}

// SimulateMediaAdd reports a new media element
func (h *Handle) SimulateMediaAdd(m types.Media) {
	if d := h.live(); d != nil {
		d.OnMediaAdd(h, m)
	}
}

// SimulateMediaRemove reports a removed media element
func (h *Handle) SimulateMediaRemove(id string) {
	if d := h.live(); d != nil {
		d.OnMediaRemove(h, id)
	}
}

// SimulateContentBlocked reports a blocked resource
func (h *Handle) SimulateContentBlocked(ev types.ContentBlockEvent) {
	if d := h.live(); d != nil {
		d.OnContentBlocked(h, ev)
	}
}

// FailSerialize makes SerializeState return err until cleared with nil
func (h *Handle) FailSerialize(err error) {
	h.mu.Lock()
	h.serializeErr = err
	h.mu.Unlock()
}

// Inspection

func (h *Handle) Settings() types.Settings {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.settings
}

func (h *Handle) IsClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Closes counts Close calls
func (h *Handle) Closes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closes
}

// Stops counts Stop calls
func (h *Handle) Stops() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stops
}

func (h *Handle) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

func (h *Handle) CurrentURI() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentURILocked()
}

// History returns the URIs of every history entry
func (h *Handle) History() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.entries))
	for i, e := range h.entries {
		out[i] = e.URI
	}
	return out
}

func (h *Handle) UserAgentMode() types.UserAgentMode {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.uaMode
}

func (h *Handle) UserAgentOverride() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.uaOverride
}

// Scripts returns every script injected so far
func (h *Handle) Scripts() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.scripts...)
}

// Console returns console.log output of injected scripts
func (h *Handle) Console() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.console...)
}

// ErrorPage returns the page shown for the last failed load
func (h *Handle) ErrorPage() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.errorPage
}
