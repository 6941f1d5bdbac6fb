package session

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/sessionhub/internal/domain/listener"
	"github.com/GriffinCanCode/sessionhub/internal/engine"
	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sessionhub/internal/types"
)

var _ engine.Delegate = (*Registry)(nil)

// update runs fn on the record of h under the lock, then drains. Events
// from handles the registry no longer knows are dropped.
func (r *Registry) update(h engine.Handle, event string, fn func(rec *record, current bool)) {
	r.mu.Lock()
	rec, current := r.lookupLocked(h, event)
	if rec != nil {
		fn(rec, current)
	}
	r.mu.Unlock()
	r.drain()
}

func (r *Registry) notifyNavigationLocked(fn func(listener.Navigation)) {
	r.enqueueLocked(func() { r.hub.NotifyNavigation(fn) })
}

func (r *Registry) notifyProgressLocked(fn func(listener.Progress)) {
	r.enqueueLocked(func() { r.hub.NotifyProgress(fn) })
}

func (r *Registry) notifyContentLocked(fn func(listener.Content)) {
	r.enqueueLocked(func() { r.hub.NotifyContent(fn) })
}

func (r *Registry) notifyTextInputLocked(fn func(listener.TextInput)) {
	r.enqueueLocked(func() { r.hub.NotifyTextInput(fn) })
}

// Navigation

func (r *Registry) OnLocationChange(h engine.Handle, uri string) {
	r.update(h, "location_change", func(rec *record, current bool) {
		rec.nav.PreviousURI = rec.nav.URI
		rec.nav.URI = uri
		id := rec.id

		if r.popups != nil {
			r.enqueueLocked(func() { r.popups.Purge(id) })
		}
		if current {
			r.notifyNavigationLocked(func(l listener.Navigation) { l.OnLocationChange(id, uri) })
		}

		// the bare homepage finished loading after the region became known
		if r.defaults.Region() != "" && strings.EqualFold(uri, r.defaults.Homepage()) {
			home := r.HomeURI()
			r.enqueueLocked(func() { r.replaceLocation(h, home) })
		}
	})
}

func (r *Registry) OnCanGoBack(h engine.Handle, canGoBack bool) {
	r.update(h, "can_go_back", func(rec *record, current bool) {
		rec.nav.CanGoBack = canGoBack
		if current {
			id := rec.id
			r.notifyNavigationLocked(func(l listener.Navigation) { l.OnCanGoBack(id, canGoBack) })
		}
	})
}

func (r *Registry) OnCanGoForward(h engine.Handle, canGoForward bool) {
	r.update(h, "can_go_forward", func(rec *record, current bool) {
		rec.nav.CanGoForward = canGoForward
		if current {
			id := rec.id
			r.notifyNavigationLocked(func(l listener.Navigation) { l.OnCanGoForward(id, canGoForward) })
		}
	})
}

// OnNewSession answers a window.open from content: a child session with
// the current mode is created and stacked on top. The handle is handed to
// the engine once the child is open.
func (r *Registry) OnNewSession(h engine.Handle, uri string) *types.Deferred[engine.Handle] {
	if _, ok := r.SessionIDOf(h); !ok {
		return types.Resolved[engine.Handle](nil)
	}

	id, err := r.CreateDefaultSession(context.Background(), r.IsCurrentSessionPrivate())
	if err != nil {
		r.logger.Warn("new window refused", logging.URI(uri), zap.Error(err))
		return types.Resolved[engine.Handle](nil)
	}

	result := types.NewDeferred[engine.Handle]()
	r.mu.Lock()
	rec, ok := r.sessions[id]
	if !ok || !r.stackLocked(id) {
		r.mu.Unlock()
		result.Complete(nil)
		return result
	}
	child := rec.handle
	r.enqueueLocked(func() { result.Complete(child) })
	r.mu.Unlock()
	r.drain()

	return result
}

func (r *Registry) OnLoadError(h engine.Handle, uri string, werr types.WebRequestError) *types.Deferred[string] {
	if _, ok := r.SessionIDOf(h); !ok {
		return types.Resolved("")
	}
	page, err := r.pages.Render(uri, werr)
	if err != nil {
		r.logger.Error("error page render failed", logging.URI(uri), zap.Error(err))
		return types.Resolved("")
	}
	return types.Resolved(page)
}

// Progress

func (r *Registry) OnPageStart(h engine.Handle, uri string) {
	r.update(h, "page_start", func(rec *record, current bool) {
		rec.nav.IsLoading = true
		if current {
			id := rec.id
			r.notifyProgressLocked(func(l listener.Progress) { l.OnPageStart(id, uri) })
		}
	})
}

func (r *Registry) OnPageStop(h engine.Handle, success bool) {
	r.update(h, "page_stop", func(rec *record, current bool) {
		rec.nav.IsLoading = false
		if current {
			id := rec.id
			r.notifyProgressLocked(func(l listener.Progress) { l.OnPageStop(id, success) })
		}
	})
}

func (r *Registry) OnSecurityChange(h engine.Handle, info types.SecurityInfo) {
	r.update(h, "security_change", func(rec *record, current bool) {
		sec := info
		rec.security = &sec
		if current {
			id := rec.id
			r.notifyProgressLocked(func(l listener.Progress) { l.OnSecurityChange(id, info) })
		}
	})
}

func (r *Registry) OnSessionStateChange(h engine.Handle, state []byte) {
	r.update(h, "session_state", func(rec *record, _ bool) {
		rec.state = slices.Clone(state)
	})
}

// Content

func (r *Registry) OnTitleChange(h engine.Handle, title string) {
	r.update(h, "title_change", func(rec *record, current bool) {
		rec.nav.Title = title
		if current {
			id := rec.id
			r.notifyContentLocked(func(l listener.Content) { l.OnTitleChange(id, title) })
		}
	})
}

func (r *Registry) OnFullScreen(h engine.Handle, fullScreen bool) {
	r.update(h, "full_screen", func(rec *record, current bool) {
		rec.nav.FullScreen = fullScreen
		if current {
			id := rec.id
			r.notifyContentLocked(func(l listener.Content) { l.OnFullScreen(id, fullScreen) })
		}
	})
}

func (r *Registry) OnContextMenu(h engine.Handle, x, y int, elem types.ContextElement) {
	r.update(h, "context_menu", func(rec *record, current bool) {
		if current {
			id := rec.id
			r.notifyContentLocked(func(l listener.Content) { l.OnContextMenu(id, x, y, elem) })
		}
	})
}

func (r *Registry) OnFirstComposite(h engine.Handle) {
	r.update(h, "first_composite", func(rec *record, current bool) {
		if current {
			id := rec.id
			r.notifyContentLocked(func(l listener.Content) { l.OnFirstComposite(id) })
		}
	})
}

// OnCloseRequest is window.close() from content. Only the current session
// can close itself, and only when there is a session to return to.
func (r *Registry) OnCloseRequest(h engine.Handle) {
	r.update(h, "close_request", func(rec *record, current bool) {
		if !current {
			return
		}
		if err := r.unstackLocked(); err != nil {
			r.logger.Debug("close request ignored", logging.Session(rec.id), zap.Error(err))
		}
	})
}

// OnCrash replaces a crashed current session with a fresh one showing the
// home page. A crashed background session is removed.
func (r *Registry) OnCrash(h engine.Handle) {
	r.mu.Lock()
	rec, current := r.lookupLocked(h, "crash")
	if rec == nil {
		r.mu.Unlock()
		return
	}
	crashed, private := rec.id, rec.settings.PrivateMode
	r.mu.Unlock()

	r.logger.Error("engine session crashed", logging.Session(crashed), zap.Bool("current", current))
	if !current {
		r.RemoveSession(crashed)
		return
	}

	id, err := r.CreateDefaultSession(context.Background(), private)
	if err != nil {
		r.logger.Error("crash recovery failed", logging.Session(crashed), zap.Error(err))
		r.RemoveSession(crashed)
		return
	}

	home := r.HomeURI()
	r.mu.Lock()
	r.setCurrentLocked(id)
	nh := r.sessions[id].handle
	r.enqueueLocked(func() { nh.LoadURI(home) })
	r.removeLocked(crashed)
	r.mu.Unlock()
	r.drain()
}

// Text input

func (r *Registry) RestartInput(h engine.Handle, reason int) {
	r.update(h, "restart_input", func(rec *record, current bool) {
		if current {
			id := rec.id
			r.notifyTextInputLocked(func(l listener.TextInput) { l.RestartInput(id, reason) })
		}
	})
}

func (r *Registry) ShowSoftInput(h engine.Handle) {
	r.update(h, "show_soft_input", func(rec *record, current bool) {
		rec.nav.IsInputActive = true
		if current {
			id := rec.id
			r.notifyTextInputLocked(func(l listener.TextInput) { l.ShowSoftInput(id) })
		}
	})
}

func (r *Registry) HideSoftInput(h engine.Handle) {
	r.update(h, "hide_soft_input", func(rec *record, current bool) {
		rec.nav.IsInputActive = false
		if current {
			id := rec.id
			r.notifyTextInputLocked(func(l listener.TextInput) { l.HideSoftInput(id) })
		}
	})
}

func (r *Registry) UpdateSelection(h engine.Handle, sel types.Selection) {
	r.update(h, "update_selection", func(rec *record, current bool) {
		if current {
			id := rec.id
			r.notifyTextInputLocked(func(l listener.TextInput) { l.UpdateSelection(id, sel) })
		}
	})
}

// Prompts

// OnPrompt forwards a modal prompt to prompt listeners. Prompts from
// background sessions, or with nobody to answer them, are dismissed so the
// engine is never left waiting.
func (r *Registry) OnPrompt(h engine.Handle, prompt types.Prompt) {
	r.update(h, "prompt", func(rec *record, current bool) {
		id := rec.id
		r.enqueueLocked(func() {
			if current && r.hub.Counts()[listener.CategoryPrompt] > 0 {
				r.hub.NotifyPrompt(func(l listener.Prompt) { l.OnPrompt(id, prompt) })
				return
			}
			if prompt.Response != nil {
				prompt.Response.Complete(types.PromptResponse{})
			}
		})
	})
}

// OnPopupPrompt hands the request to the pop-up queue, keyed by the page
// that asked.
func (r *Registry) OnPopupPrompt(h engine.Handle, targetURI string) *types.Deferred[types.AllowOrDeny] {
	r.mu.Lock()
	rec, _ := r.lookupLocked(h, "popup_prompt")
	if rec == nil {
		r.mu.Unlock()
		return types.Resolved(types.Deny)
	}
	id, page := rec.id, rec.nav.URI
	r.mu.Unlock()

	if r.popups == nil {
		r.logger.Debug("pop-up denied, no queue configured", logging.Session(id))
		return types.Resolved(types.Deny)
	}
	return r.popups.Request(id, page, targetURI)
}

// Media

// OnMediaAdd records a media element. The current session gaining its
// first element makes video available.
func (r *Registry) OnMediaAdd(h engine.Handle, media types.Media) {
	r.update(h, "media_add", func(rec *record, current bool) {
		rec.media = append(rec.media, media)
		if current && len(rec.media) == 1 {
			id := rec.id
			r.enqueueLocked(func() {
				r.hub.NotifyVideoAvailability(func(l listener.VideoAvailability) { l.OnVideoAvailabilityChange(id, true) })
			})
		}
	})
}

func (r *Registry) OnMediaRemove(h engine.Handle, mediaID string) {
	r.update(h, "media_remove", func(rec *record, current bool) {
		i := slices.IndexFunc(rec.media, func(m types.Media) bool { return m.ID == mediaID })
		if i < 0 {
			return
		}
		rec.media = slices.Delete(rec.media, i, i+1)
		if current && len(rec.media) == 0 {
			id := rec.id
			r.enqueueLocked(func() {
				r.hub.NotifyVideoAvailability(func(l listener.VideoAvailability) { l.OnVideoAvailabilityChange(id, false) })
			})
		}
	})
}

// Content blocking

func (r *Registry) OnContentBlocked(h engine.Handle, ev types.ContentBlockEvent) {
	r.update(h, "content_blocked", func(rec *record, current bool) {
		if current {
			id := rec.id
			r.notifyProgressLocked(func(l listener.Progress) { l.OnContentBlocked(id, ev) })
		}
	})
}
