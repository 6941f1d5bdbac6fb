package rodengine

import (
	"context"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/sessionhub/internal/engine"
	"github.com/GriffinCanCode/sessionhub/internal/types"
)

// watch subscribes to the page's events and forwards them to the
// delegate until ctx ends
func (h *Handle) watch(ctx context.Context, page *rod.Page) {
	requests := make(map[proto.NetworkRequestID]string)

	wait := page.Context(ctx).EachEvent(
		func(ev *proto.PageFrameStartedLoading) {
			if ev.FrameID != page.FrameID {
				return
			}
			h.mu.Lock()
			uri := h.loading
			h.mu.Unlock()
			if d := h.currentDelegate(); d != nil {
				d.OnPageStart(h, uri)
			}
		},
		func(ev *proto.PageFrameNavigated) {
			if ev.Frame.ParentID != "" {
				return
			}
			h.navigated(page, ev.Frame.URL)
		},
		func(ev *proto.PageNavigatedWithinDocument) {
			if ev.FrameID == page.FrameID {
				h.navigated(page, ev.URL)
			}
		},
		func(ev *proto.PageLoadEventFired) {
			h.loaded(page)
		},
		func(ev *proto.PageJavascriptDialogOpening) {
			h.dialog(page, ev)
		},
		func(ev *proto.PageWindowOpen) {
			h.windowOpened(page, ev.URL)
		},
		func(ev *proto.NetworkRequestWillBeSent) {
			if ev.Request != nil {
				requests[ev.RequestID] = ev.Request.URL
			}
		},
		func(ev *proto.NetworkLoadingFinished) {
			delete(requests, ev.RequestID)
		},
		func(ev *proto.NetworkLoadingFailed) {
			uri := requests[ev.RequestID]
			delete(requests, ev.RequestID)
			if ev.BlockedReason != proto.NetworkBlockedReasonInspector || uri == "" {
				return
			}
			if d := h.currentDelegate(); d != nil {
				d.OnContentBlocked(h, types.ContentBlockEvent{URI: uri, Categories: []string{"tracking"}})
			}
		},
		func(ev *proto.InspectorTargetCrashed) bool {
			h.rt.logger.Warn("page crashed")
			if d := h.currentDelegate(); d != nil {
				d.OnCrash(h)
			}
			return true
		},
	)
	go wait()
}

// navigated reports a committed main-frame navigation
func (h *Handle) navigated(page *rod.Page, uri string) {
	d := h.currentDelegate()
	if d == nil {
		return
	}
	d.OnLocationChange(h, uri)
	if hist, err := (proto.PageGetNavigationHistory{}).Call(page); err == nil {
		st := fromHistory(hist)
		d.OnCanGoBack(h, st.Index > 0)
		d.OnCanGoForward(h, st.Index < len(st.Entries)-1)
	}
	d.OnSecurityChange(h, securityFor(uri))
}

// loaded reports the finished load together with title and history
func (h *Handle) loaded(page *rod.Page) {
	d := h.currentDelegate()
	if d == nil {
		return
	}
	if info, err := page.Info(); err == nil {
		d.OnTitleChange(h, info.Title)
	}

	h.mu.Lock()
	first := !h.composed
	h.composed = true
	h.mu.Unlock()
	if first {
		d.OnFirstComposite(h)
	}

	d.OnPageStop(h, true)
	if hist, err := (proto.PageGetNavigationHistory{}).Call(page); err == nil {
		if data, err := encodeState(fromHistory(hist)); err == nil {
			d.OnSessionStateChange(h, data)
		}
	}
}

// dialog forwards a JavaScript dialog and answers Chrome once the
// delegate responds
func (h *Handle) dialog(page *rod.Page, ev *proto.PageJavascriptDialogOpening) {
	kind := promptKind(ev.Type)
	response := types.NewDeferred[types.PromptResponse]()
	response.Then(func(r types.PromptResponse) {
		accept := r.Confirmed || kind == types.PromptAlert
		go func() {
			err := proto.PageHandleJavaScriptDialog{Accept: accept, PromptText: r.Text}.Call(page)
			if err != nil {
				h.rt.logger.Debug("dialog answer failed", zap.Error(err))
			}
		}()
	})

	d := h.currentDelegate()
	if d == nil {
		response.Complete(types.PromptResponse{})
		return
	}
	d.OnPrompt(h, types.Prompt{
		Kind:     kind,
		Message:  ev.Message,
		Default:  ev.DefaultPrompt,
		Response: response,
	})
}

// windowOpened puts a window.open call to the pop-up prompt and, when
// allowed, loads the target into a session the delegate provides.
// Chrome's own pop-up target is closed either way.
func (h *Handle) windowOpened(page *rod.Page, uri string) {
	go h.closeOpenedBy(page)

	d := h.currentDelegate()
	if d == nil {
		return
	}
	verdict := d.OnPopupPrompt(h, uri)
	if verdict == nil {
		return
	}
	verdict.Then(func(v types.AllowOrDeny) {
		if v != types.Allow {
			return
		}
		d.OnNewSession(h, uri).Then(func(child engine.Handle) {
			if child != nil {
				child.LoadURI(uri)
			}
		})
	})
}

func (h *Handle) closeOpenedBy(page *rod.Page) {
	h.mu.Lock()
	browser := h.owner
	h.mu.Unlock()
	if browser == nil {
		return
	}
	pages, err := browser.Pages()
	if err != nil {
		return
	}
	for _, p := range pages {
		info, err := p.Info()
		if err == nil && info.OpenerID == page.TargetID {
			_ = p.Close()
		}
	}
}
