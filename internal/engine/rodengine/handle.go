package rodengine

import (
	"context"
	"errors"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/sessionhub/internal/engine"
	"github.com/GriffinCanCode/sessionhub/internal/types"
)

// Handle is one Chrome page. Delegate callbacks arrive on the page's
// event goroutine or on the goroutine running a navigation.
type Handle struct {
	rt       *Runtime
	settings types.Settings

	mu        sync.Mutex
	delegate  engine.Delegate
	page      *rod.Page
	owner     *rod.Browser
	incognito bool
	ctx       context.Context
	cancel    context.CancelFunc
	closed    bool
	pending   []byte
	composed  bool
	loading   string

	uaMode     types.UserAgentMode
	uaOverride string
}

var _ engine.Handle = (*Handle)(nil)

func newHandle(rt *Runtime, settings types.Settings) *Handle {
	return &Handle{
		rt:       rt,
		settings: settings,
		uaMode:   settings.UserAgentMode,
	}
}

// Open implements engine.Handle. rt may be a wrapper; the page is always
// created by the runtime that made the handle.
func (h *Handle) Open(rt engine.Runtime) error {
	if rt == nil {
		return errors.New("open: nil runtime")
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return engine.ErrNotOpen
	}
	if h.page != nil {
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()

	browser, incognito, err := h.rt.browserFor(h.settings.PrivateMode)
	if err != nil {
		return err
	}
	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		if incognito {
			_ = browser.Close()
		}
		return err
	}

	ctx, cancel := context.WithCancel(h.rt.context())
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		cancel()
		_ = page.Close()
		if incognito {
			_ = browser.Close()
		}
		return engine.ErrNotOpen
	}
	h.page, h.owner, h.incognito = page, browser, incognito
	h.ctx, h.cancel = ctx, cancel
	pending := h.pending
	h.pending = nil
	ua := userAgentFor(h.uaMode, h.uaOverride)
	h.mu.Unlock()

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
		h.rt.logger.Warn("set user agent failed", zap.Error(err))
	}
	if h.settings.TrackingProtection {
		if err := page.SetBlockedURLs(trackerPatterns); err != nil {
			h.rt.logger.Warn("enable tracking protection failed", zap.Error(err))
		}
	}

	h.watch(ctx, page)
	if pending != nil {
		go h.restore(ctx, page, pending)
	}
	return nil
}

// IsOpen implements engine.Handle
func (h *Handle) IsOpen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.page != nil && !h.closed
}

// Close implements engine.Handle
func (h *Handle) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	page, browser, incognito, cancel := h.page, h.owner, h.incognito, h.cancel
	h.page = nil
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if page != nil {
		_ = page.Close()
	}
	if incognito && browser != nil {
		_ = browser.Close()
	}
}

// live returns the page and delegate of an open handle
func (h *Handle) live() (*rod.Page, engine.Delegate, context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.page == nil {
		return nil, nil, nil
	}
	return h.page, h.delegate, h.ctx
}

func (h *Handle) currentDelegate() engine.Delegate {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.delegate
}

// Stop implements engine.Handle
func (h *Handle) Stop() {
	if page, _, _ := h.live(); page != nil {
		_ = proto.PageStopLoading{}.Call(page)
	}
}

// SetActive freezes background pages and wakes the current one
func (h *Handle) SetActive(active bool) {
	page, _, _ := h.live()
	if page == nil {
		return
	}
	state := proto.PageSetWebLifecycleStateStateFrozen
	if active {
		state = proto.PageSetWebLifecycleStateStateActive
	}
	go func() {
		_ = proto.PageSetWebLifecycleState{State: state}.Call(page)
		if active {
			_, _ = page.Activate()
		}
	}()
}

// SetDelegate implements engine.Handle
func (h *Handle) SetDelegate(d engine.Delegate) {
	h.mu.Lock()
	h.delegate = d
	h.mu.Unlock()
}

// LoadURI asks the delegate, then navigates. Ignored until Open.
func (h *Handle) LoadURI(uri string) {
	page, d, ctx := h.live()
	if page == nil {
		return
	}
	go h.load(ctx, page, d, uri)
}

func (h *Handle) load(ctx context.Context, page *rod.Page, d engine.Delegate, uri string) {
	if d != nil {
		verdict := d.OnLoadRequest(h, types.LoadRequest{URI: uri, Target: types.TargetCurrent, HasUserGesture: true})
		if verdict != nil {
			v, err := verdict.Wait(ctx)
			if err != nil || v != types.Allow {
				return
			}
		}
	}

	h.mu.Lock()
	h.loading = uri
	h.mu.Unlock()

	err := page.Context(ctx).Navigate(uri)
	if err == nil || ctx.Err() != nil {
		return
	}

	var navErr *rod.NavigationError
	if !errors.As(err, &navErr) {
		h.rt.logger.Warn("navigation failed", zap.String("uri", uri), zap.Error(err))
		return
	}
	h.failed(ctx, page, uri, classify(navErr.Reason))
}

// failed renders the delegate's error page in place of the failed load
func (h *Handle) failed(ctx context.Context, page *rod.Page, uri string, werr types.WebRequestError) {
	d := h.currentDelegate()
	if d == nil {
		return
	}
	d.OnPageStart(h, uri)
	if html := d.OnLoadError(h, uri, werr); html != nil {
		html.Then(func(doc string) {
			if doc == "" || ctx.Err() != nil {
				return
			}
			go func() {
				if err := page.SetDocumentContent(doc); err != nil {
					h.rt.logger.Debug("error page not shown", zap.Error(err))
				}
			}()
		})
	}
	d.OnPageStop(h, false)
}

func (h *Handle) navigate(fn func(*rod.Page) error) {
	page, _, ctx := h.live()
	if page == nil {
		return
	}
	go func() {
		if err := fn(page.Context(ctx)); err != nil && ctx.Err() == nil {
			h.rt.logger.Debug("history navigation failed", zap.Error(err))
		}
	}()
}

// GoBack implements engine.Handle
func (h *Handle) GoBack() { h.navigate((*rod.Page).NavigateBack) }

// GoForward implements engine.Handle
func (h *Handle) GoForward() { h.navigate((*rod.Page).NavigateForward) }

// Reload implements engine.Handle
func (h *Handle) Reload() { h.navigate((*rod.Page).Reload) }

// ExitFullScreen implements engine.Handle
func (h *Handle) ExitFullScreen() {
	_ = h.InjectScript(`if (document.fullscreenElement) document.exitFullscreen();`)
}

// InjectScript runs script in the page's main world
func (h *Handle) InjectScript(script string) error {
	page, _, ctx := h.live()
	if page == nil {
		return engine.ErrNotOpen
	}
	_, err := page.Context(ctx).Eval("() => { " + script + " }")
	return err
}

// SerializeState captures the page's history
func (h *Handle) SerializeState() ([]byte, error) {
	page, _, _ := h.live()
	if page == nil {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.pending != nil {
			return append([]byte(nil), h.pending...), nil
		}
		return nil, engine.ErrNotOpen
	}
	hist, err := proto.PageGetNavigationHistory{}.Call(page)
	if err != nil {
		return nil, err
	}
	return encodeState(fromHistory(hist))
}

// RestoreState replays a captured history. Before Open it is kept and
// replayed once the page exists.
func (h *Handle) RestoreState(data []byte) error {
	if _, err := decodeState(data); err != nil {
		return err
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return engine.ErrNotOpen
	}
	if h.page == nil {
		h.pending = append([]byte(nil), data...)
		h.mu.Unlock()
		return nil
	}
	page, ctx := h.page, h.ctx
	h.mu.Unlock()

	go h.restore(ctx, page, data)
	return nil
}

// restore navigates through every entry to rebuild the history, then
// steps back to the saved index
func (h *Handle) restore(ctx context.Context, page *rod.Page, data []byte) {
	st, err := decodeState(data)
	if err != nil || len(st.Entries) == 0 {
		return
	}
	p := page.Context(ctx)
	for _, e := range st.Entries {
		if err := p.Navigate(e.URL); err != nil {
			h.rt.logger.Warn("history restore failed", zap.String("uri", e.URL), zap.Error(err))
			return
		}
		_ = p.WaitLoad()
	}
	if st.Index >= len(st.Entries)-1 {
		return
	}

	hist, err := proto.PageGetNavigationHistory{}.Call(p)
	if err != nil {
		return
	}
	if target, ok := historyEntryID(hist, st.Index, len(st.Entries)); ok {
		_ = proto.PageNavigateToHistoryEntry{EntryID: target}.Call(p)
	}
}

// SetUserAgentMode implements engine.Handle
func (h *Handle) SetUserAgentMode(mode types.UserAgentMode) {
	h.mu.Lock()
	h.uaMode = mode
	h.mu.Unlock()
	h.applyUserAgent()
}

// SetUserAgentOverride implements engine.Handle. An empty override
// returns to the mode's default.
func (h *Handle) SetUserAgentOverride(ua string) {
	h.mu.Lock()
	h.uaOverride = ua
	h.mu.Unlock()
	h.applyUserAgent()
}

func (h *Handle) applyUserAgent() {
	h.mu.Lock()
	page := h.page
	ua := userAgentFor(h.uaMode, h.uaOverride)
	h.mu.Unlock()
	if page == nil {
		return
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
		h.rt.logger.Debug("set user agent failed", zap.Error(err))
	}
}
