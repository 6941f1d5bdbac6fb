// Package rodengine drives a real Chrome over the DevTools protocol.
//
// Each normal session is a page in the default browser context; each
// private session gets its own incognito context, disposed with it.
package rodengine

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/sessionhub/internal/engine"
	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sessionhub/internal/types"
)

// Config selects the Chrome to drive
type Config struct {
	// ControlURL attaches to a running Chrome. Empty launches one.
	ControlURL string
	Headless   bool
}

// Runtime owns the Chrome connection
type Runtime struct {
	cfg    Config
	logger *logging.Logger

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	browser  *rod.Browser
	launcher *launcher.Launcher
	closed   bool
}

var _ engine.Runtime = (*Runtime)(nil)

// New creates a runtime. Chrome is started lazily on the first handle.
func New(cfg Config, logger *logging.Logger) *Runtime {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runtime{
		cfg:    cfg,
		logger: logging.OrNop(logger).Named("rod"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start connects to Chrome, launching it when no control URL is set
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.startLocked(ctx)
	return err
}

func (r *Runtime) startLocked(ctx context.Context) (*rod.Browser, error) {
	if r.closed {
		return nil, fmt.Errorf("%w: runtime closed", engine.ErrEngineUnavailable)
	}
	if r.browser != nil {
		if _, err := r.browser.Version(); err == nil {
			return r.browser, nil
		}
		r.logger.Warn("stale browser connection detected, reconnecting")
		_ = r.browser.Close()
		r.browser = nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	controlURL := r.cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(r.cfg.Headless)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		r.launcher = l
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(r.ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	r.browser = browser
	r.logger.Info("connected to chrome", zap.String("control_url", controlURL))
	return browser, nil
}

// CreateHandle implements engine.Runtime. The page is created on Open.
func (r *Runtime) CreateHandle(ctx context.Context, settings types.Settings) (engine.Handle, error) {
	r.mu.Lock()
	_, err := r.startLocked(ctx)
	r.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", engine.ErrEngineUnavailable, err)
	}
	return newHandle(r, settings), nil
}

// browserFor returns the browser context a new page belongs in. Private
// sessions each get a fresh incognito context.
func (r *Runtime) browserFor(private bool) (*rod.Browser, bool, error) {
	r.mu.Lock()
	browser, err := r.startLocked(r.ctx)
	r.mu.Unlock()
	if err != nil {
		return nil, false, err
	}
	if !private {
		return browser, false, nil
	}
	incognito, err := browser.Incognito()
	if err != nil {
		return nil, false, fmt.Errorf("incognito context: %w", err)
	}
	return incognito, true, nil
}

func (r *Runtime) context() context.Context {
	return r.ctx
}

// Close disconnects and, when it launched Chrome, kills it
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var err error
	if r.browser != nil {
		err = r.browser.Close()
		r.browser = nil
	}
	r.cancel()
	if r.launcher != nil {
		r.launcher.Kill()
		r.launcher.Cleanup()
		r.launcher = nil
	}
	return err
}
