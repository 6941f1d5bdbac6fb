package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/sessionhub/internal/engine"
	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sessionhub/internal/types"
)

// Setting names a session setting that can only change by recreating the
// session.
type Setting string

const (
	SettingMultiprocess       Setting = "multiprocess"
	SettingTrackingProtection Setting = "tracking_protection"
)

// UpdateSetting applies a setting to the current session. The engine
// binds settings to a handle for its lifetime, so the session is replaced:
// its state is captured, a new session is created with the new settings
// and the captured state, it becomes current, and the old one is removed.
// The current session id changes; re-resolve it with CurrentSessionID.
func (r *Registry) UpdateSetting(ctx context.Context, field Setting, value bool) error {
	r.mu.Lock()
	cur, ok := r.sessions[r.current]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	next := cur.settings
	switch field {
	case SettingMultiprocess:
		next.Multiprocess = value
	case SettingTrackingProtection:
		next.TrackingProtection = value
	default:
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownSetting, field)
	}
	if next == cur.settings {
		r.mu.Unlock()
		return nil
	}
	oldID, oldHandle := cur.id, cur.handle
	cached := cur.state
	uri := cur.nav.URI
	r.mu.Unlock()

	state := r.captureState(oldID, oldHandle, cached)

	h, err := r.createHandle(ctx, next)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.current != oldID {
		r.mu.Unlock()
		r.logger.Warn("current session changed during recreation, discarding replacement", logging.Session(oldID))
		h.SetDelegate(nil)
		h.Close()
		return nil
	}
	newID := r.registerLocked(h, next)
	r.enqueueLocked(oldHandle.Stop)
	r.mu.Unlock()
	r.drain()

	restored := false
	if len(state) > 0 {
		if err := h.RestoreState(state); err != nil {
			r.logger.Warn("state restore failed, starting with empty history",
				logging.Sessions(oldID, newID),
				zap.Error(fmt.Errorf("%w: %w", ErrSerialization, err)),
			)
		} else {
			restored = true
		}
	}

	r.mu.Lock()
	if r.current != oldID {
		r.removeLocked(newID)
		r.mu.Unlock()
		r.drain()
		r.logger.Warn("current session changed during state restore, discarding replacement", logging.Sessions(oldID, newID))
		return nil
	}
	if rec, ok := r.sessions[newID]; ok && restored {
		rec.state = state
	}
	r.setCurrentLocked(newID)
	if !restored && uri != "" {
		r.enqueueLocked(func() { h.LoadURI(uri) })
	}
	r.removeLocked(oldID)
	r.mu.Unlock()
	r.drain()

	r.metrics.Recreated(string(field))
	r.logger.Info("session recreated",
		logging.Sessions(oldID, newID),
		zap.String("setting", string(field)),
		zap.Bool("value", value),
		zap.Bool("restored", restored),
	)
	return nil
}

// captureState serializes the live handle, falling back to the last
// snapshot the engine reported.
func (r *Registry) captureState(id types.SessionID, h engine.Handle, cached []byte) []byte {
	state, err := h.SerializeState()
	if err == nil && len(state) > 0 {
		return state
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrSerialization, err)
	} else {
		err = fmt.Errorf("%w: empty state", ErrSerialization)
	}
	if len(cached) > 0 {
		r.logger.Debug("using cached session state", logging.Session(id), zap.Error(err))
		return cached
	}
	r.logger.Warn("no session state to carry over", logging.Session(id), zap.Error(err))
	return nil
}

// SetMultiprocess is UpdateSetting(ctx, SettingMultiprocess, enabled)
func (r *Registry) SetMultiprocess(ctx context.Context, enabled bool) error {
	return r.UpdateSetting(ctx, SettingMultiprocess, enabled)
}

// SetTrackingProtection is UpdateSetting(ctx, SettingTrackingProtection, enabled)
func (r *Registry) SetTrackingProtection(ctx context.Context, enabled bool) error {
	return r.UpdateSetting(ctx, SettingTrackingProtection, enabled)
}

// SetUserAgentMode changes the user agent of the current session in place
// and reloads it. The engine applies this without a new handle.
func (r *Registry) SetUserAgentMode(mode types.UserAgentMode) {
	r.withCurrent(func(rec *record, h engine.Handle) {
		if rec.settings.UserAgentMode == mode {
			return
		}
		rec.settings.UserAgentMode = mode
		r.enqueueLocked(func() {
			h.SetUserAgentMode(mode)
			h.Reload()
		})
	})
}
