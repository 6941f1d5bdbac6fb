package engine

import (
	"context"
	"errors"

	"github.com/GriffinCanCode/sessionhub/internal/types"
)

var (
	// ErrEngineUnavailable is returned when the runtime cannot create a handle
	ErrEngineUnavailable = errors.New("engine unavailable")
	// ErrNotOpen is returned by handle operations that need an open handle
	ErrNotOpen = errors.New("engine handle not open")
)

// Runtime creates engine handles. A handle is bound to the settings it
// was created with for its whole lifetime.
type Runtime interface {
	CreateHandle(ctx context.Context, settings types.Settings) (Handle, error)
}

// Handle is one browsing context inside the engine. Implementations must
// be comparable (pointer types) since the registry keys on them, and
// SetDelegate must not call back into the delegate.
type Handle interface {
	Open(rt Runtime) error
	IsOpen() bool
	Close()
	Stop()
	SetActive(active bool)

	LoadURI(uri string)
	GoBack()
	GoForward()
	Reload()
	ExitFullScreen()

	SerializeState() ([]byte, error)
	RestoreState(state []byte) error
	InjectScript(script string) error

	SetUserAgentMode(mode types.UserAgentMode)
	SetUserAgentOverride(ua string)

	// SetDelegate installs the single callback endpoint; nil detaches.
	SetDelegate(d Delegate)
}
