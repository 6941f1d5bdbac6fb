package intercept

import (
	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sessionhub/internal/types"
)

// Request is a load request together with what the registry knows about
// the session that issued it.
type Request struct {
	SessionID types.SessionID
	Current   bool
	Private   bool
	Load      types.LoadRequest
}

// Actions are the side effects an interceptor may ask for. The registry
// implements them; none of them block.
type Actions interface {
	// Redirect loads uri into the session instead of the intercepted request
	Redirect(id types.SessionID, uri string)
	InjectScript(id types.SessionID, script string)
	SetUserAgentOverride(id types.SessionID, ua string)
	TogglePrivateMode()
	HomeURI() string
}

// Interceptor may decide a load request before listeners see it.
// Returning handled=false passes the request on.
type Interceptor interface {
	Name() string
	Intercept(req Request, act Actions) (verdict types.AllowOrDeny, handled bool)
}

// Chain runs interceptors in order; the first that handles a request
// decides it.
type Chain struct {
	interceptors []Interceptor
	metrics      *monitoring.Metrics
}

// NewChain creates a chain. metrics may be nil.
func NewChain(metrics *monitoring.Metrics, interceptors ...Interceptor) *Chain {
	return &Chain{interceptors: interceptors, metrics: metrics}
}

// Run returns the verdict of the first interceptor that handles req and
// its name. handled is false when no interceptor claimed the request.
func (c *Chain) Run(req Request, act Actions) (verdict types.AllowOrDeny, name string, handled bool) {
	if c == nil {
		return types.Deny, "", false
	}
	for _, i := range c.interceptors {
		if v, ok := i.Intercept(req, act); ok {
			c.metrics.LoadIntercepted(i.Name())
			return v, i.Name(), true
		}
	}
	return types.Deny, "", false
}

// Names lists the interceptors in order
func (c *Chain) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, len(c.interceptors))
	for i, ic := range c.interceptors {
		names[i] = ic.Name()
	}
	return names
}
