package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/sessionhub/internal/engine"
	"github.com/GriffinCanCode/sessionhub/internal/types"
)

// Runtime is an in-process engine. Handles navigate instantly and report
// every callback synchronously on the calling goroutine.
type Runtime struct {
	mu       sync.Mutex
	handles  []*Handle
	failNext int
	failErr  error
}

// New creates an empty runtime
func New() *Runtime {
	return &Runtime{}
}

// CreateHandle implements engine.Runtime
func (r *Runtime) CreateHandle(ctx context.Context, settings types.Settings) (engine.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failNext > 0 {
		r.failNext--
		return nil, fmt.Errorf("%w: %w", engine.ErrEngineUnavailable, r.failErr)
	}

	h := newHandle(settings)
	r.handles = append(r.handles, h)
	return h, nil
}

// FailNext makes the next n CreateHandle calls fail with err
func (r *Runtime) FailNext(n int, err error) {
	r.mu.Lock()
	r.failNext = n
	r.failErr = err
	r.mu.Unlock()
}

// Handles returns every handle created so far, in creation order
func (r *Runtime) Handles() []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Handle, len(r.handles))
	copy(out, r.handles)
	return out
}

// Last returns the most recently created handle
func (r *Runtime) Last() *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.handles) == 0 {
		return nil
	}
	return r.handles[len(r.handles)-1]
}
