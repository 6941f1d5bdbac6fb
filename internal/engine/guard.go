package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/sessionhub/internal/types"
)

// Guard wraps a runtime so that handle creation goes through a circuit
// breaker. Every failure, including an open circuit, wraps
// ErrEngineUnavailable.
func Guard(rt Runtime, breaker *resilience.Breaker) Runtime {
	return &guardedRuntime{rt: rt, breaker: breaker}
}

type guardedRuntime struct {
	rt      Runtime
	breaker *resilience.Breaker
}

func (g *guardedRuntime) CreateHandle(ctx context.Context, settings types.Settings) (Handle, error) {
	h, err := resilience.Call(g.breaker, func() (Handle, error) {
		return g.rt.CreateHandle(ctx, settings)
	})
	if err == nil {
		return h, nil
	}
	if errors.Is(err, ErrEngineUnavailable) {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
}
