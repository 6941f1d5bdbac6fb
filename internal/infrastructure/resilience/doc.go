/*
Package resilience provides a circuit breaker for engine handle creation.

# Overview

When the web engine cannot create sessions (the browser process died, the
DevTools endpoint is gone) repeated attempts only pile up latency. The
breaker fails fast after a run of consecutive failures and lets a single
probe through once the cooldown has passed.

# Usage

	breaker := resilience.New("engine", resilience.Settings{
		MaxFailures: 3,
		Cooldown:    10 * time.Second,
	})

	handle, err := resilience.Call(breaker, func() (engine.Handle, error) {
		return rt.CreateHandle(ctx, settings)
	})

# States

	Closed --[MaxFailures]-> Open --[Cooldown]-> Half-Open --[probe ok]-> Closed
	                                               |
	                                         [probe failed]
	                                               v
	                                             Open
*/
package resilience
