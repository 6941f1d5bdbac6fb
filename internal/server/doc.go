// Package server wires the session registry to its collaborators and
// serves the inspection API.
//
// Startup order:
//  1. Logger, Prometheus registry, tracer
//  2. Rules file and settings store
//  3. Engine runtime behind the circuit breaker
//  4. Event stream, pop-up queue, interceptor chain
//  5. Session registry, then the stream is attached to it
//  6. Router and the initial homepage session
//
// Routes:
//   - GET /          service info
//   - GET /health    liveness with registry stats
//   - /api/...       sessions, current session, stacks, private mode, pop-ups
//   - GET /ws        event stream
//   - GET /metrics   Prometheus
//
// Example Usage:
//
//	srv, err := server.New(config.LoadOrDefault())
//	if err != nil {
//	    return err
//	}
//	defer srv.Close()
//	return srv.Run(ctx)
package server
