package session

import (
	"fmt"

	"go.uber.org/zap"
)

// enqueueLocked appends effects to the serial queue. Must hold r.mu.
func (r *Registry) enqueueLocked(fx ...func()) {
	r.effects = append(r.effects, fx...)
}

// drain runs queued effects in order without holding the lock. Only one
// goroutine drains at a time; a call made while another drain is running
// (including from inside an effect) returns at once and its effects run
// after the current one. Waiting for them instead would deadlock a
// listener that calls back into the registry.
func (r *Registry) drain() {
	r.mu.Lock()
	if r.draining {
		r.mu.Unlock()
		return
	}
	r.draining = true
	for len(r.effects) > 0 {
		fx := r.effects[0]
		r.effects[0] = nil
		r.effects = r.effects[1:]
		r.mu.Unlock()
		r.run(fx)
		r.mu.Lock()
	}
	r.effects = nil
	r.draining = false
	r.mu.Unlock()
}

func (r *Registry) run(fx func()) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("session effect panicked",
				zap.String("panic", fmt.Sprint(p)),
				zap.Stack("stack"),
			)
		}
	}()
	fx()
}
