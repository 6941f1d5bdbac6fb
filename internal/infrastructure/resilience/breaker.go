package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrProbeInFlight is returned in half-open state while the single probe runs
	ErrProbeInFlight = errors.New("circuit breaker probe in flight")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the circuit breaker behavior
type Settings struct {
	// MaxFailures is the number of consecutive failures that opens the circuit
	MaxFailures uint32
	// Cooldown is how long the circuit stays open before a probe is allowed
	Cooldown time.Duration
	// OnStateChange is called whenever the state changes, outside the lock
	OnStateChange func(name string, from State, to State)
	// Now is the clock; tests replace it
	Now func() time.Time
}

// Counts holds the statistics for the circuit breaker
type Counts struct {
	Successes           uint64
	Failures            uint64
	Rejected            uint64
	ConsecutiveFailures uint32
}

// Breaker opens after MaxFailures consecutive failures, rejects calls for
// Cooldown, then lets exactly one probe through. A successful probe
// closes the circuit; a failed one reopens it.
type Breaker struct {
	name     string
	settings Settings

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
	probing  bool
}

// New creates a new circuit breaker with the given settings
func New(name string, settings Settings) *Breaker {
	if settings.MaxFailures == 0 {
		settings.MaxFailures = 5
	}
	if settings.Cooldown == 0 {
		settings.Cooldown = 30 * time.Second
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}
	return &Breaker{name: name, settings: settings}
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state, accounting for an elapsed cooldown
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && b.cooledDown() {
		return StateHalfOpen
	}
	return b.state
}

// Counts returns a copy of the internal counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Do runs fn if the circuit accepts it and records the outcome
func (b *Breaker) Do(fn func() error) error {
	if err := b.acquire(); err != nil {
		return err
	}

	success := false
	defer func() {
		b.release(success)
	}()

	err := fn()
	success = err == nil
	return err
}

// Call is Do for functions returning a value
func Call[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var out T
	err := b.Do(func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (b *Breaker) acquire() error {
	b.mu.Lock()

	switch b.state {
	case StateOpen:
		if !b.cooledDown() {
			b.counts.Rejected++
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		notify := b.transition(StateHalfOpen)
		b.probing = true
		b.mu.Unlock()
		notify()
		return nil
	case StateHalfOpen:
		if b.probing {
			b.counts.Rejected++
			b.mu.Unlock()
			return ErrProbeInFlight
		}
		b.probing = true
	}

	b.mu.Unlock()
	return nil
}

func (b *Breaker) release(success bool) {
	b.mu.Lock()

	notify := func() {}
	if success {
		b.counts.Successes++
		b.counts.ConsecutiveFailures = 0
		if b.state == StateHalfOpen {
			b.probing = false
			notify = b.transition(StateClosed)
		}
	} else {
		b.counts.Failures++
		b.counts.ConsecutiveFailures++
		switch {
		case b.state == StateHalfOpen:
			b.probing = false
			notify = b.transition(StateOpen)
		case b.state == StateClosed && b.counts.ConsecutiveFailures >= b.settings.MaxFailures:
			notify = b.transition(StateOpen)
		}
	}

	b.mu.Unlock()
	notify()
}

// transition must be called with mu held; the returned func runs the
// callback and must be called after unlocking.
func (b *Breaker) transition(to State) func() {
	from := b.state
	if from == to {
		return func() {}
	}
	b.state = to
	if to == StateOpen {
		b.openedAt = b.settings.Now()
	}

	cb := b.settings.OnStateChange
	if cb == nil {
		return func() {}
	}
	name := b.name
	return func() { cb(name, from, to) }
}

func (b *Breaker) cooledDown() bool {
	return !b.settings.Now().Before(b.openedAt.Add(b.settings.Cooldown))
}
