package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errBoom = errors.New("boom")

func fail() error { return errBoom }
func ok() error   { return nil }

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		calls         []func() error
		expectedState State
	}{
		{
			name:          "stays closed on successes",
			calls:         []func() error{ok, ok, ok},
			expectedState: StateClosed,
		},
		{
			name:          "stays closed below threshold",
			calls:         []func() error{fail, fail},
			expectedState: StateClosed,
		},
		{
			name:          "success resets consecutive failures",
			calls:         []func() error{fail, fail, ok, fail, fail},
			expectedState: StateClosed,
		},
		{
			name:          "opens after consecutive failures",
			calls:         []func() error{fail, fail, fail},
			expectedState: StateOpen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Unix(0, 0)}
			breaker := New("test", Settings{MaxFailures: 3, Cooldown: time.Minute, Now: clock.Now})

			for _, call := range tt.calls {
				_ = breaker.Do(call)
			}

			assert.Equal(t, tt.expectedState, breaker.State())
		})
	}
}

func TestBreakerRejectsWhileOpen(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	breaker := New("test", Settings{MaxFailures: 1, Cooldown: time.Minute, Now: clock.Now})

	require.ErrorIs(t, breaker.Do(fail), errBoom)

	called := false
	err := breaker.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.Equal(t, uint64(1), breaker.Counts().Rejected)
}

func TestBreakerProbe(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	breaker := New("test", Settings{MaxFailures: 1, Cooldown: time.Minute, Now: clock.Now})
	_ = breaker.Do(fail)

	clock.Advance(time.Minute)
	assert.Equal(t, StateHalfOpen, breaker.State())

	// failed probe reopens for another cooldown
	require.ErrorIs(t, breaker.Do(fail), errBoom)
	assert.Equal(t, StateOpen, breaker.State())

	clock.Advance(time.Minute)
	require.NoError(t, breaker.Do(ok))
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerSingleProbe(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	breaker := New("test", Settings{MaxFailures: 1, Cooldown: time.Second, Now: clock.Now})
	_ = breaker.Do(fail)
	clock.Advance(time.Second)

	err := breaker.Do(func() error {
		assert.ErrorIs(t, breaker.Do(ok), ErrProbeInFlight)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerCallbacks(t *testing.T) {
	var transitions []string
	clock := &fakeClock{now: time.Unix(0, 0)}

	breaker := New("engine", Settings{
		MaxFailures: 2,
		Cooldown:    time.Second,
		Now:         clock.Now,
		OnStateChange: func(name string, from State, to State) {
			assert.Equal(t, "engine", name)
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = breaker.Do(fail)
	_ = breaker.Do(fail)
	clock.Advance(time.Second)
	_ = breaker.Do(ok)

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestCall(t *testing.T) {
	breaker := New("test", Settings{})

	v, err := Call(breaker, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = Call(breaker, func() (int, error) { return 7, errBoom })
	assert.ErrorIs(t, err, errBoom)
	assert.Zero(t, v)
	assert.Equal(t, Counts{Successes: 1, Failures: 1, ConsecutiveFailures: 1}, breaker.Counts())
}
