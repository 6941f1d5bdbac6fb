package popup

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/GriffinCanCode/sessionhub/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memStore struct {
	mu        sync.Mutex
	blocking  bool
	decisions map[string]bool
}

func newStore() *memStore {
	return &memStore{blocking: true, decisions: map[string]bool{}}
}

func (s *memStore) PopupBlocking() bool { return s.blocking }

func (s *memStore) PopupDecision(origin string) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.decisions[origin]
	return v, ok
}

func (s *memStore) RememberPopupDecision(origin string, allowed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions[origin] = allowed
}

type notifications struct {
	mu        sync.Mutex
	available []types.SessionID
	cleared   []types.SessionID
}

func (n *notifications) OnPopUpAvailable(id types.SessionID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.available = append(n.available, id)
}

func (n *notifications) OnPopUpsCleared(id types.SessionID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cleared = append(n.cleared, id)
}

func value(t *testing.T, d *types.Deferred[types.AllowOrDeny]) (types.AllowOrDeny, bool) {
	t.Helper()
	return d.Value()
}

func TestBlockingDisabledAllowsImmediately(t *testing.T) {
	store := newStore()
	store.blocking = false
	q := NewQueue(store, nil)

	v, ok := value(t, q.Request(1, "https://a.test", "https://popup.test"))
	require.True(t, ok)
	assert.Equal(t, types.Allow, v)
	assert.False(t, q.HasPending(1))
}

func TestSingleAvailabilityNotification(t *testing.T) {
	n := &notifications{}
	q := NewQueue(newStore(), n)

	r1 := q.Request(1, "https://A.test/page", "https://p1.test")
	r2 := q.Request(1, "https://a.test/other", "https://p2.test")
	q.Request(2, "https://b.test", "https://p3.test")

	assert.Equal(t, []types.SessionID{1, 2}, n.available)

	pending := q.Pending(1)
	require.Len(t, pending, 2)
	assert.Equal(t, "a.test", pending[0].Origin)
	assert.Equal(t, "https://p1.test", pending[0].TargetURI)
	assert.NotEqual(t, pending[0].ID, pending[1].ID)

	_, done := r1.Value()
	assert.False(t, done)

	assert.Equal(t, 2, q.ResolvePending(1, true, false))
	for _, r := range []*types.Deferred[types.AllowOrDeny]{r1, r2} {
		v, ok := r.Value()
		require.True(t, ok)
		assert.Equal(t, types.Allow, v)
	}
	assert.Equal(t, []types.SessionID{1}, n.cleared)

	// queue empty again: next request notifies again
	q.Request(1, "https://a.test", "https://p4.test")
	assert.Equal(t, []types.SessionID{1, 2, 1}, n.available)

	q.Close()
}

func TestResolveIsIdempotent(t *testing.T) {
	n := &notifications{}
	q := NewQueue(newStore(), n)
	q.Request(1, "https://a.test", "https://p.test")

	assert.Equal(t, 1, q.ResolvePending(1, false, false))
	assert.Equal(t, 0, q.ResolvePending(1, true, false))
	assert.Equal(t, []types.SessionID{1}, n.cleared)
}

func TestRememberedDecisionIsDelayed(t *testing.T) {
	store := newStore()
	q := NewQueue(store, nil, WithDecisionDelay(10*time.Millisecond))

	q.Request(1, "https://a.test", "https://p.test")
	q.ResolvePending(1, true, true)

	allowed, known := store.PopupDecision("a.test")
	require.True(t, known)
	assert.True(t, allowed)

	r := q.Request(1, "https://a.test/again", "https://p2.test")
	_, done := r.Value()
	assert.False(t, done, "remembered decisions are not applied synchronously")
	assert.False(t, q.HasPending(1))

	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("remembered decision never applied")
	}
	v, _ := r.Value()
	assert.Equal(t, types.Allow, v)
}

func TestPurgeCancelsDelayedAsDeny(t *testing.T) {
	store := newStore()
	store.decisions["a.test"] = true
	n := &notifications{}
	q := NewQueue(store, n, WithDecisionDelay(time.Hour))

	delayed := q.Request(1, "https://a.test", "https://p.test")
	queued := q.Request(1, "https://b.test", "https://p.test")

	assert.Equal(t, 2, q.Purge(1))

	for _, r := range []*types.Deferred[types.AllowOrDeny]{delayed, queued} {
		v, ok := r.Value()
		require.True(t, ok)
		assert.Equal(t, types.Deny, v)
	}
	assert.Equal(t, []types.SessionID{1}, n.cleared)
	assert.Equal(t, 0, q.Purge(1))
}

func TestRemoveOnlyTouchesSession(t *testing.T) {
	q := NewQueue(newStore(), nil)
	q.Request(1, "https://a.test", "https://p.test")
	q.Request(2, "https://a.test", "https://p.test")

	q.Remove(1)
	assert.False(t, q.HasPending(1))
	assert.True(t, q.HasPending(2))
	q.Close()
	assert.False(t, q.HasPending(2))
}

func TestOriginOf(t *testing.T) {
	assert.Equal(t, "a.test", OriginOf("HTTPS://A.Test:8443/x"))
	assert.Equal(t, "about:blank", OriginOf("About:Blank"))
}
