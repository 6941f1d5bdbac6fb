package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/GriffinCanCode/sessionhub/internal/domain/listener"
	"github.com/GriffinCanCode/sessionhub/internal/domain/popup"
	"github.com/GriffinCanCode/sessionhub/internal/engine"
	"github.com/GriffinCanCode/sessionhub/internal/engine/memory"
	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sessionhub/internal/providers/settings"
	"github.com/GriffinCanCode/sessionhub/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder listens to every category and keeps a flat event log
type recorder struct {
	listener.NopTextInput
	listener.NopVideoAvailability

	mu     sync.Mutex
	events []string
	vote   func(uri string) *types.Deferred[types.AllowOrDeny]
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func (r *recorder) OnLocationChange(_ types.SessionID, uri string) { r.add("location %s", uri) }
func (r *recorder) OnCanGoBack(_ types.SessionID, v bool) { r.add("back %t", v) }
func (r *recorder) OnCanGoForward(_ types.SessionID, v bool) { r.add("forward %t", v) }
func (r *recorder) OnLoadRequest(_ types.SessionID, req types.LoadRequest) *types.Deferred[types.AllowOrDeny] {
	r.add("request %s", req.URI)
	if r.vote != nil {
		return r.vote(req.URI)
	}
	return nil
}

func (r *recorder) OnPageStart(_ types.SessionID, uri string) { r.add("start %s", uri) }
func (r *recorder) OnPageStop(_ types.SessionID, ok bool) { r.add("stop %t", ok) }
func (r *recorder) OnSecurityChange(_ types.SessionID, info types.SecurityInfo) {
	r.add("security %t", info.IsSecure)
}
func (r *recorder) OnContentBlocked(_ types.SessionID, ev types.ContentBlockEvent) {
	r.add("blocked %s", ev.URI)
}

func (r *recorder) OnTitleChange(_ types.SessionID, title string) { r.add("title %s", title) }
func (r *recorder) OnFullScreen(_ types.SessionID, v bool) { r.add("fullscreen %t", v) }
func (r *recorder) OnContextMenu(types.SessionID, int, int, types.ContextElement) {
	r.add("context menu")
}
func (r *recorder) OnFirstComposite(types.SessionID) { r.add("first composite") }

func (r *recorder) OnNewSession(id types.SessionID) { r.add("new %d", id) }
func (r *recorder) OnRemoveSession(id types.SessionID) { r.add("remove %d", id) }
func (r *recorder) OnCurrentSessionChange(old, current types.SessionID) {
	r.add("current %d->%d", old, current)
}

type popupUI struct {
	mu        sync.Mutex
	available []types.SessionID
	cleared   []types.SessionID
}

func (u *popupUI) OnPopUpAvailable(id types.SessionID) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.available = append(u.available, id)
}

func (u *popupUI) OnPopUpsCleared(id types.SessionID) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.cleared = append(u.cleared, id)
}

type fixture struct {
	rt      *memory.Runtime
	store   *settings.Store
	ui      *popupUI
	popups  *popup.Queue
	metrics *monitoring.Metrics
	reg     *Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		rt:      memory.New(),
		store:   settings.NewDefault(),
		ui:      &popupUI{},
		metrics: monitoring.NewMetrics(prometheus.NewRegistry()),
	}
	f.popups = popup.NewQueue(f.store, f.ui,
		popup.WithDecisionDelay(time.Millisecond),
		popup.WithMetrics(f.metrics),
	)
	f.reg = New(f.rt, f.store, WithPopups(f.popups), WithMetrics(f.metrics))
	t.Cleanup(f.reg.Close)
	return f
}

func (f *fixture) create(t *testing.T, private bool) types.SessionID {
	t.Helper()
	id, err := f.reg.CreateDefaultSession(context.Background(), private)
	require.NoError(t, err)
	return id
}

// current creates a normal session and makes it current
func (f *fixture) current(t *testing.T) types.SessionID {
	t.Helper()
	id := f.create(t, false)
	f.reg.SetCurrentSession(id)
	require.Equal(t, id, f.reg.CurrentSessionID())
	return id
}

func (f *fixture) handle(t *testing.T, id types.SessionID) *memory.Handle {
	t.Helper()
	h, ok := f.reg.Handle(id)
	require.True(t, ok, "session %d not registered", id)
	return h.(*memory.Handle)
}

func (f *fixture) listen() *recorder {
	rec := &recorder{}
	f.reg.AddNavigationListener(rec)
	f.reg.AddProgressListener(rec)
	f.reg.AddContentListener(rec)
	f.reg.AddSessionChangeListener(rec)
	rec.Reset()
	return rec
}

func TestCreateSession(t *testing.T) {
	f := newFixture(t)
	rec := f.listen()

	normal := f.create(t, false)
	private := f.create(t, true)

	assert.Equal(t, types.SessionID(1), normal)
	assert.Equal(t, types.SessionID(2), private)
	assert.Equal(t, []types.SessionID{normal, private}, f.reg.Sessions())
	assert.Equal(t, []types.SessionID{private}, f.reg.SessionsByPrivateMode(true))
	assert.Equal(t, []types.SessionID{normal}, f.reg.SessionsByPrivateMode(false))
	assert.Equal(t, []string{"new 1", "new 2"}, rec.Events())

	info, ok := f.reg.Session(private)
	require.True(t, ok)
	assert.True(t, info.Settings.PrivateMode)
	assert.True(t, info.Settings.TrackingProtection)
	assert.False(t, info.Open)
	assert.False(t, info.Current)

	h, ok := f.reg.Handle(normal)
	require.True(t, ok)
	id, ok := f.reg.SessionIDOf(h)
	require.True(t, ok)
	assert.Equal(t, normal, id)

	assert.Equal(t, types.NoSession, f.reg.CurrentSessionID())
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.SessionsActive))
}

func TestCreateSessionEngineUnavailable(t *testing.T) {
	f := newFixture(t)
	f.rt.FailNext(1, errors.New("no GPU"))

	id, err := f.reg.CreateDefaultSession(context.Background(), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrEngineUnavailable)
	assert.Equal(t, types.NoSession, id)
	assert.Empty(t, f.reg.Sessions())

	// the failure is scoped to that call
	f.create(t, false)
}

func TestCreateSessionCancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.reg.CreateDefaultSession(ctx, false)
	assert.ErrorIs(t, err, engine.ErrEngineUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRemoveSession(t *testing.T) {
	f := newFixture(t)
	id := f.current(t)
	other := f.create(t, false)
	h := f.handle(t, other)
	rec := f.listen()

	f.reg.RemoveSession(other)
	f.reg.RemoveSession(other)
	f.reg.RemoveSession(42)

	assert.Equal(t, []string{"remove 2"}, rec.Events())
	assert.Equal(t, 1, h.Closes())
	assert.True(t, h.IsClosed())
	assert.False(t, h.Active())

	_, ok := f.reg.Handle(other)
	assert.False(t, ok)
	_, ok = f.reg.SessionIDOf(h)
	assert.False(t, ok)
	assert.Equal(t, []types.SessionID{id}, f.reg.Sessions())

	// ids are never reused
	assert.Equal(t, types.SessionID(3), f.create(t, false))
}

func TestRemoveCurrentSessionClearsPointer(t *testing.T) {
	f := newFixture(t)
	id := f.current(t)
	rec := f.listen()

	f.reg.RemoveSession(id)

	assert.Equal(t, types.NoSession, f.reg.CurrentSessionID())
	assert.Contains(t, rec.Events(), "current 1->-1")
	_, ok := f.reg.CurrentSession()
	assert.False(t, ok)
}

func TestSetCurrentSessionProtocol(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, false)
	h := f.handle(t, id)
	rec := f.listen()

	f.reg.SetCurrentSession(id)

	assert.True(t, h.IsOpen())
	assert.True(t, h.Active())
	assert.Equal(t, []string{
		"current -1->1",
		"back false",
		"forward false",
		"location ",
		"stop true",
		"title ",
	}, rec.Events())

	info, ok := f.reg.CurrentSession()
	require.True(t, ok)
	assert.True(t, info.Open)
	assert.True(t, info.Current)
}

// blockingNew holds the first OnNewSession call until released
type blockingNew struct {
	listener.NopSessionChange
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (b *blockingNew) OnNewSession(types.SessionID) {
	b.once.Do(func() {
		close(b.entered)
		<-b.release
	})
}

func TestSetCurrentSessionWhileAnotherCallerDrains(t *testing.T) {
	f := newFixture(t)
	first := f.current(t)
	next := f.create(t, false)
	h := f.handle(t, next)

	blocker := &blockingNew{entered: make(chan struct{}), release: make(chan struct{})}
	f.reg.AddSessionChangeListener(blocker)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := f.reg.CreateDefaultSession(context.Background(), false)
		assert.NoError(t, err)
	}()
	<-blocker.entered

	f.reg.SetCurrentSession(next)
	assert.Equal(t, next, f.reg.CurrentSessionID(), "pointer moves at once")
	assert.False(t, h.IsOpen(), "switch effects wait for the running drain")
	assert.True(t, f.handle(t, first).Active())

	close(blocker.release)
	<-done

	assert.True(t, h.IsOpen())
	assert.True(t, h.Active())
	assert.False(t, f.handle(t, first).Active())
}

func TestSetCurrentSessionUnknownID(t *testing.T) {
	f := newFixture(t)
	id := f.current(t)
	h := f.handle(t, id)
	rec := f.listen()

	f.reg.SetCurrentSession(99)

	assert.Equal(t, types.NoSession, f.reg.CurrentSessionID())
	assert.False(t, h.Active())
	assert.Equal(t, []string{
		"current 1->-1",
		"back false",
		"forward false",
		"location ",
		"stop true",
		"title ",
	}, rec.Events())
}

func TestLoadAndDispatch(t *testing.T) {
	f := newFixture(t)
	f.current(t)
	rec := f.listen()

	f.reg.LoadURI("https://a.test/")

	assert.Equal(t, []string{
		"request https://a.test/",
		"start https://a.test/",
		"location https://a.test/",
		"back false",
		"forward false",
		"security true",
		"title a.test",
		"stop true",
	}, rec.Events())
	assert.Equal(t, "https://a.test/", f.reg.CurrentURI())
	assert.Equal(t, "a.test", f.reg.CurrentTitle())

	f.reg.LoadURI("https://b.test/")
	assert.Equal(t, "https://a.test/", f.reg.PreviousURI())
	assert.True(t, f.reg.CanGoBack())

	info, _ := f.reg.CurrentSession()
	assert.True(t, info.HasState)
	require.NotNil(t, info.Security)
	assert.Equal(t, "b.test", info.Security.Host)
}

func TestLoadEmptyURIGoesHome(t *testing.T) {
	f := newFixture(t)
	f.current(t)

	f.reg.LoadURI("")
	assert.Equal(t, "https://www.mozilla.org", f.reg.CurrentURI())
}

func TestDumpOnSwitchReplaysState(t *testing.T) {
	f := newFixture(t)
	first := f.current(t)
	f.reg.LoadURI("https://a.test/")

	second := f.create(t, false)
	f.reg.SetCurrentSession(second)
	f.reg.LoadURI("https://b.test/")

	rec := f.listen()
	f.reg.SetCurrentSession(first)

	assert.Equal(t, []string{
		"current 2->1",
		"back false",
		"forward false",
		"location https://a.test/",
		"stop true",
		"security true",
		"title a.test",
	}, rec.Events())
	assert.False(t, f.handle(t, second).Active())
	assert.True(t, f.handle(t, first).Active())
}

func TestAddListenerDumpsToThatListenerOnly(t *testing.T) {
	f := newFixture(t)
	f.current(t)
	f.reg.LoadURI("https://a.test/")

	existing := f.listen()
	late := &recorder{}
	f.reg.AddNavigationListener(late)
	f.reg.AddNavigationListener(late)

	assert.Equal(t, []string{"back false", "forward false", "location https://a.test/"}, late.Events())
	assert.Empty(t, existing.Events())
}

func TestEventsOfBackgroundSessionsUpdateStateOnly(t *testing.T) {
	f := newFixture(t)
	bg := f.current(t)
	f.reg.LoadURI("https://a.test/")
	f.current(t)
	rec := f.listen()

	f.handle(t, bg).SimulateTitle("background")

	info, _ := f.reg.Session(bg)
	assert.Equal(t, "background", info.Nav.Title)
	assert.Empty(t, rec.Events())
}

func TestEventsFromUnknownHandlesAreDropped(t *testing.T) {
	f := newFixture(t)
	f.current(t)
	rec := f.listen()

	foreign, err := memory.New().CreateHandle(context.Background(), types.Settings{})
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		f.reg.OnTitleChange(foreign, "x")
		f.reg.OnLocationChange(foreign, "https://x.test/")
		f.reg.OnCloseRequest(foreign)
		f.reg.OnCrash(foreign)
	})
	v, _ := f.reg.OnLoadRequest(foreign, types.LoadRequest{URI: "https://x.test/"}).Value()
	assert.Equal(t, types.Deny, v)
	assert.Empty(t, rec.Events())
}

type panicNav struct {
	listener.NopNavigation
}

func (panicNav) OnLocationChange(types.SessionID, string) { panic("broken listener") }

func TestDispatchIsolation(t *testing.T) {
	f := newFixture(t)
	f.current(t)

	f.reg.AddNavigationListener(&panicNav{})
	rec := &recorder{}
	f.reg.AddNavigationListener(rec)
	rec.Reset()

	f.reg.LoadURI("https://a.test/")

	assert.Contains(t, rec.Events(), "location https://a.test/")
	assert.GreaterOrEqual(t,
		testutil.ToFloat64(f.metrics.ListenerPanics.WithLabelValues(listener.CategoryNavigation)), 1.0)
}

func TestListenerMayReenterRegistry(t *testing.T) {
	f := newFixture(t)
	f.current(t)

	reentrant := &reentrantContent{reg: f.reg}
	f.reg.AddContentListener(reentrant)

	f.handle(t, f.reg.CurrentSessionID()).SimulateTitle("go")

	assert.Equal(t, "https://next.test/", f.reg.CurrentURI())
}

type reentrantContent struct {
	listener.NopContent
	reg *Registry
}

func (c *reentrantContent) OnTitleChange(id types.SessionID, title string) {
	if title == "go" && c.reg.CurrentSessionID() == id {
		c.reg.LoadURI("https://next.test/")
	}
}

func TestCurrentPointerInvariant(t *testing.T) {
	f := newFixture(t)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 300; i++ {
		ids := f.reg.Sessions()
		pick := func() types.SessionID {
			if len(ids) == 0 || rng.Intn(5) == 0 {
				return types.SessionID(rng.Intn(50) + 1)
			}
			return ids[rng.Intn(len(ids))]
		}

		switch rng.Intn(4) {
		case 0:
			f.create(t, rng.Intn(2) == 0)
		case 1:
			f.reg.RemoveSession(pick())
		case 2:
			f.reg.SetCurrentSession(pick())
		case 3:
			f.reg.Stack(pick())
		}

		cur := f.reg.CurrentSessionID()
		if cur != types.NoSession {
			assert.Contains(t, f.reg.Sessions(), cur, "step %d", i)
		}
		stats := f.reg.Stats()
		assert.Equal(t, len(f.reg.Sessions()), stats.TotalSessions)
	}
}

func TestConcurrentUse(t *testing.T) {
	f := newFixture(t)
	a := f.current(t)
	b := f.create(t, false)
	f.reg.AddNavigationListener(&recorder{})

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				f.reg.LoadURI(fmt.Sprintf("https://g%d-%d.test/", g, i))
				_ = f.reg.CurrentURI()
			}
		}(g)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if i%2 == 0 {
				f.reg.SetCurrentSession(b)
			} else {
				f.reg.SetCurrentSession(a)
			}
			l := &recorder{}
			f.reg.AddContentListener(l)
			f.reg.RemoveContentListener(l)
		}
	}()
	wg.Wait()

	cur := f.reg.CurrentSessionID()
	assert.True(t, cur == a || cur == b)
	assert.Len(t, f.reg.Sessions(), 2)
}

func TestClose(t *testing.T) {
	f := newFixture(t)
	id := f.current(t)
	h := f.handle(t, id)
	f.create(t, true)

	f.reg.Close()

	assert.Empty(t, f.reg.Sessions())
	assert.Equal(t, types.NoSession, f.reg.CurrentSessionID())
	assert.Equal(t, 1, h.Closes())
}
