package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/sessionhub/internal/domain/listener"
	"github.com/GriffinCanCode/sessionhub/internal/types"
)

func TestSetTrackingProtectionRecreatesSession(t *testing.T) {
	f := newFixture(t)
	old := f.current(t)
	f.reg.LoadURI("https://one.test/")
	f.reg.LoadURI("https://two.test/")
	oldHandle := f.handle(t, old)
	rec := f.listen()

	require.NoError(t, f.reg.SetTrackingProtection(context.Background(), false))

	id := f.reg.CurrentSessionID()
	assert.NotEqual(t, old, id)
	_, ok := f.reg.Session(old)
	assert.False(t, ok)
	assert.Equal(t, 1, oldHandle.Closes())
	assert.GreaterOrEqual(t, oldHandle.Stops(), 1)

	h := f.handle(t, id)
	assert.False(t, h.Settings().TrackingProtection)
	assert.True(t, h.IsOpen())
	assert.True(t, h.Active())
	assert.Equal(t, []string{"https://one.test/", "https://two.test/"}, h.History())
	assert.Equal(t, "https://two.test/", f.reg.CurrentURI())
	assert.True(t, f.reg.CanGoBack())

	events := rec.Events()
	assert.Contains(t, events, "new 2")
	assert.Contains(t, events, "current 1->2")
	assert.Contains(t, events, "location https://two.test/")
	assert.Contains(t, events, "remove 1")

	f.reg.GoBack()
	assert.Equal(t, "https://one.test/", f.reg.CurrentURI())

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Recreations.WithLabelValues("tracking_protection")))
}

func TestSetMultiprocessRecreatesSession(t *testing.T) {
	f := newFixture(t)
	old := f.current(t)
	f.reg.LoadURI("https://a.test/")

	require.NoError(t, f.reg.SetMultiprocess(context.Background(), true))

	id := f.reg.CurrentSessionID()
	assert.NotEqual(t, old, id)
	info, ok := f.reg.CurrentSession()
	require.True(t, ok)
	assert.True(t, info.Settings.Multiprocess)
	assert.True(t, info.HasState)
	assert.Equal(t, "https://a.test/", info.Nav.URI)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Recreations.WithLabelValues("multiprocess")))
}

func TestUpdateSettingSameValueIsNoop(t *testing.T) {
	f := newFixture(t)
	id := f.current(t)

	require.NoError(t, f.reg.SetTrackingProtection(context.Background(), true))
	require.NoError(t, f.reg.SetMultiprocess(context.Background(), false))

	assert.Equal(t, id, f.reg.CurrentSessionID())
	assert.Len(t, f.reg.Sessions(), 1)
}

func TestUpdateSettingWithoutCurrentSession(t *testing.T) {
	f := newFixture(t)
	f.create(t, false)

	require.NoError(t, f.reg.SetTrackingProtection(context.Background(), false))
	assert.Len(t, f.reg.Sessions(), 1)
}

func TestUpdateSettingUnknown(t *testing.T) {
	f := newFixture(t)
	f.current(t)

	err := f.reg.UpdateSetting(context.Background(), Setting("autoplay"), true)
	assert.ErrorIs(t, err, ErrUnknownSetting)
}

func TestRecreationFallsBackToCachedState(t *testing.T) {
	f := newFixture(t)
	old := f.current(t)
	f.reg.LoadURI("https://one.test/")
	f.reg.LoadURI("https://two.test/")
	f.handle(t, old).FailSerialize(errors.New("content process busy"))

	require.NoError(t, f.reg.SetTrackingProtection(context.Background(), false))

	h := f.handle(t, f.reg.CurrentSessionID())
	assert.Equal(t, []string{"https://one.test/", "https://two.test/"}, h.History())
	assert.Equal(t, "https://two.test/", f.reg.CurrentURI())
}

func TestRecreationEngineFailureKeepsSession(t *testing.T) {
	f := newFixture(t)
	id := f.current(t)
	f.reg.LoadURI("https://a.test/")
	f.rt.FailNext(1, errors.New("out of memory"))

	err := f.reg.SetTrackingProtection(context.Background(), false)
	assert.Error(t, err)
	assert.Equal(t, id, f.reg.CurrentSessionID())
	assert.Equal(t, "https://a.test/", f.reg.CurrentURI())
	assert.True(t, f.handle(t, id).Active())
}

func TestRecreationKeepsPrivateMode(t *testing.T) {
	f := newFixture(t)
	f.current(t)
	require.NoError(t, f.reg.SwitchPrivateMode(context.Background()))
	private := f.reg.CurrentSessionID()

	require.NoError(t, f.reg.SetTrackingProtection(context.Background(), false))

	assert.NotEqual(t, private, f.reg.CurrentSessionID())
	assert.True(t, f.reg.IsCurrentSessionPrivate())
	assert.Equal(t, "about:privatebrowsing", f.reg.CurrentURI())
}

func TestSetUserAgentModeReloadsInPlace(t *testing.T) {
	f := newFixture(t)
	id := f.current(t)
	f.reg.LoadURI("https://a.test/")
	rec := f.listen()

	f.reg.SetUserAgentMode(types.UserAgentDesktop)

	assert.Equal(t, id, f.reg.CurrentSessionID())
	assert.Equal(t, types.UserAgentDesktop, f.handle(t, id).UserAgentMode())
	info, _ := f.reg.CurrentSession()
	assert.Equal(t, types.UserAgentDesktop, info.Settings.UserAgentMode)
	assert.Equal(t, []string{"start https://a.test/", "stop true"}, rec.Events())

	rec.Reset()
	f.reg.SetUserAgentMode(types.UserAgentDesktop)
	assert.Empty(t, rec.Events())
}

// stackOnNew stacks target the first time a session other than target is created
type stackOnNew struct {
	listener.NopSessionChange
	reg    *Registry
	target types.SessionID
	once   sync.Once
}

func (s *stackOnNew) OnNewSession(id types.SessionID) {
	if id == s.target {
		return
	}
	s.once.Do(func() { s.reg.Stack(s.target) })
}

func TestRecreationYieldsToSwitchDuringRestore(t *testing.T) {
	f := newFixture(t)
	old := f.current(t)
	f.reg.LoadURI("https://a.test/")
	child := f.create(t, false)
	f.reg.AddSessionChangeListener(&stackOnNew{reg: f.reg, target: child})

	require.NoError(t, f.reg.SetTrackingProtection(context.Background(), false))

	assert.Equal(t, child, f.reg.CurrentSessionID())
	assert.Equal(t, []types.SessionID{old, child}, f.reg.Sessions())
	assert.True(t, f.reg.CanUnstack())
	assert.Len(t, f.rt.Handles(), 3)
	assert.Equal(t, 1, f.rt.Last().Closes(), "replacement is discarded")

	require.NoError(t, f.reg.Unstack())
	assert.Equal(t, old, f.reg.CurrentSessionID())
	assert.Equal(t, "https://a.test/", f.reg.CurrentURI())
}
