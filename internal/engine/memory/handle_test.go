package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/sessionhub/internal/engine"
	"github.com/GriffinCanCode/sessionhub/internal/types"
)

type recorder struct {
	engine.NopDelegate
	events  []string
	verdict types.AllowOrDeny
	states  [][]byte
}

func (r *recorder) OnLoadRequest(_ engine.Handle, req types.LoadRequest) *types.Deferred[types.AllowOrDeny] {
	r.events = append(r.events, "request:"+req.URI)
	return types.Resolved(r.verdict)
}
func (r *recorder) OnPageStart(_ engine.Handle, uri string) { r.events = append(r.events, "start:"+uri) }
func (r *recorder) OnPageStop(_ engine.Handle, ok bool) {
	if ok {
		r.events = append(r.events, "stop")
	} else {
		r.events = append(r.events, "stop:failed")
	}
}
func (r *recorder) OnLocationChange(_ engine.Handle, uri string) {
	r.events = append(r.events, "location:"+uri)
}
func (r *recorder) OnTitleChange(_ engine.Handle, title string) {
	r.events = append(r.events, "title:"+title)
}
func (r *recorder) OnSessionStateChange(_ engine.Handle, state []byte) {
	r.states = append(r.states, state)
}
func (r *recorder) OnLoadError(_ engine.Handle, uri string, _ types.WebRequestError) *types.Deferred[string] {
	r.events = append(r.events, "error:"+uri)
	return types.Resolved("<html>error</html>")
}

func openHandle(t *testing.T, rt *Runtime, d engine.Delegate) *Handle {
	t.Helper()
	h, err := rt.CreateHandle(context.Background(), types.Settings{UserAgentMode: types.UserAgentVR})
	require.NoError(t, err)
	mh := h.(*Handle)
	mh.SetDelegate(d)
	require.NoError(t, mh.Open(rt))
	return mh
}

func TestLoadAllowedNavigates(t *testing.T) {
	rt := New()
	rec := &recorder{verdict: types.Allow}
	h := openHandle(t, rt, rec)

	h.LoadURI("https://a.test/page")

	assert.Equal(t, []string{
		"request:https://a.test/page",
		"start:https://a.test/page",
		"location:https://a.test/page",
		"title:a.test",
		"stop",
	}, rec.events)
	assert.Equal(t, []string{"https://a.test/page"}, h.History())
	assert.Len(t, rec.states, 1)
}

func TestLoadDeniedDoesNothing(t *testing.T) {
	rt := New()
	rec := &recorder{verdict: types.Deny}
	h := openHandle(t, rt, rec)

	h.LoadURI("https://a.test")

	assert.Equal(t, []string{"request:https://a.test"}, rec.events)
	assert.Empty(t, h.History())
}

func TestLoadIgnoredUntilOpen(t *testing.T) {
	rt := New()
	h, err := rt.CreateHandle(context.Background(), types.Settings{})
	require.NoError(t, err)

	h.LoadURI("https://a.test")
	assert.Empty(t, h.(*Handle).History())
}

func TestUnreachableHostReportsError(t *testing.T) {
	rt := New()
	rec := &recorder{verdict: types.Allow}
	h := openHandle(t, rt, rec)

	h.LoadURI("https://nowhere.invalid/")

	assert.Contains(t, rec.events, "error:https://nowhere.invalid/")
	assert.Contains(t, rec.events, "stop:failed")
	assert.Equal(t, "<html>error</html>", h.ErrorPage())
	assert.Empty(t, h.History())
}

func TestHistoryNavigation(t *testing.T) {
	rt := New()
	h := openHandle(t, rt, engine.NopDelegate{})

	h.LoadURI("https://a.test")
	h.LoadURI("https://b.test")
	h.LoadURI("https://c.test")

	h.GoBack()
	h.GoBack()
	assert.Equal(t, "https://a.test", h.CurrentURI())
	h.GoBack()
	assert.Equal(t, "https://a.test", h.CurrentURI())

	h.GoForward()
	assert.Equal(t, "https://b.test", h.CurrentURI())

	// new load truncates forward history
	h.LoadURI("https://d.test")
	assert.Equal(t, []string{"https://a.test", "https://b.test", "https://d.test"}, h.History())
}

func TestSerializeRestoreRoundTrip(t *testing.T) {
	rt := New()
	src := openHandle(t, rt, engine.NopDelegate{})
	src.LoadURI("https://a.test")
	src.LoadURI("https://b.test")
	src.GoBack()

	state, err := src.SerializeState()
	require.NoError(t, err)

	rec := &recorder{}
	dst, err := rt.CreateHandle(context.Background(), types.Settings{TrackingProtection: true})
	require.NoError(t, err)
	dst.SetDelegate(rec)
	require.NoError(t, dst.RestoreState(state))

	md := dst.(*Handle)
	assert.Equal(t, src.History(), md.History())
	assert.Equal(t, "https://a.test", md.CurrentURI())
	assert.Contains(t, rec.events, "location:https://a.test")
}

func TestRestoreRejectsGarbage(t *testing.T) {
	rt := New()
	h := openHandle(t, rt, engine.NopDelegate{})
	assert.Error(t, h.RestoreState([]byte("not zstd")))
}

func TestSerializeFailure(t *testing.T) {
	rt := New()
	h := openHandle(t, rt, engine.NopDelegate{})
	boom := errors.New("boom")

	h.FailSerialize(boom)
	_, err := h.SerializeState()
	assert.ErrorIs(t, err, boom)

	h.FailSerialize(nil)
	_, err = h.SerializeState()
	assert.NoError(t, err)
}

func TestInjectScript(t *testing.T) {
	rt := New()
	rec := &recorder{verdict: types.Allow}
	h := openHandle(t, rt, rec)
	h.LoadURI("https://a.test")

	err := h.InjectScript(`console.log("hi"); document.title = "Renamed"; window.location.replace("https://b.test")`)
	require.NoError(t, err)

	assert.Equal(t, []string{"hi"}, h.Console())
	assert.Contains(t, rec.events, "title:Renamed")
	assert.Equal(t, "https://b.test", h.CurrentURI())
	assert.Len(t, h.Scripts(), 1)
}

func TestInjectScriptErrors(t *testing.T) {
	rt := New()
	h, err := rt.CreateHandle(context.Background(), types.Settings{})
	require.NoError(t, err)
	assert.ErrorIs(t, h.InjectScript("1"), engine.ErrNotOpen)

	open := openHandle(t, rt, engine.NopDelegate{})
	assert.Error(t, open.InjectScript("this is not javascript ("))
}

func TestCloseIsCountedAndFinal(t *testing.T) {
	rt := New()
	h := openHandle(t, rt, engine.NopDelegate{})
	h.SetActive(true)

	h.Close()
	assert.True(t, h.IsClosed())
	assert.False(t, h.IsOpen())
	assert.False(t, h.Active())
	assert.Equal(t, 1, h.Closes())
	assert.ErrorIs(t, h.Open(rt), engine.ErrNotOpen)
}

func TestRuntimeFailNext(t *testing.T) {
	rt := New()
	rt.FailNext(1, errors.New("gpu lost"))

	_, err := rt.CreateHandle(context.Background(), types.Settings{})
	assert.ErrorIs(t, err, engine.ErrEngineUnavailable)

	_, err = rt.CreateHandle(context.Background(), types.Settings{})
	assert.NoError(t, err)
	assert.Len(t, rt.Handles(), 1)
}
