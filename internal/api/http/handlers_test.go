package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/GriffinCanCode/sessionhub/internal/domain/popup"
	"github.com/GriffinCanCode/sessionhub/internal/domain/session"
	"github.com/GriffinCanCode/sessionhub/internal/engine/memory"
	"github.com/GriffinCanCode/sessionhub/internal/providers/settings"
	"github.com/GriffinCanCode/sessionhub/internal/types"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m)
}

type apiResponse struct {
	Success  bool                 `json:"success"`
	Error    string               `json:"error"`
	Session  types.SessionInfo    `json:"session"`
	Sessions []types.SessionInfo  `json:"sessions"`
	Popups   []types.PopupRequest `json:"popups"`
	Resolved int                  `json:"resolved"`
	Private  bool                 `json:"private"`
	HomeURI  string               `json:"home_uri"`
	Stats    types.Stats          `json:"stats"`
	Settings []settings.Setting   `json:"settings"`
	Region   string               `json:"region"`
}

type testAPI struct {
	rt     *memory.Runtime
	reg    *session.Registry
	popups *popup.Queue
	router *gin.Engine
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := settings.NewDefault()
	a := &testAPI{rt: memory.New()}
	a.popups = popup.NewQueue(store, nil, popup.WithDecisionDelay(time.Millisecond))
	a.reg = session.New(a.rt, store, session.WithPopups(a.popups))
	t.Cleanup(a.reg.Close)

	a.router = gin.New()
	NewHandlers(a.reg, a.popups, nil).WithSettings(store).Register(a.router)
	return a
}

func (a *testAPI) do(t *testing.T, method, path string, body any) (int, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

// current creates a session through the API and makes it current
func (a *testAPI) current(t *testing.T, uri string) types.SessionID {
	t.Helper()
	code, resp := a.do(t, http.MethodPost, "/api/sessions", gin.H{"current": true, "uri": uri})
	require.Equal(t, http.StatusCreated, code, resp.Error)
	return resp.Session.ID
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)

	code, resp := a.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, types.NoSession, resp.Stats.CurrentSession)
}

func TestCreateListAndGetSessions(t *testing.T) {
	a := newTestAPI(t)

	code, resp := a.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, code)
	normal := resp.Session.ID
	assert.False(t, resp.Session.Current)

	code, resp = a.do(t, http.MethodPost, "/api/sessions", gin.H{"private": true})
	require.Equal(t, http.StatusCreated, code)
	private := resp.Session.ID
	assert.True(t, resp.Session.Settings.PrivateMode)

	_, resp = a.do(t, http.MethodGet, "/api/sessions", nil)
	require.Len(t, resp.Sessions, 2)
	assert.Equal(t, 1, resp.Stats.PrivateSessions)

	_, resp = a.do(t, http.MethodGet, "/api/sessions?private=true", nil)
	require.Len(t, resp.Sessions, 1)
	assert.Equal(t, private, resp.Sessions[0].ID)

	code, resp = a.do(t, http.MethodGet, "/api/sessions/"+normal.String(), nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, normal, resp.Session.ID)
}

func TestCreateCurrentSessionLoadsURI(t *testing.T) {
	a := newTestAPI(t)

	id := a.current(t, "https://a.test/")

	code, resp := a.do(t, http.MethodGet, "/api/current", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, id, resp.Session.ID)
	assert.Equal(t, "https://a.test/", resp.Session.Nav.URI)
}

func TestCreateSessionEngineUnavailable(t *testing.T) {
	a := newTestAPI(t)
	a.rt.FailNext(1, errors.New("gpu process gone"))

	code, resp := a.do(t, http.MethodPost, "/api/sessions", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, resp.Success)
}

func TestSessionIDValidation(t *testing.T) {
	a := newTestAPI(t)

	code, _ := a.do(t, http.MethodGet, "/api/sessions/abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.do(t, http.MethodGet, "/api/sessions/0", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.do(t, http.MethodGet, "/api/sessions/42", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = a.do(t, http.MethodDelete, "/api/sessions/42", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = a.do(t, http.MethodPost, "/api/sessions/42/current", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCurrentRoutesWithoutCurrentSession(t *testing.T) {
	a := newTestAPI(t)

	code, _ := a.do(t, http.MethodGet, "/api/current", nil)
	assert.Equal(t, http.StatusNotFound, code)

	for _, path := range []string{"/api/current/back", "/api/current/reload", "/api/private/switch"} {
		code, _ = a.do(t, http.MethodPost, path, nil)
		assert.Equal(t, http.StatusConflict, code, path)
	}

	code, _ = a.do(t, http.MethodPost, "/api/current/load", gin.H{"uri": "https://a.test/"})
	assert.Equal(t, http.StatusConflict, code)
}

func TestNavigationRoutes(t *testing.T) {
	a := newTestAPI(t)
	a.current(t, "https://a.test/")

	_, resp := a.do(t, http.MethodPost, "/api/current/load", gin.H{"uri": "https://b.test/"})
	assert.Equal(t, "https://b.test/", resp.Session.Nav.URI)
	assert.Equal(t, "https://a.test/", resp.Session.Nav.PreviousURI)

	_, resp = a.do(t, http.MethodPost, "/api/current/back", nil)
	assert.Equal(t, "https://a.test/", resp.Session.Nav.URI)
	assert.True(t, resp.Session.Nav.CanGoForward)

	_, resp = a.do(t, http.MethodPost, "/api/current/forward", nil)
	assert.Equal(t, "https://b.test/", resp.Session.Nav.URI)

	code, _ := a.do(t, http.MethodPost, "/api/current/load", "not an object")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSetCurrentAndDelete(t *testing.T) {
	a := newTestAPI(t)
	first := a.current(t, "")
	_, resp := a.do(t, http.MethodPost, "/api/sessions", nil)
	second := resp.Session.ID

	code, resp := a.do(t, http.MethodPost, "/api/sessions/"+second.String()+"/current", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, second, resp.Session.ID)

	code, _ = a.do(t, http.MethodDelete, "/api/sessions/"+second.String(), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, types.NoSession, a.reg.CurrentSessionID())

	_, ok := a.reg.Session(first)
	assert.True(t, ok)
}

func TestStackRoutes(t *testing.T) {
	a := newTestAPI(t)
	parent := a.current(t, "https://a.test/")
	_, resp := a.do(t, http.MethodPost, "/api/sessions", nil)
	child := resp.Session.ID

	code, _ := a.do(t, http.MethodPost, "/api/stack/unstack", nil)
	assert.Equal(t, http.StatusConflict, code, "empty stack")

	code, _ = a.do(t, http.MethodPost, "/api/sessions/"+parent.String()+"/stack", nil)
	assert.Equal(t, http.StatusConflict, code, "already current")

	code, resp = a.do(t, http.MethodPost, "/api/sessions/"+child.String()+"/stack", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, child, resp.Session.ID)

	code, resp = a.do(t, http.MethodPost, "/api/stack/unstack", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, parent, resp.Session.ID)

	_, ok := a.reg.Session(child)
	assert.False(t, ok, "unstacked session is removed")
}

func TestUpdateSettingsRecreatesSession(t *testing.T) {
	a := newTestAPI(t)
	old := a.current(t, "https://a.test/")

	code, resp := a.do(t, http.MethodPut, "/api/current/settings", gin.H{"tracking_protection": false})
	require.Equal(t, http.StatusOK, code, resp.Error)
	assert.NotEqual(t, old, resp.Session.ID)
	assert.False(t, resp.Session.Settings.TrackingProtection)
	assert.Equal(t, "https://a.test/", resp.Session.Nav.URI)

	code, resp = a.do(t, http.MethodPut, "/api/current/settings", gin.H{"user_agent_mode": "desktop"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, types.UserAgentDesktop, resp.Session.Settings.UserAgentMode)

	code, _ = a.do(t, http.MethodPut, "/api/current/settings", gin.H{"user_agent_mode": "tablet"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPrivateModeRoutes(t *testing.T) {
	a := newTestAPI(t)
	normal := a.current(t, "https://a.test/")

	code, resp := a.do(t, http.MethodPost, "/api/private/switch", nil)
	require.Equal(t, http.StatusOK, code, resp.Error)
	assert.True(t, resp.Private)
	assert.NotEqual(t, normal, resp.Session.ID)

	code, resp = a.do(t, http.MethodPost, "/api/private/exit", nil)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, resp.Private)
	assert.Equal(t, normal, resp.Session.ID)
	assert.Empty(t, a.reg.SessionsByPrivateMode(true))
}

func TestRegionRoute(t *testing.T) {
	a := newTestAPI(t)

	code, resp := a.do(t, http.MethodPut, "/api/region", gin.H{"region": "de"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "https://www.mozilla.org?region=de", resp.HomeURI)

	code, _ = a.do(t, http.MethodPut, "/api/region", gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPopupRoutes(t *testing.T) {
	a := newTestAPI(t)
	id := a.current(t, "https://shop.test/")
	h, ok := a.reg.Handle(id)
	require.True(t, ok)

	verdict := h.(*memory.Handle).SimulatePopup("https://ads.test/")

	_, resp := a.do(t, http.MethodGet, "/api/popups/"+id.String(), nil)
	require.Len(t, resp.Popups, 1)
	assert.Equal(t, "https://ads.test/", resp.Popups[0].TargetURI)

	code, _ := a.do(t, http.MethodPost, "/api/popups/"+id.String()+"/resolve", gin.H{})
	assert.Equal(t, http.StatusBadRequest, code, "allow is required")

	code, resp = a.do(t, http.MethodPost, "/api/popups/"+id.String()+"/resolve", gin.H{"allow": true})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, resp.Resolved)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := verdict.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.Allow, v)
}

func TestPopupRoutesWithoutQueue(t *testing.T) {
	rt := memory.New()
	reg := session.New(rt, settings.NewDefault())
	t.Cleanup(reg.Close)
	router := gin.New()
	NewHandlers(reg, nil, nil).Register(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/popups/1", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSettingsRoute(t *testing.T) {
	a := newTestAPI(t)

	code, resp := a.do(t, http.MethodGet, "/api/settings?category=privacy", nil)
	require.Equal(t, http.StatusOK, code)
	keys := make([]string, 0, len(resp.Settings))
	for _, s := range resp.Settings {
		keys = append(keys, s.Key)
	}
	assert.Equal(t, []string{settings.KeyPopupBlocking, settings.KeyTrackingProtection}, keys)

	a.do(t, http.MethodPut, "/api/region", gin.H{"region": "de"})
	_, resp = a.do(t, http.MethodGet, "/api/settings", nil)
	assert.Equal(t, "de", resp.Region)
	assert.Len(t, resp.Settings, 9)
}
