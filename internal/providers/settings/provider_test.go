package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/config"
	"github.com/GriffinCanCode/sessionhub/internal/types"
)

type recordingPersister struct {
	mu    sync.Mutex
	calls []map[string]bool
	err   error
}

func (p *recordingPersister) Persist(_ context.Context, d map[string]bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, d)
	return p.err
}

func TestDefaults(t *testing.T) {
	s := NewDefault()

	assert.Equal(t, "https://www.mozilla.org", s.Homepage())
	assert.Equal(t, "about:privatebrowsing", s.PrivateLanding())
	assert.True(t, s.TrackingProtection())
	assert.True(t, s.PopupBlocking())
	assert.Equal(t, types.UserAgentVR, s.UserAgentMode())

	settings := s.SessionSettings(true)
	assert.True(t, settings.PrivateMode)
	assert.True(t, settings.TrackingProtection)
}

func TestSetChecksType(t *testing.T) {
	s := NewDefault()

	require.NoError(t, s.Set(KeyPopupBlocking, false))
	assert.False(t, s.PopupBlocking())

	assert.Error(t, s.Set(KeyPopupBlocking, "no"))
	assert.Error(t, s.Set("unknown.key", true))

	require.NoError(t, s.Reset(KeyPopupBlocking))
	assert.True(t, s.PopupBlocking())
}

func TestUnknownUserAgentModeFallsBack(t *testing.T) {
	s := NewDefault()
	require.NoError(t, s.Set(KeyUserAgentMode, "toaster"))
	assert.Equal(t, types.UserAgentVR, s.UserAgentMode())
}

func TestListByCategory(t *testing.T) {
	s := NewDefault()

	privacy := s.List("privacy")
	require.Len(t, privacy, 2)
	assert.Equal(t, KeyPopupBlocking, privacy[0].Key)
	assert.Equal(t, KeyTrackingProtection, privacy[1].Key)
	assert.Len(t, s.List(""), 9)
}

func TestMarkDRMShownOnce(t *testing.T) {
	s := NewDefault()
	assert.True(t, s.MarkDRMShown())
	assert.False(t, s.MarkDRMShown())
	assert.True(t, s.DRMShown())
}

func TestPopupDecisions(t *testing.T) {
	p := &recordingPersister{}
	s := New(config.Default().Browser, &config.Rules{PopupDecisions: map[string]bool{"Seeded.test": false}}, WithPersister(p))

	allowed, known := s.PopupDecision("seeded.test")
	assert.True(t, known)
	assert.False(t, allowed)

	_, known = s.PopupDecision("other.test")
	assert.False(t, known)

	s.RememberPopupDecision("A.test", true)
	s.Flush()

	allowed, known = s.PopupDecision("a.test")
	assert.True(t, known)
	assert.True(t, allowed)

	require.Len(t, p.calls, 1)
	assert.Equal(t, map[string]bool{"seeded.test": false, "a.test": true}, p.calls[0])
}

func TestPersistFailureIsLogged(t *testing.T) {
	p := &recordingPersister{err: errors.New("disk full")}
	s := New(config.Default().Browser, nil, WithPersister(p))

	s.RememberPopupDecision("a.test", true)
	s.Flush()

	allowed, known := s.PopupDecision("a.test")
	assert.True(t, known && allowed)
}

func TestFilePersisterKeepsOtherSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	seed, err := config.EncodeRules(".yaml", &config.Rules{DRMHosts: []string{"*.drm.test"}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, seed, 0o600))

	fp := NewFilePersister(path)
	require.NoError(t, fp.Persist(context.Background(), map[string]bool{"a.test": true}))

	rules, err := config.LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"*.drm.test"}, rules.DRMHosts)
	assert.Equal(t, map[string]bool{"a.test": true}, rules.PopupDecisions)
}

func TestFilePersisterKeepsEveryRememberedDecision(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	s := New(config.Default().Browser, nil, WithPersister(NewFilePersister(path)))

	want := make(map[string]bool)
	for i := 0; i < 8; i++ {
		origin := fmt.Sprintf("site%d.test", i)
		s.RememberPopupDecision(origin, i%2 == 0)
		want[origin] = i%2 == 0
	}
	s.Flush()

	rules, err := config.LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, want, rules.PopupDecisions)

	reloaded := New(config.Default().Browser, rules)
	for origin, allowed := range want {
		got, known := reloaded.PopupDecision(origin)
		assert.True(t, known, origin)
		assert.Equal(t, allowed, got, origin)
	}
}

func TestPersistRetriesAfterFailure(t *testing.T) {
	p := &recordingPersister{err: errors.New("disk full")}
	s := New(config.Default().Browser, nil, WithPersister(p))

	s.RememberPopupDecision("a.test", true)
	s.Flush()

	p.mu.Lock()
	p.err = nil
	p.mu.Unlock()
	s.RememberPopupDecision("b.test", false)
	s.Flush()

	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.calls)
	assert.Equal(t, map[string]bool{"a.test": true, "b.test": false}, p.calls[len(p.calls)-1])
}
