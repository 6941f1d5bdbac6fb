package settings

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/config"
	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sessionhub/internal/types"
)

// Setting keys
const (
	KeyHomepage           = "browser.homepage"
	KeyPrivateLanding     = "browser.private_landing"
	KeyRegion             = "browser.region"
	KeyMultiprocess       = "browser.multiprocess"
	KeyTrackingProtection = "browser.tracking_protection"
	KeyUserAgentMode      = "browser.user_agent_mode"
	KeyPopupBlocking      = "browser.popup_blocking"
	KeyAutoplay           = "media.autoplay"
	KeyDRMShown           = "drm.dialog_shown"
)

// Persister saves pop-up decisions somewhere durable
type Persister interface {
	Persist(ctx context.Context, decisions map[string]bool) error
}

// Setting represents a browser setting
type Setting struct {
	Key         string `json:"key"`
	Value       any    `json:"value"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Default     any    `json:"default"`
}

// Store is the read-mostly settings collaborator of the registry.
// Reads never block on persistence; writes persist on a goroutine.
type Store struct {
	cache     sync.Map // key -> Setting
	decisions sync.Map // origin -> bool

	persister Persister
	logger    *logging.Logger
	pending   sync.WaitGroup
	timeout   time.Duration

	// version counts decision changes; persisted is the last version on
	// disk. Both writes and persisted are serialized by persistMu.
	version   atomic.Uint64
	persistMu sync.Mutex
	persisted uint64
}

// Option configures a Store
type Option func(*Store)

// WithPersister saves pop-up decisions through p
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithLogger sets the logger
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a store seeded from browser config and optional rules
func New(cfg config.BrowserConfig, rules *config.Rules, opts ...Option) *Store {
	s := &Store{timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNop(s.logger).Named("settings")

	s.initializeDefaults(cfg)
	if rules != nil {
		for origin, allowed := range rules.PopupDecisions {
			s.decisions.Store(normalizeOrigin(origin), allowed)
		}
	}
	return s
}

// NewDefault creates a store with built-in defaults and no persistence
func NewDefault() *Store {
	return New(config.Default().Browser, nil)
}

func (s *Store) initializeDefaults(cfg config.BrowserConfig) {
	defaults := []Setting{
		{Key: KeyHomepage, Value: cfg.Homepage, Category: "browser", Description: "Homepage URI"},
		{Key: KeyPrivateLanding, Value: cfg.PrivateLanding, Category: "browser", Description: "Private browsing landing page"},
		{Key: KeyRegion, Value: cfg.Region, Category: "browser", Description: "Region appended to the homepage"},
		{Key: KeyMultiprocess, Value: cfg.Multiprocess, Category: "browser", Description: "Run content in separate processes"},
		{Key: KeyTrackingProtection, Value: cfg.TrackingProtection, Category: "privacy", Description: "Block trackers"},
		{Key: KeyUserAgentMode, Value: cfg.UserAgentMode, Category: "browser", Description: "User agent family"},
		{Key: KeyPopupBlocking, Value: cfg.PopupBlocking, Category: "privacy", Description: "Ask before opening pop-ups"},
		{Key: KeyAutoplay, Value: cfg.Autoplay, Category: "media", Description: "Allow media autoplay"},
		{Key: KeyDRMShown, Value: false, Category: "media", Description: "DRM dialog already shown"},
	}

	for _, d := range defaults {
		d.Default = d.Value
		s.cache.Store(d.Key, d)
	}
}

// Get returns a setting by key
func (s *Store) Get(key string) (Setting, bool) {
	v, ok := s.cache.Load(key)
	if !ok {
		return Setting{}, false
	}
	return v.(Setting), true
}

// Set updates a known setting. The value must have the default's type.
func (s *Store) Set(key string, value any) error {
	v, ok := s.cache.Load(key)
	if !ok {
		return fmt.Errorf("setting not found: %s", key)
	}
	setting := v.(Setting)
	if fmt.Sprintf("%T", value) != fmt.Sprintf("%T", setting.Default) {
		return fmt.Errorf("setting %s expects %T, got %T", key, setting.Default, value)
	}
	setting.Value = value
	s.cache.Store(key, setting)
	return nil
}

// Reset restores the default value of a setting
func (s *Store) Reset(key string) error {
	v, ok := s.cache.Load(key)
	if !ok {
		return fmt.Errorf("setting not found: %s", key)
	}
	setting := v.(Setting)
	setting.Value = setting.Default
	s.cache.Store(key, setting)
	return nil
}

// List returns settings sorted by key, optionally filtered by category
func (s *Store) List(category string) []Setting {
	var out []Setting
	s.cache.Range(func(_, value any) bool {
		setting := value.(Setting)
		if category == "" || setting.Category == category {
			out = append(out, setting)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (s *Store) str(key string) string {
	setting, _ := s.Get(key)
	v, _ := setting.Value.(string)
	return v
}

func (s *Store) flag(key string) bool {
	setting, _ := s.Get(key)
	v, _ := setting.Value.(bool)
	return v
}

func (s *Store) Homepage() string       { return s.str(KeyHomepage) }
func (s *Store) PrivateLanding() string { return s.str(KeyPrivateLanding) }
func (s *Store) Region() string         { return s.str(KeyRegion) }
func (s *Store) Multiprocess() bool     { return s.flag(KeyMultiprocess) }
func (s *Store) TrackingProtection() bool {
	return s.flag(KeyTrackingProtection)
}
func (s *Store) PopupBlocking() bool { return s.flag(KeyPopupBlocking) }
func (s *Store) Autoplay() bool      { return s.flag(KeyAutoplay) }

// UserAgentMode returns the configured mode, defaulting to VR
func (s *Store) UserAgentMode() types.UserAgentMode {
	switch mode := types.UserAgentMode(s.str(KeyUserAgentMode)); mode {
	case types.UserAgentMobile, types.UserAgentDesktop, types.UserAgentVR:
		return mode
	default:
		return types.UserAgentVR
	}
}

// SetRegion sets the region used by the homepage
func (s *Store) SetRegion(region string) {
	_ = s.Set(KeyRegion, region)
}

// SessionSettings returns the settings a new session starts with
func (s *Store) SessionSettings(private bool) types.Settings {
	return types.Settings{
		Multiprocess:             s.Multiprocess(),
		PrivateMode:              private,
		TrackingProtection:       s.TrackingProtection(),
		SuspendMediaWhenInactive: true,
		UserAgentMode:            s.UserAgentMode(),
	}
}

// DRMShown reports whether the DRM dialog was already shown
func (s *Store) DRMShown() bool { return s.flag(KeyDRMShown) }

// MarkDRMShown records that the DRM dialog was shown. It reports whether
// this call changed the flag.
func (s *Store) MarkDRMShown() bool {
	for {
		v, _ := s.cache.Load(KeyDRMShown)
		setting := v.(Setting)
		if shown, _ := setting.Value.(bool); shown {
			return false
		}
		next := setting
		next.Value = true
		if s.cache.CompareAndSwap(KeyDRMShown, v, next) {
			return true
		}
	}
}

// PopupDecision returns the remembered decision for an origin
func (s *Store) PopupDecision(origin string) (allowed bool, known bool) {
	v, ok := s.decisions.Load(normalizeOrigin(origin))
	if !ok {
		return false, false
	}
	return v.(bool), true
}

// RememberPopupDecision stores a decision and persists asynchronously
func (s *Store) RememberPopupDecision(origin string, allowed bool) {
	s.decisions.Store(normalizeOrigin(origin), allowed)
	s.persistAsync()
}

// PopupDecisions returns a copy of all remembered decisions
func (s *Store) PopupDecisions() map[string]bool {
	out := make(map[string]bool)
	s.decisions.Range(func(k, v any) bool {
		out[k.(string)] = v.(bool)
		return true
	})
	return out
}

// Flush waits for in-flight persistence
func (s *Store) Flush() {
	s.pending.Wait()
}

func (s *Store) persistAsync() {
	if s.persister == nil {
		return
	}
	s.version.Add(1)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		s.persistLatest()
	}()
}

// persistLatest writes the decisions as they are now, skipping the write
// when a newer snapshot already reached the persister.
func (s *Store) persistLatest() {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	v := s.version.Load()
	if v <= s.persisted {
		return
	}
	snapshot := s.PopupDecisions()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.persister.Persist(ctx, snapshot); err != nil {
		s.logger.Warn("failed to persist pop-up decisions", zap.Error(err))
		return
	}
	s.persisted = v
}

func normalizeOrigin(origin string) string {
	return strings.ToLower(strings.TrimSpace(origin))
}
