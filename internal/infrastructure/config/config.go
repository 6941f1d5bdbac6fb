package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable name.
const Prefix = "SESSIONHUB"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Engine    EngineConfig
	Browser   BrowserConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Breaker   BreakerConfig
	RulesFile string `envconfig:"RULES_FILE"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// EngineConfig selects and configures the web engine.
type EngineConfig struct {
	Kind       string `envconfig:"KIND" default:"memory"` // memory | rod
	ControlURL string `envconfig:"CONTROL_URL"`            // attach to a running Chrome
	Headless   bool   `envconfig:"HEADLESS" default:"true"`
}

// BrowserConfig holds the browser defaults the settings store starts from.
type BrowserConfig struct {
	Homepage           string        `envconfig:"HOMEPAGE" default:"https://www.mozilla.org"`
	PrivateLanding     string        `envconfig:"PRIVATE_LANDING" default:"about:privatebrowsing"`
	Region             string        `envconfig:"REGION"`
	Multiprocess       bool          `envconfig:"MULTIPROCESS" default:"false"`
	TrackingProtection bool          `envconfig:"TRACKING_PROTECTION" default:"true"`
	UserAgentMode      string        `envconfig:"USER_AGENT_MODE" default:"vr"`
	PopupBlocking      bool          `envconfig:"POPUP_BLOCKING" default:"true"`
	Autoplay           bool          `envconfig:"AUTOPLAY" default:"true"`
	PopupDecisionDelay time.Duration `envconfig:"POPUP_DECISION_DELAY" default:"500ms"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RPS" default:"100"`
	Burst             int  `envconfig:"BURST" default:"200"`
	Enabled           bool `envconfig:"ENABLED" default:"true"`
	// Global shares one bucket between all clients instead of one per IP
	Global bool `envconfig:"GLOBAL" default:"false"`
}

// CORSConfig lists the origins allowed to call the API.
type CORSConfig struct {
	Origins []string `envconfig:"ORIGINS" default:"*"`
}

// BreakerConfig configures the circuit breaker around handle creation.
type BreakerConfig struct {
	MaxFailures uint32        `envconfig:"MAX_FAILURES" default:"3"`
	Cooldown    time.Duration `envconfig:"COOLDOWN" default:"10s"`
}

// Load loads configuration from environment variables.
// Keys are SESSIONHUB_<SECTION>_<NAME>, e.g. SESSIONHUB_SERVER_PORT.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Engine: EngineConfig{
			Kind:     "memory",
			Headless: true,
		},
		Browser: BrowserConfig{
			Homepage:           "https://www.mozilla.org",
			PrivateLanding:     "about:privatebrowsing",
			TrackingProtection: true,
			UserAgentMode:      "vr",
			PopupBlocking:      true,
			Autoplay:           true,
			PopupDecisionDelay: 500 * time.Millisecond,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		CORS: CORSConfig{
			Origins: []string{"*"},
		},
		Breaker: BreakerConfig{
			MaxFailures: 3,
			Cooldown:    10 * time.Second,
		},
	}
}
