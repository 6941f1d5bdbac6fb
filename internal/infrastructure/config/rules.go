package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// UserAgentRule forces a user agent string for hosts matching a glob.
type UserAgentRule struct {
	Host      string `json:"host" yaml:"host" toml:"host"`
	UserAgent string `json:"user_agent" yaml:"user_agent" toml:"user_agent"`
}

// Rules is the optional per-site rules file.
type Rules struct {
	UserAgents     []UserAgentRule `json:"user_agents" yaml:"user_agents" toml:"user_agents"`
	DRMHosts       []string        `json:"drm_hosts" yaml:"drm_hosts" toml:"drm_hosts"`
	PopupDecisions map[string]bool `json:"popup_decisions" yaml:"popup_decisions" toml:"popup_decisions"`
}

// LoadRules reads a rules file, choosing the decoder by extension.
// An empty path yields empty rules.
func LoadRules(path string) (*Rules, error) {
	rules := &Rules{}
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	if err := DecodeRules(filepath.Ext(path), data, rules); err != nil {
		return nil, fmt.Errorf("parse rules %s: %w", path, err)
	}
	return rules, nil
}

// DecodeRules decodes data in the format named by ext (".yaml", ".toml", ".json").
func DecodeRules(ext string, data []byte, rules *Rules) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, rules)
	case ".toml":
		return toml.Unmarshal(data, rules)
	case ".json":
		return sonic.Unmarshal(data, rules)
	default:
		return fmt.Errorf("unsupported rules format %q", ext)
	}
}

// EncodeRules is the inverse of DecodeRules.
func EncodeRules(ext string, rules *Rules) ([]byte, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return yaml.Marshal(rules)
	case ".toml":
		return toml.Marshal(rules)
	case ".json":
		return sonic.MarshalIndent(rules, "", "  ")
	default:
		return nil, fmt.Errorf("unsupported rules format %q", ext)
	}
}
