package intercept

import (
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/config"
	"github.com/GriffinCanCode/sessionhub/internal/types"
)

// UserAgentOverrides sets the per-session user agent override of the
// current session from host glob rules. It never decides a request.
type UserAgentOverrides struct {
	rules []config.UserAgentRule
}

// NewUserAgentOverrides drops rules whose pattern is not a valid glob
func NewUserAgentOverrides(rules []config.UserAgentRule) *UserAgentOverrides {
	valid := make([]config.UserAgentRule, 0, len(rules))
	for _, r := range rules {
		if doublestar.ValidatePattern(strings.ToLower(r.Host)) {
			valid = append(valid, config.UserAgentRule{Host: strings.ToLower(r.Host), UserAgent: r.UserAgent})
		}
	}
	return &UserAgentOverrides{rules: valid}
}

func (o *UserAgentOverrides) Name() string { return "user_agent" }

func (o *UserAgentOverrides) Intercept(req Request, act Actions) (types.AllowOrDeny, bool) {
	if req.Current {
		act.SetUserAgentOverride(req.SessionID, o.Lookup(req.Load.URI))
	}
	return types.Deny, false
}

// Lookup returns the override for uri, or "" when no rule matches
func (o *UserAgentOverrides) Lookup(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}
	for _, r := range o.rules {
		if ok, _ := doublestar.Match(r.Host, host); ok {
			return r.UserAgent
		}
	}
	return ""
}
