package intercept

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/GriffinCanCode/sessionhub/internal/types"
)

// RewriteRule returns a replacement URI, or ok=false to leave u alone
type RewriteRule func(u *url.URL) (rewritten string, ok bool)

// Rewrites redirects requests matching a first-party rule and denies the
// original request.
type Rewrites struct {
	rules []RewriteRule
}

// NewRewrites creates the interceptor. With no rules it uses DefaultRewrites.
func NewRewrites(rules ...RewriteRule) *Rewrites {
	if len(rules) == 0 {
		rules = DefaultRewrites()
	}
	return &Rewrites{rules: rules}
}

// DefaultRewrites are the shipped first-party rules
func DefaultRewrites() []RewriteRule {
	return []RewriteRule{YouTubeDesktop}
}

func (r *Rewrites) Name() string { return "rewrite" }

func (r *Rewrites) Intercept(req Request, act Actions) (types.AllowOrDeny, bool) {
	u, err := url.Parse(req.Load.URI)
	if err != nil || u.Host == "" {
		return types.Deny, false
	}
	for _, rule := range r.rules {
		if target, ok := rule(u); ok && target != req.Load.URI {
			act.Redirect(req.SessionID, target)
			return types.Deny, true
		}
	}
	return types.Deny, false
}

var youTubeDomains = map[string]bool{
	"youtube.com":          true,
	"youtube-nocookie.com": true,
}

// YouTubeDesktop serves the desktop site over https with the lightweight
// layout: m. becomes www., and disable_polymer=1 is added when missing.
func YouTubeDesktop(u *url.URL) (string, bool) {
	host := strings.ToLower(u.Hostname())
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil || !youTubeDomains[domain] {
		return "", false
	}

	out := *u
	changed := false

	if !strings.EqualFold(out.Scheme, "https") {
		out.Scheme = "https"
		changed = true
	}
	if rest, ok := strings.CutPrefix(host, "m."); ok {
		out.Host = "www." + rest
		if port := u.Port(); port != "" {
			out.Host += ":" + port
		}
		changed = true
	}
	q := out.Query()
	if !q.Has("disable_polymer") {
		q.Set("disable_polymer", "1")
		out.RawQuery = q.Encode()
		changed = true
	}

	if !changed {
		return "", false
	}
	return out.String(), true
}
