package intercept

import (
	"net/url"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/sessionhub/internal/types"
)

// BridgeScheme is the scheme error pages use to talk back to the browser
const BridgeScheme = "errorbridge"

// Error bridge actions
const (
	BridgeRetry = "retry"
	BridgeHome  = "home"
	BridgeBack  = "back"
)

// BridgeURL builds the link an error page uses for an action
func BridgeURL(action, uri string) string {
	u := url.URL{Scheme: BridgeScheme, Host: action}
	if uri != "" {
		u.RawQuery = url.Values{"uri": {uri}}.Encode()
	}
	return u.String()
}

// ErrorBridge consumes errorbridge:// loads and answers them with a script
// injected into the page.
type ErrorBridge struct{}

func (ErrorBridge) Name() string { return "error_bridge" }

func (ErrorBridge) Intercept(req Request, act Actions) (types.AllowOrDeny, bool) {
	u, err := url.Parse(req.Load.URI)
	if err != nil || !strings.EqualFold(u.Scheme, BridgeScheme) {
		return types.Deny, false
	}

	var script string
	switch strings.ToLower(u.Host) {
	case BridgeRetry:
		target := u.Query().Get("uri")
		if target == "" {
			script = "window.location.reload()"
			break
		}
		script = ReplaceLocation(target)
	case BridgeHome:
		script = ReplaceLocation(act.HomeURI())
	case BridgeBack:
		script = "window.history.back()"
	}
	if script != "" {
		act.InjectScript(req.SessionID, script)
	}
	// never forwarded, known action or not
	return types.Deny, true
}

// ReplaceLocation is the script that navigates page content to uri
// without adding a history entry.
func ReplaceLocation(uri string) string {
	quoted, err := sonic.MarshalString(uri)
	if err != nil {
		quoted = `""`
	}
	return "window.location.replace(" + quoted + ")"
}
