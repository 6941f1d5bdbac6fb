package intercept

import (
	"strings"

	"github.com/GriffinCanCode/sessionhub/internal/types"
)

// PrivateBrowsingURI switches the browser into private mode when loaded
const PrivateBrowsingURI = "about:privatebrowsing"

// PrivateBrowsing toggles private mode when a normal session navigates to
// the private browsing page; the normal session itself stays where it is.
// Private sessions load it as a plain page, which is also how the private
// landing page avoids toggling back.
type PrivateBrowsing struct {
	URI string
}

func (p PrivateBrowsing) Name() string { return "private_browsing" }

func (p PrivateBrowsing) Intercept(req Request, act Actions) (types.AllowOrDeny, bool) {
	uri := p.URI
	if uri == "" {
		uri = PrivateBrowsingURI
	}
	if !strings.EqualFold(req.Load.URI, uri) {
		return types.Deny, false
	}
	if req.Private {
		return types.Allow, true
	}
	act.TogglePrivateMode()
	return types.Deny, true
}
