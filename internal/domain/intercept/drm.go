package intercept

import (
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/GriffinCanCode/sessionhub/internal/types"
)

// Window is the focused browser window as seen by the UI collaborator
type Window interface {
	ShowDRMDialog()
}

// WindowProvider returns the focused window, or nil when there is none
type WindowProvider interface {
	FocusedWindow() Window
}

// DRMFlag remembers whether the DRM dialog has been shown
type DRMFlag interface {
	// MarkDRMShown reports true only for the first call ever
	MarkDRMShown() bool
}

// DRMGate shows the DRM dialog the first time the current session visits
// a host that needs DRM. It never decides a request.
type DRMGate struct {
	hosts []string
	ui    WindowProvider
	flag  DRMFlag
}

// NewDRMGate creates the gate. Invalid globs are ignored.
func NewDRMGate(hosts []string, ui WindowProvider, flag DRMFlag) *DRMGate {
	g := &DRMGate{ui: ui, flag: flag}
	for _, h := range hosts {
		h = strings.ToLower(h)
		if doublestar.ValidatePattern(h) {
			g.hosts = append(g.hosts, h)
		}
	}
	return g
}

func (g *DRMGate) Name() string { return "drm_gate" }

func (g *DRMGate) Intercept(req Request, _ Actions) (types.AllowOrDeny, bool) {
	if !req.Current || g.ui == nil || g.flag == nil || !g.matches(req.Load.URI) {
		return types.Deny, false
	}
	win := g.ui.FocusedWindow()
	if win == nil {
		return types.Deny, false
	}
	if g.flag.MarkDRMShown() {
		win.ShowDRMDialog()
	}
	return types.Deny, false
}

func (g *DRMGate) matches(uri string) bool {
	u, err := url.Parse(uri)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, pattern := range g.hosts {
		if ok, _ := doublestar.Match(pattern, host); ok {
			return true
		}
	}
	return false
}
