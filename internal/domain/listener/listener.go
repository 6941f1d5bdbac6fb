package listener

import "github.com/GriffinCanCode/sessionhub/internal/types"

// Navigation receives navigation events of the current session
type Navigation interface {
	OnLocationChange(id types.SessionID, uri string)
	OnCanGoBack(id types.SessionID, canGoBack bool)
	OnCanGoForward(id types.SessionID, canGoForward bool)
	// OnLoadRequest votes on a load. A nil result counts as allow.
	OnLoadRequest(id types.SessionID, req types.LoadRequest) *types.Deferred[types.AllowOrDeny]
}

// Progress receives page load progress of the current session
type Progress interface {
	OnPageStart(id types.SessionID, uri string)
	OnPageStop(id types.SessionID, success bool)
	OnSecurityChange(id types.SessionID, info types.SecurityInfo)
	OnContentBlocked(id types.SessionID, ev types.ContentBlockEvent)
}

// Content receives content events of the current session
type Content interface {
	OnTitleChange(id types.SessionID, title string)
	OnFullScreen(id types.SessionID, fullScreen bool)
	OnContextMenu(id types.SessionID, x, y int, elem types.ContextElement)
	OnFirstComposite(id types.SessionID)
}

// TextInput receives soft keyboard events of the current session
type TextInput interface {
	RestartInput(id types.SessionID, reason int)
	ShowSoftInput(id types.SessionID)
	HideSoftInput(id types.SessionID)
	UpdateSelection(id types.SessionID, sel types.Selection)
}

// Prompt receives modal prompts of the current session. Every prompt
// listener sees the same Prompt; the first to complete Response answers it.
type Prompt interface {
	OnPrompt(id types.SessionID, prompt types.Prompt)
}

// SessionChange receives registry-wide lifecycle events
type SessionChange interface {
	OnNewSession(id types.SessionID)
	OnRemoveSession(id types.SessionID)
	OnCurrentSessionChange(old, current types.SessionID)
}

// VideoAvailability is told when the current session gains its first or
// loses its last media element
type VideoAvailability interface {
	OnVideoAvailabilityChange(id types.SessionID, available bool)
}

// Nop base types. Embed one to implement only the methods you need.
type (
	NopNavigation        struct{}
	NopProgress          struct{}
	NopContent           struct{}
	NopTextInput         struct{}
	NopPrompt            struct{}
	NopSessionChange     struct{}
	NopVideoAvailability struct{}
)

func (NopNavigation) OnLocationChange(types.SessionID, string) {}
func (NopNavigation) OnCanGoBack(types.SessionID, bool) {}
func (NopNavigation) OnCanGoForward(types.SessionID, bool) {}
func (NopNavigation) OnLoadRequest(types.SessionID, types.LoadRequest) *types.Deferred[types.AllowOrDeny] {
	return nil
}

func (NopProgress) OnPageStart(types.SessionID, string) {}
func (NopProgress) OnPageStop(types.SessionID, bool) {}
func (NopProgress) OnSecurityChange(types.SessionID, types.SecurityInfo) {}
func (NopProgress) OnContentBlocked(types.SessionID, types.ContentBlockEvent) {}

func (NopContent) OnTitleChange(types.SessionID, string) {}
func (NopContent) OnFullScreen(types.SessionID, bool) {}
func (NopContent) OnContextMenu(types.SessionID, int, int, types.ContextElement) {}
func (NopContent) OnFirstComposite(types.SessionID) {}

func (NopTextInput) RestartInput(types.SessionID, int) {}
func (NopTextInput) ShowSoftInput(types.SessionID) {}
func (NopTextInput) HideSoftInput(types.SessionID) {}
func (NopTextInput) UpdateSelection(types.SessionID, types.Selection) {}

func (NopPrompt) OnPrompt(types.SessionID, types.Prompt) {}

func (NopSessionChange) OnNewSession(types.SessionID) {}
func (NopSessionChange) OnRemoveSession(types.SessionID) {}
func (NopSessionChange) OnCurrentSessionChange(types.SessionID, types.SessionID) {}

func (NopVideoAvailability) OnVideoAvailabilityChange(types.SessionID, bool) {}
