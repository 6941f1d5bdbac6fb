package engine

import "github.com/GriffinCanCode/sessionhub/internal/types"

// NopDelegate ignores every callback, allows loads and pop-ups, and
// refuses new windows. Embed it to implement part of Delegate.
type NopDelegate struct{}

var _ Delegate = NopDelegate{}

func (NopDelegate) OnLocationChange(Handle, string) {}
func (NopDelegate) OnCanGoBack(Handle, bool) {}
func (NopDelegate) OnCanGoForward(Handle, bool) {}
func (NopDelegate) OnLoadRequest(Handle, types.LoadRequest) *types.Deferred[types.AllowOrDeny] {
	return types.Resolved(types.Allow)
}
func (NopDelegate) OnNewSession(Handle, string) *types.Deferred[Handle] {
	return types.Resolved[Handle](nil)
}
func (NopDelegate) OnLoadError(Handle, string, types.WebRequestError) *types.Deferred[string] {
	return types.Resolved("")
}
func (NopDelegate) OnPageStart(Handle, string) {}
func (NopDelegate) OnPageStop(Handle, bool) {}
func (NopDelegate) OnSecurityChange(Handle, types.SecurityInfo) {}
func (NopDelegate) OnSessionStateChange(Handle, []byte) {}
func (NopDelegate) OnTitleChange(Handle, string) {}
func (NopDelegate) OnFullScreen(Handle, bool) {}
func (NopDelegate) OnContextMenu(Handle, int, int, types.ContextElement) {}
func (NopDelegate) OnFirstComposite(Handle) {}
func (NopDelegate) OnCloseRequest(Handle) {}
func (NopDelegate) OnCrash(Handle) {}
func (NopDelegate) RestartInput(Handle, int) {}
func (NopDelegate) ShowSoftInput(Handle) {}
func (NopDelegate) HideSoftInput(Handle) {}
func (NopDelegate) UpdateSelection(Handle, types.Selection) {}
func (NopDelegate) OnPrompt(Handle, types.Prompt) {}
func (NopDelegate) OnPopupPrompt(Handle, string) *types.Deferred[types.AllowOrDeny] {
	return types.Resolved(types.Allow)
}
func (NopDelegate) OnMediaAdd(Handle, types.Media) {}
func (NopDelegate) OnMediaRemove(Handle, string) {}
func (NopDelegate) OnContentBlocked(Handle, types.ContentBlockEvent) {}
