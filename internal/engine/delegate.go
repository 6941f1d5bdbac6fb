package engine

import "github.com/GriffinCanCode/sessionhub/internal/types"

// NavigationDelegate receives navigation callbacks
type NavigationDelegate interface {
	OnLocationChange(h Handle, uri string)
	OnCanGoBack(h Handle, canGoBack bool)
	OnCanGoForward(h Handle, canGoForward bool)
	OnLoadRequest(h Handle, req types.LoadRequest) *types.Deferred[types.AllowOrDeny]
	// OnNewSession is asked for a handle when content opens a new window
	OnNewSession(h Handle, uri string) *types.Deferred[Handle]
	OnLoadError(h Handle, uri string, err types.WebRequestError) *types.Deferred[string]
}

// ProgressDelegate receives page load progress
type ProgressDelegate interface {
	OnPageStart(h Handle, uri string)
	OnPageStop(h Handle, success bool)
	OnSecurityChange(h Handle, info types.SecurityInfo)
	OnSessionStateChange(h Handle, state []byte)
}

// ContentDelegate receives content callbacks
type ContentDelegate interface {
	OnTitleChange(h Handle, title string)
	OnFullScreen(h Handle, fullScreen bool)
	OnContextMenu(h Handle, x, y int, elem types.ContextElement)
	OnFirstComposite(h Handle)
	OnCloseRequest(h Handle)
	OnCrash(h Handle)
}

// TextInputDelegate receives soft keyboard callbacks
type TextInputDelegate interface {
	RestartInput(h Handle, reason int)
	ShowSoftInput(h Handle)
	HideSoftInput(h Handle)
	UpdateSelection(h Handle, sel types.Selection)
}

// PromptDelegate receives modal prompts and pop-up prompts
type PromptDelegate interface {
	OnPrompt(h Handle, prompt types.Prompt)
	OnPopupPrompt(h Handle, targetURI string) *types.Deferred[types.AllowOrDeny]
}

// MediaDelegate tracks media elements
type MediaDelegate interface {
	OnMediaAdd(h Handle, media types.Media)
	OnMediaRemove(h Handle, mediaID string)
}

// ContentBlockingDelegate is told about blocked resources
type ContentBlockingDelegate interface {
	OnContentBlocked(h Handle, ev types.ContentBlockEvent)
}

// Delegate is the full callback surface a handle reports to
type Delegate interface {
	NavigationDelegate
	ProgressDelegate
	ContentDelegate
	TextInputDelegate
	PromptDelegate
	MediaDelegate
	ContentBlockingDelegate
}
