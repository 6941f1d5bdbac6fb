package types

import "time"

// AllowOrDeny is the verdict for load and pop-up requests
type AllowOrDeny int

const (
	Deny AllowOrDeny = iota
	Allow
)

// String returns the verdict name
func (a AllowOrDeny) String() string {
	if a == Allow {
		return "allow"
	}
	return "deny"
}

// Target of a load request
type LoadTarget int

const (
	TargetCurrent LoadTarget = iota
	TargetNewWindow
)

// LoadRequest describes a navigation the engine asks permission for
type LoadRequest struct {
	URI            string     `json:"uri"`
	TriggerURI     string     `json:"trigger_uri,omitempty"`
	Target         LoadTarget `json:"target"`
	IsRedirect     bool       `json:"is_redirect"`
	HasUserGesture bool       `json:"has_user_gesture"`
}

// WebRequestError is reported by the engine when a load fails
type WebRequestError struct {
	Category string `json:"category"`
	Code     int    `json:"code"`
	// Detail may carry engine-provided markup; it is sanitized before display.
	Detail string `json:"detail,omitempty"`
}

// ContextElement is the element under a context menu
type ContextElement struct {
	Type    string `json:"type"`
	LinkURI string `json:"link_uri,omitempty"`
	SrcURI  string `json:"src_uri,omitempty"`
	Title   string `json:"title,omitempty"`
}

// Selection carries text-input selection updates
type Selection struct {
	Start            int `json:"start"`
	End              int `json:"end"`
	CompositionStart int `json:"composition_start"`
	CompositionEnd   int `json:"composition_end"`
}

// PromptKind enumerates engine prompt types
type PromptKind string

const (
	PromptAlert    PromptKind = "alert"
	PromptButton   PromptKind = "button"
	PromptText     PromptKind = "text"
	PromptAuth     PromptKind = "auth"
	PromptChoice   PromptKind = "choice"
	PromptColor    PromptKind = "color"
	PromptDateTime PromptKind = "datetime"
	PromptFile     PromptKind = "file"
)

// PromptResponse is the answer given to an engine prompt
type PromptResponse struct {
	Confirmed bool     `json:"confirmed"`
	Text      string   `json:"text,omitempty"`
	Choices   []string `json:"choices,omitempty"`
	Username  string   `json:"username,omitempty"`
	Password  string   `json:"-"`
}

// Prompt is a modal request from page content. The engine waits on Response.
type Prompt struct {
	Kind     PromptKind                `json:"kind"`
	Title    string                    `json:"title"`
	Message  string                    `json:"message"`
	Options  []string                  `json:"options,omitempty"`
	Default  string                    `json:"default,omitempty"`
	Response *Deferred[PromptResponse] `json:"-"`
}

// ContentBlockEvent is reported when tracking protection blocks a resource
type ContentBlockEvent struct {
	URI        string   `json:"uri"`
	Categories []string `json:"categories"`
}

// PopupRequest is a queued pop-up waiting for a user decision
type PopupRequest struct {
	ID        string    `json:"id"`
	SessionID SessionID `json:"session_id"`
	Origin    string    `json:"origin"`
	TargetURI string    `json:"target_uri"`
	CreatedAt time.Time `json:"created_at"`
}
