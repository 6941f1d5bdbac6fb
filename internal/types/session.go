package types

import "strconv"

// SessionID identifies a browser session for its whole lifetime.
// IDs are allocated by the registry and never reused.
type SessionID int64

// NoSession is the sentinel for "no current session".
const NoSession SessionID = -1

// String returns the decimal form of the id
func (id SessionID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Valid reports whether the id refers to a session (not the sentinel).
func (id SessionID) Valid() bool {
	return id > 0
}

// UserAgentMode selects the user agent family a session presents
type UserAgentMode string

const (
	UserAgentMobile  UserAgentMode = "mobile"
	UserAgentDesktop UserAgentMode = "desktop"
	UserAgentVR      UserAgentMode = "vr"
)

// Settings are fixed for the lifetime of an engine handle. Changing
// multiprocess or tracking protection replaces the whole session.
type Settings struct {
	Multiprocess             bool          `json:"multiprocess"`
	PrivateMode              bool          `json:"private_mode"`
	TrackingProtection       bool          `json:"tracking_protection"`
	SuspendMediaWhenInactive bool          `json:"suspend_media_when_inactive"`
	UserAgentMode            UserAgentMode `json:"user_agent_mode"`
}

// NavState is the last-known navigation state reported by the engine
type NavState struct {
	CanGoBack     bool   `json:"can_go_back"`
	CanGoForward  bool   `json:"can_go_forward"`
	IsLoading     bool   `json:"is_loading"`
	URI           string `json:"uri"`
	PreviousURI   string `json:"previous_uri"`
	Title         string `json:"title"`
	FullScreen    bool   `json:"full_screen"`
	IsInputActive bool   `json:"is_input_active"`
}

// SecurityInfo is the security classification of the loaded page
type SecurityInfo struct {
	IsSecure  bool   `json:"is_secure"`
	Host      string `json:"host"`
	Origin    string `json:"origin"`
	Issuer    string `json:"issuer,omitempty"`
	Exception bool   `json:"exception"`
}

// Media is an active media element discovered in a page
type Media struct {
	ID         string `json:"id"`
	Fullscreen bool   `json:"fullscreen"`
	Playing    bool   `json:"playing"`
}

// SessionInfo is a point-in-time copy of one registry record.
// Mutating it has no effect on the registry.
type SessionInfo struct {
	ID       SessionID     `json:"id"`
	Settings Settings      `json:"settings"`
	Nav      NavState      `json:"nav"`
	Security *SecurityInfo `json:"security,omitempty"`
	Media    []Media       `json:"media"`
	Open     bool          `json:"open"`
	Current  bool          `json:"current"`
	HasState bool          `json:"has_serialized_state"`
}

// Stats summarizes registry contents
type Stats struct {
	TotalSessions   int       `json:"total_sessions"`
	PrivateSessions int       `json:"private_sessions"`
	NormalStack     int       `json:"normal_stack"`
	PrivateStack    int       `json:"private_stack"`
	CurrentSession  SessionID `json:"current_session"`
}
