package rodengine

import (
	"errors"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-rod/rod/lib/proto"

	"github.com/GriffinCanCode/sessionhub/internal/types"
)

const stateVersion = 1

type historyEntry struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

type historyState struct {
	Version int            `json:"v"`
	Index   int            `json:"index"`
	Entries []historyEntry `json:"entries"`
}

func encodeState(st historyState) ([]byte, error) {
	st.Version = stateVersion
	return sonic.Marshal(st)
}

func decodeState(data []byte) (historyState, error) {
	var st historyState
	if err := sonic.Unmarshal(data, &st); err != nil {
		return st, err
	}
	if st.Version != stateVersion {
		return st, errors.New("unsupported session state version")
	}
	if len(st.Entries) > 0 && (st.Index < 0 || st.Index >= len(st.Entries)) {
		return st, errors.New("session state index out of range")
	}
	return st, nil
}

// fromHistory drops the blank entries Chrome keeps for a new page
func fromHistory(hist *proto.PageGetNavigationHistoryResult) historyState {
	st := historyState{Index: -1}
	for i, e := range hist.Entries {
		if e == nil || e.URL == "" || e.URL == "about:blank" {
			continue
		}
		if i <= hist.CurrentIndex {
			st.Index = len(st.Entries)
		}
		st.Entries = append(st.Entries, historyEntry{URL: e.URL, Title: e.Title})
	}
	if len(st.Entries) > 0 && st.Index < 0 {
		st.Index = 0
	}
	return st
}

// historyEntryID finds Chrome's id for restored entry index once n
// entries have been replayed on top of the existing history
func historyEntryID(hist *proto.PageGetNavigationHistoryResult, index, n int) (int, bool) {
	start := len(hist.Entries) - n
	if start < 0 || index < 0 || index >= n {
		return 0, false
	}
	e := hist.Entries[start+index]
	if e == nil {
		return 0, false
	}
	return e.ID, true
}

// classify maps a Chrome net error to a web request error
func classify(reason string) types.WebRequestError {
	werr := types.WebRequestError{Category: "network", Code: 0x01, Detail: reason}
	switch {
	case strings.Contains(reason, "ERR_NAME_NOT_RESOLVED"):
		werr.Code = 0x53
	case strings.Contains(reason, "ERR_CONNECTION_REFUSED"):
		werr.Code = 0x33
	case strings.Contains(reason, "ERR_INTERNET_DISCONNECTED"):
		werr.Code = 0x43
	case strings.Contains(reason, "ERR_TIMED_OUT"), strings.Contains(reason, "ERR_CONNECTION_TIMED_OUT"):
		werr.Code = 0x23
	case strings.Contains(reason, "ERR_CERT_"), strings.Contains(reason, "ERR_SSL_"):
		werr.Category = "security"
		werr.Code = 0x02
	case strings.Contains(reason, "ERR_PROXY_"), strings.Contains(reason, "ERR_TUNNEL_"):
		werr.Category = "proxy"
		werr.Code = 0x73
	case strings.Contains(reason, "ERR_INVALID_URL"), strings.Contains(reason, "ERR_UNKNOWN_URL_SCHEME"):
		werr.Category = "uri"
		werr.Code = 0x13
	case strings.Contains(reason, "ERR_BLOCKED"):
		werr.Category = "content"
		werr.Code = 0x24
	}
	return werr
}

func securityFor(uri string) types.SecurityInfo {
	u, err := url.Parse(uri)
	if err != nil {
		return types.SecurityInfo{}
	}
	return types.SecurityInfo{
		IsSecure: u.Scheme == "https",
		Host:     u.Hostname(),
		Origin:   u.Scheme + "://" + u.Host,
	}
}

func promptKind(t proto.PageDialogType) types.PromptKind {
	switch t {
	case proto.PageDialogTypeAlert:
		return types.PromptAlert
	case proto.PageDialogTypePrompt:
		return types.PromptText
	default:
		return types.PromptButton
	}
}

var userAgents = map[types.UserAgentMode]string{
	types.UserAgentMobile:  "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Mobile Safari/537.36",
	types.UserAgentDesktop: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	types.UserAgentVR:      "Mozilla/5.0 (Linux; Android 12; Quest 3) AppleWebKit/537.36 (KHTML, like Gecko) OculusBrowser/33.0 Chrome/126.0.0.0 VR Safari/537.36",
}

// userAgentFor returns the override when set, otherwise the mode's string
func userAgentFor(mode types.UserAgentMode, override string) string {
	if override != "" {
		return override
	}
	if ua, ok := userAgents[mode]; ok {
		return ua
	}
	return userAgents[types.UserAgentVR]
}

// trackerPatterns are blocked when tracking protection is on
var trackerPatterns = []string{
	"*google-analytics.com*",
	"*googletagmanager.com*",
	"*doubleclick.net*",
	"*connect.facebook.net*",
	"*scorecardresearch.com*",
	"*adservice.google.com*",
}
