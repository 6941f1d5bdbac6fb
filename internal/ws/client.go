package ws

import (
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/sessionhub/internal/domain/listener"
	"github.com/GriffinCanCode/sessionhub/internal/shared/id"
	"github.com/GriffinCanCode/sessionhub/internal/types"
)

// Event is one message pushed to a stream client
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Session   types.SessionID `json:"session"`
	Data      any             `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Message is one message received from a stream client
type Message struct {
	Type      string   `json:"type"`
	PromptID  string   `json:"prompt_id,omitempty"`
	Confirmed bool     `json:"confirmed,omitempty"`
	Text      string   `json:"text,omitempty"`
	Choices   []string `json:"choices,omitempty"`
	Username  string   `json:"username,omitempty"`
	Password  string   `json:"password,omitempty"`
}

// Event types
const (
	EventWelcome          = "welcome"
	EventPong             = "pong"
	EventError            = "error"
	EventLocationChange   = "location_change"
	EventCanGoBack        = "can_go_back"
	EventCanGoForward     = "can_go_forward"
	EventLoadRequest      = "load_request"
	EventPageStart        = "page_start"
	EventPageStop         = "page_stop"
	EventSecurityChange   = "security_change"
	EventContentBlocked   = "content_blocked"
	EventTitleChange      = "title_change"
	EventFullScreen       = "full_screen"
	EventContextMenu      = "context_menu"
	EventFirstComposite   = "first_composite"
	EventRestartInput     = "restart_input"
	EventShowSoftInput    = "show_soft_input"
	EventHideSoftInput    = "hide_soft_input"
	EventSelectionChange  = "selection_change"
	EventPrompt           = "prompt"
	EventSessionCreated   = "session_created"
	EventSessionRemoved   = "session_removed"
	EventCurrentChanged   = "current_session_changed"
	EventVideoAvailable   = "video_availability"
	EventPopupAvailable   = "popup_available"
	EventPopupsCleared    = "popups_cleared"
	EventDRMDialog        = "drm_dialog"
	MessagePing           = "ping"
	MessagePromptResponse = "prompt_response"
)

var (
	_ listener.Navigation        = (*client)(nil)
	_ listener.Progress          = (*client)(nil)
	_ listener.Content           = (*client)(nil)
	_ listener.TextInput         = (*client)(nil)
	_ listener.Prompt            = (*client)(nil)
	_ listener.SessionChange     = (*client)(nil)
	_ listener.VideoAvailability = (*client)(nil)
)

// client is one stream connection. Listener callbacks only enqueue; the
// write loop owns the connection's write side.
type client struct {
	id      string
	h       *Handler
	conn    *websocket.Conn
	send    chan Event
	quit    chan struct{}
	dropped atomic.Int64
}

func newClient(h *Handler, conn *websocket.Conn) *client {
	return &client{
		id:   uuid.NewString(),
		h:    h,
		conn: conn,
		send: make(chan Event, h.bufferSize),
		quit: make(chan struct{}),
	}
}

// push enqueues an event without blocking. A slow client loses events
// rather than stalling dispatch.
func (c *client) push(typ string, sid types.SessionID, data any) {
	ev := Event{
		ID:        id.NewEventID().String(),
		Type:      typ,
		Session:   sid,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
	select {
	case c.send <- ev:
	default:
		if c.dropped.Add(1) == 1 {
			c.h.logger.Warn("stream client too slow, dropping events",
				zap.String("client", c.id),
				zap.String("type", typ),
			)
		}
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(c.h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.quit:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case ev := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.h.logger.Debug("stream write failed", zap.String("client", c.id), zap.Error(err))
				c.conn.Close()
				return
			}
			c.h.metrics.RecordWSMessage("out", ev.Type)
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}

func (c *client) readLoop() {
	pongWait := 2 * c.h.pingInterval
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, websocket.ErrCloseSent) {
				c.h.logger.Debug("stream read error", zap.String("client", c.id), zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.push(EventError, types.NoSession, gin.H{"message": "malformed message"})
			continue
		}
		c.h.metrics.RecordWSMessage("in", msg.Type)

		switch msg.Type {
		case MessagePing:
			c.push(EventPong, types.NoSession, nil)
		case MessagePromptResponse:
			resp := types.PromptResponse{
				Confirmed: msg.Confirmed,
				Text:      msg.Text,
				Choices:   msg.Choices,
				Username:  msg.Username,
				Password:  msg.Password,
			}
			if !c.h.answerPrompt(msg.PromptID, resp) {
				c.push(EventError, types.NoSession, gin.H{"message": "unknown prompt", "prompt_id": msg.PromptID})
			}
		default:
			c.push(EventError, types.NoSession, gin.H{"message": "unknown message type", "type": msg.Type})
		}
	}
}

func (c *client) OnLocationChange(sid types.SessionID, uri string) {
	c.push(EventLocationChange, sid, gin.H{"uri": uri})
}

func (c *client) OnCanGoBack(sid types.SessionID, v bool) {
	c.push(EventCanGoBack, sid, gin.H{"value": v})
}

func (c *client) OnCanGoForward(sid types.SessionID, v bool) {
	c.push(EventCanGoForward, sid, gin.H{"value": v})
}

// OnLoadRequest reports the request; the nil answer counts as allow
func (c *client) OnLoadRequest(sid types.SessionID, req types.LoadRequest) *types.Deferred[types.AllowOrDeny] {
	c.push(EventLoadRequest, sid, req)
	return nil
}

func (c *client) OnPageStart(sid types.SessionID, uri string) {
	c.push(EventPageStart, sid, gin.H{"uri": uri})
}

func (c *client) OnPageStop(sid types.SessionID, success bool) {
	c.push(EventPageStop, sid, gin.H{"success": success})
}

func (c *client) OnSecurityChange(sid types.SessionID, info types.SecurityInfo) {
	c.push(EventSecurityChange, sid, info)
}

func (c *client) OnContentBlocked(sid types.SessionID, ev types.ContentBlockEvent) {
	c.push(EventContentBlocked, sid, ev)
}

func (c *client) OnTitleChange(sid types.SessionID, title string) {
	c.push(EventTitleChange, sid, gin.H{"title": title})
}

func (c *client) OnFullScreen(sid types.SessionID, v bool) {
	c.push(EventFullScreen, sid, gin.H{"value": v})
}

func (c *client) OnContextMenu(sid types.SessionID, x, y int, elem types.ContextElement) {
	c.push(EventContextMenu, sid, gin.H{"x": x, "y": y, "element": elem})
}

func (c *client) OnFirstComposite(sid types.SessionID) {
	c.push(EventFirstComposite, sid, nil)
}

func (c *client) RestartInput(sid types.SessionID, reason int) {
	c.push(EventRestartInput, sid, gin.H{"reason": reason})
}

func (c *client) ShowSoftInput(sid types.SessionID) {
	c.push(EventShowSoftInput, sid, nil)
}

func (c *client) HideSoftInput(sid types.SessionID) {
	c.push(EventHideSoftInput, sid, nil)
}

func (c *client) UpdateSelection(sid types.SessionID, sel types.Selection) {
	c.push(EventSelectionChange, sid, sel)
}

// OnPrompt forwards the prompt under an id every client shares
func (c *client) OnPrompt(sid types.SessionID, p types.Prompt) {
	data := gin.H{"prompt": p}
	if p.Response != nil {
		data["prompt_id"] = c.h.registerPrompt(p.Response)
	}
	c.push(EventPrompt, sid, data)
}

func (c *client) OnNewSession(sid types.SessionID) {
	c.push(EventSessionCreated, sid, nil)
}

func (c *client) OnRemoveSession(sid types.SessionID) {
	c.push(EventSessionRemoved, sid, nil)
}

func (c *client) OnCurrentSessionChange(old, current types.SessionID) {
	c.push(EventCurrentChanged, current, gin.H{"previous": old})
}

func (c *client) OnVideoAvailabilityChange(sid types.SessionID, available bool) {
	c.push(EventVideoAvailable, sid, gin.H{"available": available})
}
