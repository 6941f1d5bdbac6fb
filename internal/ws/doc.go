// Package ws streams registry events to WebSocket clients.
//
// Every connection registers itself as a listener of every category on
// the session registry, so it first receives a dump of the current
// session's state and then each event as it is dispatched.
//
// Message Types (Client → Server):
//   - ping: Keep-alive ping
//   - prompt_response: Answer a forwarded prompt by prompt_id
//
// Message Types (Server → Client):
//   - welcome: Connection id
//   - location_change, can_go_back, can_go_forward, load_request
//   - page_start, page_stop, security_change, content_blocked
//   - title_change, full_screen, context_menu, first_composite
//   - restart_input, show_soft_input, hide_soft_input, selection_change
//   - prompt: A modal prompt waiting for prompt_response
//   - session_created, session_removed, current_session_changed
//   - video_availability, popup_available, popups_cleared, drm_dialog
//   - pong, error
//
// Example Usage:
//
//	handler := ws.NewHandler(ws.WithLogger(logger))
//	handler.SetRegistry(registry)
//	router.GET("/ws", handler.HandleConnection)
package ws
