// Package session is the browser session registry.
//
// The Registry multiplexes engine sessions behind a single current
// session and routes engine callbacks to listeners.
//
// Components:
//   - Registry: create, remove and look up sessions
//   - Current session switch with state dump to listeners
//   - Normal and private session stacks (new window / close)
//   - Private mode toggle with a single previous-session slot
//   - Recreation when multiprocess or tracking protection changes
//   - Engine delegate: every handle reports to the registry
//
// Switching the current session:
//  1. Deactivate the old session
//  2. Resolve the new id (unknown ids mean no current session)
//  3. Open the handle on first use
//  4. Notify session-change listeners
//  5. Replay navigation, progress and content state to listeners
//  6. Activate the new session
//
// Concurrency:
//
// One mutex guards all registry state. Engine commands and listener
// notifications are queued under it and run in order, outside it, by
// whichever goroutine gets there first. Calls made from inside a listener
// or a synchronous engine callback queue their work behind the current
// step instead of running it inline, so listeners may call back into the
// registry freely.
//
// Example Usage:
//
//	reg := session.New(runtime, settingsStore, session.WithPopups(queue))
//	id, err := reg.CreateDefaultSession(ctx, false)
//	reg.SetCurrentSession(id)
//	reg.LoadURI("https://example.com")
package session
