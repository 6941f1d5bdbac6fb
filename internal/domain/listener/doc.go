// Package listener defines the listener categories of the session
// registry and the Hub that holds and notifies them.
//
// Listeners must be pointers and are matched by identity: adding the same
// pointer twice is a no-op, and removing one that was never added does
// nothing. Non-pointer listeners are rejected. A panicking
// listener is logged and counted; the remaining listeners still receive
// the event.
package listener
