// Package types holds the value types shared by the session registry,
// the listener hub, the engines and the API layer.
//
// Nothing in this package performs I/O or holds references to engine
// handles; every value can be copied freely between goroutines, except
// Deferred which is shared by pointer.
package types
