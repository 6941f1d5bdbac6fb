package session

import "errors"

var (
	// ErrEmptyStack is returned by Unstack when the current mode's stack is
	// empty. Callers should check CanUnstack first.
	ErrEmptyStack = errors.New("session stack is empty")
	// ErrSerialization marks a failed state capture or restore during
	// recreation. It is logged, never returned; the new session starts
	// with empty history.
	ErrSerialization = errors.New("session state serialization failed")
	// ErrUnknownSetting is returned by UpdateSetting for fields that do
	// not require recreation.
	ErrUnknownSetting = errors.New("unknown session setting")
)
