// Package memory is a deterministic in-process web engine.
//
// Navigation completes immediately: titles and security info are derived
// from the URI, hosts under .invalid fail to load, and history is kept as
// a list of entries. Serialized state is zstd-compressed JSON. Injected
// scripts run in a goja VM that exposes window.location, window.history,
// document.title and console.log.
//
// Every delegate callback is made synchronously on the goroutine that
// triggered it, which makes it a strict test of re-entrancy for whatever
// sits behind the delegate.
package memory
