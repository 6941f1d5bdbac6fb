/*
Package engine defines the narrow capability the session registry needs
from a web engine.

# Overview

A Runtime creates Handles; each Handle is one browsing context with
fixed settings. The handle reports everything that happens in the page
to a single Delegate, which in this module is always the session
registry.

# Implementations

  - engine/memory: deterministic in-process engine used by tests and the
    demo server. History, titles and security are derived from URIs.
  - engine/rodengine: Chrome over the DevTools protocol via go-rod.

# Threading

Delegate callbacks may arrive on any goroutine, including synchronously
from inside a Handle method. Handle methods are never called while the
registry holds its lock.
*/
package engine
