/*
Package popup queues pop-up window requests per session until the user
decides.

# Flow

  - Pop-up blocking disabled: the request is allowed immediately.
  - A decision is remembered for the origin: it is applied after a short
    delay. The delay is cancelled if the session navigates away or is
    removed, and the request is then denied.
  - Otherwise the request is queued. The UI is told once, when the
    session's queue goes from empty to non-empty, and again when it is
    cleared.

Origins are the lower-case host of the page that asked.
*/
package popup
