// Package dispatch runs one inbound event through a composition of handlers.
//
// A Handler receives the per-dispatch Input. Typed handlers are written as
// plain functions and bound to Extractors, which materialize their arguments
// from the event and the shared store. An Absent extraction skips the handler
// without error; a Failed one turns into an Error result.
//
// Chains compose handlers in All or Once mode, Guard gates a handler behind a
// predicate, and App is the entry point the transport calls per event.
package dispatch
