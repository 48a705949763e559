package domain

import (
	"context"
)

// Action names a state transition and carries its input. Actions are
// transient: they exist only for the duration of one dispatch.
type Action struct {
	Type    string // tag matched against declaration type tags
	Payload any    // handler input, may be nil
}

// Result is the outcome of one applied transition.
//
// State is the snapshot published by that transition (read-only). On failure
// State holds the unchanged pre-transition snapshot and Err carries the
// cause, typically a *HandlerError.
type Result struct {
	State Tree
	Err   error
}

// DispatchFunc submits a transition for serialized application. It never
// blocks; the returned channel receives exactly one Result once that
// specific transition has been served, and is then closed.
//
// Side effects receive a DispatchFunc and may wait on the channel. Handlers
// must not: a handler runs inside the transition loop, and waiting there for
// a queued transition deadlocks the store.
type DispatchFunc func(ctx context.Context, act Action) <-chan Result

// HandlerFunc is a pure transition function for one leaf of the state tree.
//
// prior is the current value at the declaration's selector, or nil when the
// leaf has never been written; in that case the handler is being asked for
// its initial value and payload is nil too. Handlers must treat prior as
// read-only input and return a new value rather than mutate it.
type HandlerFunc func(ctx context.Context, prior, payload any) (any, error)

// Declaration binds a type tag and a selector path to a transition handler.
// Declarations are created once during registration and are immutable
// thereafter.
type Declaration struct {
	// Type is the action tag this handler reacts to. Left empty in a
	// single-declaration registration, a unique tag is synthesized.
	Type string

	// Selector is the dotted path of the leaf this handler owns,
	// e.g. "clock.minute". Missing intermediate branches are materialized
	// on demand.
	Selector string

	// Handler computes the leaf's next value.
	Handler HandlerFunc
}

// EffectFunc is a side-effect callback invoked after a transition with a
// matching type tag has been applied. It receives the post-transition
// snapshot and a dispatch function for follow-up transitions; anything it
// dispatches is served strictly after the transition that triggered it.
//
// Effects are not awaited by the dispatcher. A returned error (or a panic,
// which is recovered) is routed to the store's effect error handler.
type EffectFunc func(ctx context.Context, snap Snapshot, dispatch DispatchFunc) error

// LayoutEntry describes one leaf position of the compiled reducer tree:
// its selector path and the type tags chained there, in registration order.
type LayoutEntry struct {
	Selector string
	Types    []string
}
