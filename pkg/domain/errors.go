package domain

import (
	"errors"
	"fmt"
)

// ErrDuplicateName is returned when registering an action under a name that
// is already taken.
var ErrDuplicateName = errors.New("action name already registered")

// ErrDuplicateType is returned when a declaration's type tag is already
// owned by a different action name.
var ErrDuplicateType = errors.New("type tag already registered to another action")

// ErrEmptyName is returned when registering an action with an empty name.
var ErrEmptyName = errors.New("action name is empty")

// ErrNoDeclarations is returned when registering an action with no
// declarations.
var ErrNoDeclarations = errors.New("registration has no declarations")

// ErrEmptySelector is returned when a declaration has an empty selector path.
var ErrEmptySelector = errors.New("declaration selector is empty")

// ErrMissingType is returned when a multi-declaration registration leaves a
// type tag empty; tags are only synthesized for single declarations.
var ErrMissingType = errors.New("declaration type tag is empty")

// ErrNilHandler is returned when a declaration has no handler function.
var ErrNilHandler = errors.New("declaration handler is nil")

// ErrNilEffect is returned when registering a nil side-effect callback.
var ErrNilEffect = errors.New("side-effect callback is nil")

// ErrEmptyType is returned when registering a side effect for an empty
// type tag.
var ErrEmptyType = errors.New("side-effect type tag is empty")

// ErrUnknownAction is returned when dispatching by a name that was never
// registered.
var ErrUnknownAction = errors.New("unknown action name")

// ErrInvalidActionType is returned when dispatching a named action with a
// type tag outside that name's registered set, or without a type tag when
// the name has several.
var ErrInvalidActionType = errors.New("type tag not valid for this action")

// ErrClosed is returned when submitting a transition to a store that has
// been closed.
var ErrClosed = errors.New("store is closed")

// HandlerError reports the failure of one transition handler. The transition
// it belongs to is aborted and the snapshot left unchanged; the store keeps
// serving the queue.
type HandlerError struct {
	Selector string // dotted path of the failing declaration
	Type     string // type tag of the failing declaration, "" on the init pass
	Err      error
}

func (e *HandlerError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("handler at %q failed computing its initial value: %v", e.Selector, e.Err)
	}
	return fmt.Sprintf("handler at %q failed on %q: %v", e.Selector, e.Type, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
