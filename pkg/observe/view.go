package observe

import (
	"github.com/aretw0/canopy/pkg/domain"
)

// View is a Value narrowed to one path of the tree. It reads and subscribes
// at that path without the caller repeating it.
type View struct {
	value    *Value
	segments []string
	path     string
}

// Path returns the dotted path the view is anchored at.
func (v *View) Path() string {
	return v.path
}

// Get resolves the view's path against the current tree. The boolean
// reports whether the path is present.
func (v *View) Get() (any, bool) {
	return v.value.Get().AtPath(v.segments)
}

// Subscribe registers a callback scoped to the view's path. The callback
// receives the old and new values at the path; by default it fires only
// when they differ.
func (v *View) Subscribe(fn Callback, opts ...SubscriptionOption) *Subscription {
	scoped := make([]SubscriptionOption, 0, len(opts)+1)
	scoped = append(scoped, WithPathSegments(v.segments))
	scoped = append(scoped, opts...)
	return v.value.Subscribe(fn, scoped...)
}

// Narrow returns a view of a path beneath this one.
func (v *View) Narrow(path string) *View {
	segments := make([]string, 0, len(v.segments)+1)
	segments = append(segments, v.segments...)
	segments = append(segments, domain.SplitPath(path)...)
	return v.value.ViewPath(segments)
}
