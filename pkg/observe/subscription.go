package observe

import (
	"sync/atomic"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/google/uuid"
)

// SubscriptionState represents the state of a subscription.
type SubscriptionState int32

const (
	// SubscriptionStateActive means the subscription receives deliveries.
	SubscriptionStateActive SubscriptionState = iota

	// SubscriptionStateCancelled means the subscription is permanently
	// cancelled.
	SubscriptionStateCancelled
)

// String returns a human-readable state name.
func (s SubscriptionState) String() string {
	switch s {
	case SubscriptionStateActive:
		return "active"
	case SubscriptionStateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ShouldUpdateFunc decides whether a publish is delivered, given the old and
// new values at the subscription's scope.
type ShouldUpdateFunc func(old, next any) bool

// SubscriptionConfig contains configuration for a subscription.
type SubscriptionConfig struct {
	// Segments scope the subscription to a path in the tree. Empty means
	// the whole tree.
	Segments []string

	// ShouldUpdate is the delivery predicate. Nil means: deliver every
	// publish for unscoped subscriptions, deliver on change for scoped
	// ones.
	ShouldUpdate ShouldUpdateFunc

	// Once cancels the subscription after its first delivery.
	Once bool
}

// SubscriptionOption configures a subscription.
type SubscriptionOption func(*SubscriptionConfig)

// WithPath scopes the subscription to a dotted path; the callback then
// receives the old and new values at that path instead of whole trees.
func WithPath(path string) SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Segments = domain.SplitPath(path)
	}
}

// WithPathSegments is WithPath for pre-split segments.
func WithPathSegments(segments []string) SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Segments = segments
	}
}

// WithShouldUpdate overrides the delivery predicate.
func WithShouldUpdate(f ShouldUpdateFunc) SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.ShouldUpdate = f
	}
}

// WithOnce cancels the subscription after the first delivery.
func WithOnce() SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Once = true
	}
}

// Subscription is the handle returned by Value.Subscribe.
type Subscription struct {
	id     string
	fn     Callback
	config SubscriptionConfig
	state  atomic.Int32
}

func newSubscription(fn Callback, opts ...SubscriptionOption) *Subscription {
	var config SubscriptionConfig
	for _, opt := range opts {
		opt(&config)
	}
	s := &Subscription{
		id:     uuid.NewString(),
		fn:     fn,
		config: config,
	}
	s.state.Store(int32(SubscriptionStateActive))
	return s
}

// ID returns the unique subscription identifier.
func (s *Subscription) ID() string {
	return s.id
}

// Path returns the dotted path the subscription is scoped to, "" for the
// whole tree.
func (s *Subscription) Path() string {
	return domain.JoinPath(s.config.Segments)
}

// State returns the current subscription state.
func (s *Subscription) State() SubscriptionState {
	return SubscriptionState(s.state.Load())
}

// Active reports whether the subscription still receives deliveries.
func (s *Subscription) Active() bool {
	return s.State() == SubscriptionStateActive
}

// Cancel permanently cancels the subscription. Cancelled subscriptions are
// pruned from their Value on the next publish.
func (s *Subscription) Cancel() {
	s.state.Store(int32(SubscriptionStateCancelled))
}

// deliver narrows the publish to the subscription's scope, applies the
// predicate, and invokes the callback.
func (s *Subscription) deliver(oldTree, nextTree domain.Tree) {
	if !s.Active() {
		return
	}

	var old, next any = oldTree, nextTree
	scoped := len(s.config.Segments) > 0
	if scoped {
		old, _ = oldTree.AtPath(s.config.Segments)
		next, _ = nextTree.AtPath(s.config.Segments)
	}

	switch {
	case s.config.ShouldUpdate != nil:
		if !s.config.ShouldUpdate(old, next) {
			return
		}
	case scoped:
		if !changed(old, next) {
			return
		}
	}

	if s.config.Once {
		// Flip before invoking so a re-entrant publish cannot double-fire.
		if !s.state.CompareAndSwap(int32(SubscriptionStateActive), int32(SubscriptionStateCancelled)) {
			return
		}
	}
	s.fn(old, next)
}
