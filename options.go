package canopy

import (
	"log/slog"

	"github.com/aretw0/canopy/pkg/domain"
)

// EffectErrorHandler receives errors (and recovered panics) from side
// effects. Effect failures never reach dispatch callers; this is their only
// outlet.
type EffectErrorHandler func(err error, act domain.Action)

// Option defines a functional option for configuring a Store.
type Option func(*Store)

// WithName labels the store; the name is attached to its log entries.
func WithName(name string) Option {
	return func(s *Store) {
		s.name = name
	}
}

// WithLogger sets a custom structured logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithInitialState seeds the tree the structural pass runs against. The
// tree is cloned; the caller keeps ownership of the one passed in. Leaves
// present in the seed win over handler initial values.
func WithInitialState(initial domain.Tree) Option {
	return func(s *Store) {
		s.initial = initial
	}
}

// WithHooks registers observability hooks.
func WithHooks(hooks domain.Hooks) Option {
	return func(s *Store) {
		s.hooks = hooks
	}
}

// WithEffectErrorHandler routes side-effect errors to a custom handler
// instead of the default warn log entry.
func WithEffectErrorHandler(fn EffectErrorHandler) Option {
	return func(s *Store) {
		s.onEffectError = fn
	}
}
