package canopy

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/canopy/internal/compiler"
	"github.com/aretw0/canopy/internal/engine"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/observe"
)

// Store is the high-level entry point for the Canopy library: a
// single-writer state container whose tree is mutated only through
// registered transition handlers and observed through snapshots and
// subscriptions.
type Store struct {
	name          string
	logger        *slog.Logger
	initial       domain.Tree
	hooks         domain.Hooks
	onEffectError EffectErrorHandler

	actions map[string]*namedAction
	infos   []ActionInfo
	layout  []domain.LayoutEntry
	value   *observe.Value
	engine  *engine.Engine
}

// namedAction is one entry of the named-dispatch table, built once at store
// creation: the resolution strategy for a name is fixed by how many type
// tags it registered.
type namedAction struct {
	single string // set when the name owns exactly one tag
	valid  map[string]struct{}
}

// New compiles the registry into a store: it builds the reducer tree, runs
// the structural pass to materialize default state (seeded by
// WithInitialState, if given), and starts the dispatch loop. The registry
// is copied; registering more actions afterwards does not affect this
// store.
func New(reg *Registry, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if s.name != "" {
		s.logger = s.logger.With("store", s.name)
	}

	decls, infos, effects := reg.snapshot()
	s.infos = infos
	s.actions = make(map[string]*namedAction, len(infos))
	for _, info := range infos {
		entry := &namedAction{valid: make(map[string]struct{}, len(info.Types))}
		if len(info.Types) == 1 {
			entry.single = info.Types[0]
		}
		for _, tag := range info.Types {
			entry.valid[tag] = struct{}{}
		}
		s.actions[info.Name] = entry
	}

	reducer := compiler.Compile(decls)
	s.layout = reducer.Layout()

	base, err := reducer.Apply(context.Background(), s.initial.Clone(), nil)
	if err != nil {
		return nil, fmt.Errorf("materialize initial state: %w", err)
	}
	s.value = observe.NewValue(base)

	s.engine = engine.New(engine.Config{
		Reducer:       reducer,
		Value:         s.value,
		Effects:       effects,
		Logger:        s.logger,
		Hooks:         s.hooks,
		OnEffectError: engine.EffectErrorHandler(s.onEffectError),
	})

	s.logger.Debug("store ready",
		"actions", len(infos),
		"leaves", len(s.layout))
	return s, nil
}

// Dispatch submits a transition and returns its pending result without
// blocking. It is the raw entry point: the action's type tag is used as
// given. Safe to call from side effects and subscribers; handlers may call
// it too but must not wait on the result.
func (s *Store) Dispatch(ctx context.Context, act domain.Action) *Pending {
	return newPending(s.engine.Submit(ctx, act))
}

// DispatchNamed resolves a registered name to a type tag and dispatches.
//
// A name with a single tag needs no typeTag; a name spanning several tags
// requires one out of its set. An unregistered name fails with
// domain.ErrUnknownAction, a wrong or missing tag with
// domain.ErrInvalidActionType; both resolve into the returned Pending
// without touching the queue.
func (s *Store) DispatchNamed(ctx context.Context, name, typeTag string, payload any) *Pending {
	entry, ok := s.actions[name]
	if !ok {
		return resolvedPending(domain.Result{
			State: s.value.Get(),
			Err:   fmt.Errorf("dispatch %q: %w", name, domain.ErrUnknownAction),
		})
	}

	tag := typeTag
	if tag == "" {
		if entry.single == "" {
			return resolvedPending(domain.Result{
				State: s.value.Get(),
				Err:   fmt.Errorf("dispatch %q: a type tag is required: %w", name, domain.ErrInvalidActionType),
			})
		}
		tag = entry.single
	} else if _, valid := entry.valid[tag]; !valid {
		return resolvedPending(domain.Result{
			State: s.value.Get(),
			Err:   fmt.Errorf("dispatch %q: type %q: %w", name, tag, domain.ErrInvalidActionType),
		})
	}

	return s.Dispatch(ctx, domain.Action{Type: tag, Payload: payload})
}

// Do dispatches by name and waits for that transition to apply, returning
// the snapshot it published.
func (s *Store) Do(ctx context.Context, name string, payload any) (domain.Tree, error) {
	return s.DispatchNamed(ctx, name, "", payload).Wait(ctx)
}

// DoType is Do for names registered under several type tags.
func (s *Store) DoType(ctx context.Context, name, typeTag string, payload any) (domain.Tree, error) {
	return s.DispatchNamed(ctx, name, typeTag, payload).Wait(ctx)
}

// Snapshot returns a read-only view of the current tree.
func (s *Store) Snapshot() domain.Snapshot {
	return domain.NewSnapshot(s.value.Get())
}

// State returns the current tree. Treat it as read-only; deriving new
// values instead of writing in place is what keeps published snapshots
// consistent for every observer.
func (s *Store) State() domain.Tree {
	return s.value.Get()
}

// Subscribe registers a callback invoked on every published snapshot,
// optionally scoped to a path and filtered by a should-update predicate.
// Callbacks run synchronously on the dispatch loop and must not block; use
// Dispatch, not Do, for follow-up transitions.
func (s *Store) Subscribe(fn observe.Callback, opts ...observe.SubscriptionOption) *observe.Subscription {
	return s.value.Subscribe(fn, opts...)
}

// View narrows the store to a dotted path for reads and subscriptions.
func (s *Store) View(path string) *observe.View {
	return s.value.View(path)
}

// Watch streams every published snapshot in order until ctx is done.
func (s *Store) Watch(ctx context.Context) <-chan domain.Tree {
	return s.value.Watch(ctx)
}

// Value exposes the underlying observable holding the current snapshot.
func (s *Store) Value() *observe.Value {
	return s.value
}

// Actions lists the registered names and their type tags.
func (s *Store) Actions() []ActionInfo {
	out := make([]ActionInfo, len(s.infos))
	copy(out, s.infos)
	return out
}

// Layout lists the compiled reducer leaves: selector paths and the type
// tags chained at each.
func (s *Store) Layout() []domain.LayoutEntry {
	out := make([]domain.LayoutEntry, len(s.layout))
	copy(out, s.layout)
	return out
}

// Queued reports the current dispatch queue depth.
func (s *Store) Queued() int {
	return s.engine.Queued()
}

// Name returns the store's label, "" if none was set.
func (s *Store) Name() string {
	return s.name
}

// Close stops intake, applies every transition already queued, drains
// pending side effects, and releases the store's goroutines. Submissions
// after Close fail with domain.ErrClosed. Close is idempotent.
func (s *Store) Close() error {
	return s.engine.Close()
}
