package canopy

import (
	"fmt"
	"sync"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/google/uuid"
)

// Registry collects transition handlers and side effects at configuration
// time. A Store consumes an immutable copy of its contents when built;
// registrations made afterwards only affect stores built later.
type Registry struct {
	mu      sync.RWMutex
	decls   []domain.Declaration
	order   []string                       // names in registration order
	names   map[string][]string            // name -> type tags, insertion order
	owners  map[string]string              // type tag -> owning name
	effects map[string][]domain.EffectFunc // type tag -> callbacks, registration order
}

// ActionInfo describes one registered action name and its type tags.
type ActionInfo struct {
	Name  string
	Types []string
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		names:   make(map[string][]string),
		owners:  make(map[string]string),
		effects: make(map[string][]domain.EffectFunc),
	}
}

// Register records an action under a unique human-facing name.
//
// A single declaration may omit its type tag; a unique one is synthesized.
// With several declarations every tag must be explicit: tags may repeat
// within the registration (one name fanning one tag out to several
// selectors) but a tag already owned by another name is rejected. Nothing
// is recorded unless the whole registration validates.
func (r *Registry) Register(name string, decls ...domain.Declaration) error {
	if name == "" {
		return fmt.Errorf("register: %w", domain.ErrEmptyName)
	}
	if len(decls) == 0 {
		return fmt.Errorf("register %q: %w", name, domain.ErrNoDeclarations)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.names[name]; taken {
		return fmt.Errorf("register %q: %w", name, domain.ErrDuplicateName)
	}

	for i := range decls {
		d := &decls[i]
		if d.Selector == "" {
			return fmt.Errorf("register %q: declaration %d: %w", name, i, domain.ErrEmptySelector)
		}
		if d.Handler == nil {
			return fmt.Errorf("register %q: declaration %d (%s): %w", name, i, d.Selector, domain.ErrNilHandler)
		}
		switch {
		case d.Type == "" && len(decls) == 1:
			d.Type = r.syntheticTag(name)
		case d.Type == "":
			return fmt.Errorf("register %q: declaration %d (%s): %w", name, i, d.Selector, domain.ErrMissingType)
		}
		if owner, used := r.owners[d.Type]; used && owner != name {
			return fmt.Errorf("register %q: type %q belongs to %q: %w", name, d.Type, owner, domain.ErrDuplicateType)
		}
	}

	// Validated; commit.
	var tags []string
	seen := make(map[string]bool)
	for _, d := range decls {
		r.decls = append(r.decls, d)
		r.owners[d.Type] = name
		if !seen[d.Type] {
			seen[d.Type] = true
			tags = append(tags, d.Type)
		}
	}
	r.names[name] = tags
	r.order = append(r.order, name)
	return nil
}

// syntheticTag mints a type tag no registration has used yet. Caller holds
// the lock.
func (r *Registry) syntheticTag(name string) string {
	for {
		tag := name + "#" + uuid.NewString()
		if _, used := r.owners[tag]; !used {
			return tag
		}
	}
}

// SideEffect appends a callback for a type tag. Existing callbacks for the
// tag are kept; effects run in registration order after a transition with
// that tag has been applied.
func (r *Registry) SideEffect(typeTag string, fn domain.EffectFunc) error {
	if typeTag == "" {
		return fmt.Errorf("side effect: %w", domain.ErrEmptyType)
	}
	if fn == nil {
		return fmt.Errorf("side effect %q: %w", typeTag, domain.ErrNilEffect)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.effects[typeTag] = append(r.effects[typeTag], fn)
	return nil
}

// Actions lists the registered names and their type tags in registration
// order.
func (r *Registry) Actions() []ActionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ActionInfo, 0, len(r.order))
	for _, name := range r.order {
		tags := r.names[name]
		out = append(out, ActionInfo{Name: name, Types: append([]string(nil), tags...)})
	}
	return out
}

// snapshot hands a store an immutable copy of the registry's contents.
func (r *Registry) snapshot() ([]domain.Declaration, []ActionInfo, map[string][]domain.EffectFunc) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	decls := append([]domain.Declaration(nil), r.decls...)
	actions := make([]ActionInfo, 0, len(r.order))
	for _, name := range r.order {
		actions = append(actions, ActionInfo{Name: name, Types: append([]string(nil), r.names[name]...)})
	}
	effects := make(map[string][]domain.EffectFunc, len(r.effects))
	for tag, fns := range r.effects {
		effects[tag] = append([]domain.EffectFunc(nil), fns...)
	}
	return decls, actions, effects
}
