// Package observe provides the get/set+notify primitive the store publishes
// its snapshots through.
//
// A Value holds the current state tree. Writers replace it with Set, which
// synchronously notifies every active subscription with the old and new
// values; readers take the current tree with Get or a narrowed View.
// Subscriptions can be scoped to a dotted path and filtered with a
// should-update predicate comparing the values at that path.
//
// Set is a single-writer operation: the store's dispatch loop is the only
// caller. Get, Subscribe and Cancel are safe from any goroutine, including
// from inside a notification callback.
package observe

import (
	"context"
	"reflect"
	"sync"

	"github.com/aretw0/canopy/pkg/domain"
)

// Callback receives the previous and the new value of a subscription's
// scope: the whole tree (as domain.Tree) for unscoped subscriptions, the
// value at the subscribed path otherwise. Callbacks run synchronously on
// the publishing goroutine and must not block; use an asynchronous dispatch
// for follow-up transitions.
type Callback func(old, next any)

// Value holds the current snapshot behind a get/set+notify primitive.
type Value struct {
	mu   sync.RWMutex
	tree domain.Tree
	subs []*Subscription
	byID map[string]*Subscription
}

// NewValue creates a Value holding the initial tree.
func NewValue(initial domain.Tree) *Value {
	return &Value{
		tree: initial,
		byID: make(map[string]*Subscription),
	}
}

// Get returns the current tree. Treat it as read-only.
func (v *Value) Get() domain.Tree {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.tree
}

// Set replaces the current tree and notifies subscriptions in registration
// order. The old tree must already be out of the writer's hands: published
// trees are immutable.
func (v *Value) Set(next domain.Tree) {
	v.mu.Lock()
	old := v.tree
	v.tree = next
	v.prune()
	active := make([]*Subscription, len(v.subs))
	copy(active, v.subs)
	v.mu.Unlock()

	// Deliver outside the lock so callbacks may subscribe or cancel.
	for _, sub := range active {
		sub.deliver(old, next)
	}
}

// prune drops cancelled subscriptions. Caller holds the write lock.
func (v *Value) prune() {
	kept := v.subs[:0]
	for _, sub := range v.subs {
		if sub.Active() {
			kept = append(kept, sub)
		} else {
			delete(v.byID, sub.ID())
		}
	}
	v.subs = kept
}

// Subscribe registers a callback for future Set calls and returns its
// subscription handle. Options scope the subscription to a path, override
// the change predicate, or cancel it after the first delivery.
func (v *Value) Subscribe(fn Callback, opts ...SubscriptionOption) *Subscription {
	sub := newSubscription(fn, opts...)
	v.mu.Lock()
	v.subs = append(v.subs, sub)
	v.byID[sub.ID()] = sub
	v.mu.Unlock()
	return sub
}

// Unsubscribe cancels the subscription with the given ID. It reports
// whether the ID was known.
func (v *Value) Unsubscribe(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	sub, ok := v.byID[id]
	if !ok {
		return false
	}
	sub.Cancel()
	delete(v.byID, id)
	return true
}

// View narrows the Value to a dotted path. The path may also be given
// pre-split via ViewPath.
func (v *Value) View(path string) *View {
	return v.ViewPath(domain.SplitPath(path))
}

// ViewPath is View for pre-split segments.
func (v *Value) ViewPath(segments []string) *View {
	return &View{value: v, segments: segments, path: domain.JoinPath(segments)}
}

// Watch streams every published tree, in publish order, until ctx is done.
// Deliveries are buffered internally so a slow receiver never blocks the
// publisher; the channel closes once ctx is cancelled.
func (v *Value) Watch(ctx context.Context) <-chan domain.Tree {
	out := make(chan domain.Tree)
	var (
		mu      sync.Mutex
		backlog []domain.Tree
	)
	wake := make(chan struct{}, 1)

	sub := v.Subscribe(func(_, next any) {
		tree, _ := next.(domain.Tree)
		mu.Lock()
		backlog = append(backlog, tree)
		mu.Unlock()
		select {
		case wake <- struct{}{}:
		default:
		}
	})

	go func() {
		defer close(out)
		defer sub.Cancel()
		for {
			mu.Lock()
			pending := backlog
			backlog = nil
			mu.Unlock()

			for _, tree := range pending {
				select {
				case out <- tree:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-wake:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// changed is the default should-update predicate: deliver when the old and
// new values differ.
func changed(old, next any) bool {
	return !reflect.DeepEqual(old, next)
}
