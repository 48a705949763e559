/*
Package canopy is a single-writer state container: one tree of application
state, mutated only through registered transition handlers, observed through
immutable snapshots and path-scoped subscriptions.

It combines two mechanisms. A reducer compiler turns a flat collection of
handlers (each a dotted-path selector plus a pure transition function)
into one tree-shaped update function. A dispatch engine then serializes
every transition through that function: submissions arriving while another
transition is in flight are queued and applied one at a time, in submission
order, never interleaved and never lost. That guarantee covers re-entrant
dispatches made from inside handlers and side effects.

# Concept

State shape is implied, not declared: registering a handler for
"clock.minute" is what makes the clock branch exist. Handlers receive the
prior value at their selector and return the next one; the store assembles
each new snapshot by copy-on-write, so a published tree is never mutated and
old snapshots stay valid for whoever holds them. Side effects registered for
a type tag run after a matching transition applies, in registration order,
with a read-only snapshot and a dispatch function for follow-ups.

# Key Features

  - Serialized Transitions: strict FIFO application, one transition at a
    time, including re-entrant dispatch from handlers and effects.
  - Immutable Snapshots: copy-on-write publishing; observers compare old
    and new values without locks.
  - Path Subscriptions: subscribe to "clock.minute" and hear only about
    minutes, with an optional should-update predicate.
  - Hexagonal Architecture: the core is decoupled from adapters (HTTP,
    CLI, metrics).

# Usage

Register handlers, build the store, dispatch:

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/canopy"
		"github.com/aretw0/canopy/pkg/domain"
	)

	func main() {
		reg := canopy.NewRegistry()
		err := reg.Register("increment", domain.Declaration{
			Type:     "counter/increment",
			Selector: "counter",
			Handler: func(ctx context.Context, prior, payload any) (any, error) {
				if prior == nil {
					return 0, nil // initial value
				}
				step, _ := payload.(int)
				if step == 0 {
					step = 1
				}
				return prior.(int) + step, nil
			},
		})
		if err != nil {
			log.Fatal(err)
		}

		store, err := canopy.New(reg)
		if err != nil {
			log.Fatal(err)
		}
		defer store.Close()

		ctx := context.Background()
		tree, err := store.Do(ctx, "increment", 5)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(tree["counter"]) // 5
	}
*/
package canopy
