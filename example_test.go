package canopy_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/observe"
)

// Example demonstrates the smallest useful store: one named action whose
// handler folds the payload into a single counter leaf.
func Example() {
	// 1. Declare the action. The handler's nil-prior branch supplies the
	// leaf's initial value during the store's structural pass.
	reg := canopy.NewRegistry()
	err := reg.Register("increment", domain.Declaration{
		Type:     "INC",
		Selector: "counter",
		Handler: func(ctx context.Context, prior, payload any) (any, error) {
			if prior == nil {
				return 0, nil
			}
			return prior.(int) + payload.(int), nil
		},
	})
	if err != nil {
		log.Fatal(err)
	}

	// 2. Build the store. New materializes every registered leaf.
	store, err := canopy.New(reg)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	fmt.Printf("initial: %v\n", store.State()["counter"])

	// 3. Dispatch by name and wait for the resulting snapshot.
	tree, err := store.Do(context.Background(), "increment", 5)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("after: %v\n", tree["counter"])
	// Output:
	// initial: 0
	// after: 5
}

// ExampleStore_Subscribe scopes a subscription to a dotted path so the
// callback only sees changes beneath it.
func ExampleStore_Subscribe() {
	reg := canopy.NewRegistry()
	err := reg.Register("rename", domain.Declaration{
		Type:     "user/rename",
		Selector: "user.name",
		Handler: func(ctx context.Context, prior, payload any) (any, error) {
			if prior == nil && payload == nil {
				return "nobody", nil
			}
			return payload, nil
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

	// Callbacks run on the dispatch loop, before the dispatch resolves.
	store.Subscribe(func(old, next any) {
		fmt.Printf("%v -> %v\n", old, next)
	}, observe.WithPath("user.name"))

	ctx := context.Background()
	if _, err := store.Do(ctx, "rename", "ada"); err != nil {
		log.Fatal(err)
	}
	if _, err := store.Do(ctx, "rename", "grace"); err != nil {
		log.Fatal(err)
	}
	// Output:
	// nobody -> ada
	// ada -> grace
}

// ExampleRegistry_SideEffect reacts to a transition after it has been
// applied. Effects receive the post-transition snapshot and a dispatch
// function for follow-up actions.
func ExampleRegistry_SideEffect() {
	reg := canopy.NewRegistry()
	err := reg.Register("increment", domain.Declaration{
		Type:     "INC",
		Selector: "counter",
		Handler: func(ctx context.Context, prior, payload any) (any, error) {
			if prior == nil {
				return 0, nil
			}
			return prior.(int) + payload.(int), nil
		},
	})
	if err != nil {
		log.Fatal(err)
	}

	// Effects run off the dispatch loop; hand their observations back on a
	// channel to sequence the example's output.
	seen := make(chan any, 1)
	err = reg.SideEffect("INC", func(ctx context.Context, snap domain.Snapshot, dispatch domain.DispatchFunc) error {
		v, _ := snap.At("counter")
		seen <- v
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	store, err := canopy.New(reg)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	if _, err := store.Do(context.Background(), "increment", 7); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("effect saw: %v\n", <-seen)
	// Output:
	// effect saw: 7
}
