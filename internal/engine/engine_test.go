package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/canopy/internal/compiler"
	"github.com/aretw0/canopy/internal/engine"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/observe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterHandler(ctx context.Context, prior, payload any) (any, error) {
	if prior == nil {
		return 0, nil
	}
	step, _ := payload.(int)
	if step == 0 {
		step = 1
	}
	return prior.(int) + step, nil
}

// newCounterEngine builds a started engine over {"counter": 0} with the
// given side effects for type "tick".
func newCounterEngine(t *testing.T, effects []domain.EffectFunc, cfgTweak func(*engine.Config)) (*engine.Engine, *observe.Value) {
	t.Helper()

	reducer := compiler.Compile([]domain.Declaration{
		{Type: "tick", Selector: "counter", Handler: counterHandler},
	})
	base, err := reducer.Apply(context.Background(), nil, nil)
	require.NoError(t, err, "structural pass must succeed")

	value := observe.NewValue(base)
	cfg := engine.Config{
		Reducer: reducer,
		Value:   value,
	}
	if len(effects) > 0 {
		cfg.Effects = map[string][]domain.EffectFunc{"tick": effects}
	}
	if cfgTweak != nil {
		cfgTweak(&cfg)
	}
	e := engine.New(cfg)
	t.Cleanup(func() { _ = e.Close() })
	return e, value
}

func waitResult(t *testing.T, ch <-chan domain.Result) domain.Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a transition result")
		return domain.Result{}
	}
}

func TestEngine_AppliesTransition(t *testing.T) {
	e, value := newCounterEngine(t, nil, nil)

	res := waitResult(t, e.Submit(context.Background(), domain.Action{Type: "tick", Payload: 5}))
	require.NoError(t, res.Err)

	assert.Equal(t, 5, res.State["counter"])
	assert.Equal(t, 5, value.Get()["counter"], "published snapshot matches the result")
}

func TestEngine_SequentialSubmissionsResolveInOrder(t *testing.T) {
	e, _ := newCounterEngine(t, nil, nil)
	ctx := context.Background()

	// Queue three transitions without waiting in between.
	first := e.Submit(ctx, domain.Action{Type: "tick"})
	second := e.Submit(ctx, domain.Action{Type: "tick"})
	third := e.Submit(ctx, domain.Action{Type: "tick"})

	assert.Equal(t, 1, waitResult(t, first).State["counter"])
	assert.Equal(t, 2, waitResult(t, second).State["counter"])
	assert.Equal(t, 3, waitResult(t, third).State["counter"])
}

func TestEngine_ConcurrentSubmissionsNeverShareABase(t *testing.T) {
	e, value := newCounterEngine(t, nil, nil)

	watchCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed := value.Watch(watchCtx)

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-e.Submit(context.Background(), domain.Action{Type: "tick"})
		}()
	}
	wg.Wait()

	// Serialized increments publish every intermediate value exactly once.
	for want := 1; want <= n; want++ {
		select {
		case tree := <-feed:
			assert.Equal(t, want, tree["counter"], "snapshot %d", want)
		case <-time.After(3 * time.Second):
			t.Fatalf("missing snapshot %d", want)
		}
	}
	assert.Equal(t, n, value.Get()["counter"])
}

func TestEngine_HandlerErrorFailsOnlyItsTransition(t *testing.T) {
	boom := errors.New("boom")
	reducer := compiler.Compile([]domain.Declaration{
		{Type: "tick", Selector: "counter", Handler: counterHandler},
		{Type: "explode", Selector: "counter", Handler: func(ctx context.Context, prior, payload any) (any, error) {
			if prior == nil && payload == nil {
				return 0, nil
			}
			return nil, boom
		}},
	})
	base, err := reducer.Apply(context.Background(), nil, nil)
	require.NoError(t, err)

	value := observe.NewValue(base)
	e := engine.New(engine.Config{Reducer: reducer, Value: value})
	t.Cleanup(func() { _ = e.Close() })

	failed := waitResult(t, e.Submit(context.Background(), domain.Action{Type: "explode"}))
	require.Error(t, failed.Err)
	var herr *domain.HandlerError
	assert.ErrorAs(t, failed.Err, &herr)
	assert.Equal(t, 0, failed.State["counter"], "failed transition leaves the snapshot untouched")

	// The queue keeps serving.
	ok := waitResult(t, e.Submit(context.Background(), domain.Action{Type: "tick"}))
	require.NoError(t, ok.Err)
	assert.Equal(t, 1, ok.State["counter"])
}

func TestEngine_ReentrantDispatchFromEffect(t *testing.T) {
	effect := func(ctx context.Context, snap domain.Snapshot, dispatch domain.DispatchFunc) error {
		// Chain a follow-up only after the first transition.
		if v, _ := snap.At("counter"); v == 1 {
			dispatch(ctx, domain.Action{Type: "tick", Payload: 10})
		}
		return nil
	}
	e, value := newCounterEngine(t, []domain.EffectFunc{effect}, nil)

	watchCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed := value.Watch(watchCtx)

	res := waitResult(t, e.Submit(context.Background(), domain.Action{Type: "tick"}))
	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.State["counter"], "the triggering transition resolves with its own snapshot")

	// The effect's transition lands strictly after the one that spawned it.
	want := []int{1, 11}
	for i, expected := range want {
		select {
		case tree := <-feed:
			assert.Equal(t, expected, tree["counter"], "publish %d", i)
		case <-time.After(3 * time.Second):
			t.Fatalf("missing publish %d", i)
		}
	}
}

func TestEngine_EffectsRunInRegistrationOrder(t *testing.T) {
	order := make(chan string, 4)
	seen := make(chan any, 2)
	first := func(ctx context.Context, snap domain.Snapshot, dispatch domain.DispatchFunc) error {
		order <- "first"
		v, _ := snap.At("counter")
		seen <- v
		return nil
	}
	second := func(ctx context.Context, snap domain.Snapshot, dispatch domain.DispatchFunc) error {
		order <- "second"
		v, _ := snap.At("counter")
		seen <- v
		return nil
	}
	e, _ := newCounterEngine(t, []domain.EffectFunc{first, second}, nil)

	res := waitResult(t, e.Submit(context.Background(), domain.Action{Type: "tick"}))
	require.NoError(t, res.Err)

	for _, want := range []string{"first", "second"} {
		select {
		case got := <-order:
			assert.Equal(t, want, got)
		case <-time.After(3 * time.Second):
			t.Fatalf("effect %q never ran", want)
		}
	}
	assert.Equal(t, 1, <-seen, "effects observe the post-transition snapshot")
	assert.Equal(t, 1, <-seen)
}

func TestEngine_EffectErrorsRoutedToHandler(t *testing.T) {
	failure := errors.New("effect exploded")
	caught := make(chan error, 2)

	effects := []domain.EffectFunc{
		func(ctx context.Context, snap domain.Snapshot, dispatch domain.DispatchFunc) error {
			return failure
		},
		func(ctx context.Context, snap domain.Snapshot, dispatch domain.DispatchFunc) error {
			panic("unruly effect")
		},
	}
	e, _ := newCounterEngine(t, effects, func(cfg *engine.Config) {
		cfg.OnEffectError = func(err error, act domain.Action) {
			caught <- err
		}
	})

	res := waitResult(t, e.Submit(context.Background(), domain.Action{Type: "tick"}))
	require.NoError(t, res.Err, "effect failures never fail the dispatch")

	select {
	case err := <-caught:
		assert.ErrorIs(t, err, failure)
	case <-time.After(3 * time.Second):
		t.Fatal("effect error never reached the handler")
	}
	select {
	case err := <-caught:
		assert.Contains(t, err.Error(), "panicked", "panics surface as errors")
	case <-time.After(3 * time.Second):
		t.Fatal("effect panic never reached the handler")
	}

	// The effect loop survives both.
	res = waitResult(t, e.Submit(context.Background(), domain.Action{Type: "tick"}))
	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.State["counter"])
}

func TestEngine_CancelledContextFailsTransition(t *testing.T) {
	e, value := newCounterEngine(t, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := waitResult(t, e.Submit(ctx, domain.Action{Type: "tick"}))
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, 0, value.Get()["counter"], "state is untouched")
}

func TestEngine_CloseDrainsThenRejects(t *testing.T) {
	e, value := newCounterEngine(t, nil, nil)
	ctx := context.Background()

	pending := make([]<-chan domain.Result, 0, 3)
	for i := 0; i < 3; i++ {
		pending = append(pending, e.Submit(ctx, domain.Action{Type: "tick"}))
	}

	require.NoError(t, e.Close())

	// Everything queued before Close still applied.
	for _, ch := range pending {
		require.NoError(t, waitResult(t, ch).Err)
	}
	assert.Equal(t, 3, value.Get()["counter"])

	// New submissions are rejected.
	res := waitResult(t, e.Submit(ctx, domain.Action{Type: "tick"}))
	assert.ErrorIs(t, res.Err, domain.ErrClosed)

	require.NoError(t, e.Close(), "Close is idempotent")
}

func TestEngine_HooksFire(t *testing.T) {
	var mu sync.Mutex
	var enqueued, applied, failed, effects int

	hooks := domain.Hooks{
		OnEnqueue: func(ctx context.Context, ev *domain.TransitionEvent) {
			mu.Lock()
			enqueued++
			mu.Unlock()
		},
		OnApply: func(ctx context.Context, ev *domain.TransitionEvent) {
			mu.Lock()
			applied++
			mu.Unlock()
		},
		OnFail: func(ctx context.Context, ev *domain.TransitionEvent) {
			mu.Lock()
			failed++
			mu.Unlock()
		},
		OnEffect: func(ctx context.Context, ev *domain.EffectEvent) {
			mu.Lock()
			effects++
			mu.Unlock()
		},
	}

	effect := func(ctx context.Context, snap domain.Snapshot, dispatch domain.DispatchFunc) error {
		return nil
	}
	e, _ := newCounterEngine(t, []domain.EffectFunc{effect}, func(cfg *engine.Config) {
		cfg.Hooks = hooks
	})

	waitResult(t, e.Submit(context.Background(), domain.Action{Type: "tick"}))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	waitResult(t, e.Submit(cancelled, domain.Action{Type: "tick"}))

	require.NoError(t, e.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, enqueued)
	assert.Equal(t, 1, applied)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, effects)
}
