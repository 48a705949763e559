package cli

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/pkg/domain"
)

// DemoRegistry declares the actions the bundled demo store ships with: a
// counter pair, a renameable user leaf, a clock tag fanning out to two
// selectors, a deliberately failing action, and a side effect announcing
// counter changes.
func DemoRegistry() (*canopy.Registry, error) {
	reg := canopy.NewRegistry()

	if err := reg.Register("increment", domain.Declaration{
		Type:     "counter/inc",
		Selector: "counter",
		Handler:  counterHandler(1),
	}); err != nil {
		return nil, err
	}
	if err := reg.Register("decrement", domain.Declaration{
		Type:     "counter/dec",
		Selector: "counter",
		Handler:  counterHandler(-1),
	}); err != nil {
		return nil, err
	}
	if err := reg.Register("rename", domain.Declaration{
		Type:     "user/rename",
		Selector: "user.name",
		Handler: func(ctx context.Context, prior, payload any) (any, error) {
			if prior == nil {
				return "guest", nil
			}
			if payload == nil {
				return prior, nil
			}
			return payload, nil
		},
	}); err != nil {
		return nil, err
	}
	if err := reg.Register("tick",
		domain.Declaration{
			Type:     "clock/tick",
			Selector: "clock.ticks",
			Handler: func(ctx context.Context, prior, payload any) (any, error) {
				if prior == nil {
					return float64(0), nil
				}
				return asNumber(prior) + 1, nil
			},
		},
		domain.Declaration{
			Type:     "clock/tick",
			Selector: "clock.last",
			Handler: func(ctx context.Context, prior, payload any) (any, error) {
				if prior == nil {
					return "never", nil
				}
				return time.Now().Format(time.RFC3339), nil
			},
		},
	); err != nil {
		return nil, err
	}
	if err := reg.Register("boom", domain.Declaration{
		Type:     "demo/boom",
		Selector: "fuse",
		Handler: func(ctx context.Context, prior, payload any) (any, error) {
			if prior == nil {
				return "ok", nil
			}
			return nil, errors.New("the fuse blew, state stays put")
		},
	}); err != nil {
		return nil, err
	}

	if err := reg.SideEffect("counter/inc", func(ctx context.Context, snap domain.Snapshot, dispatch domain.DispatchFunc) error {
		v, _ := snap.At("counter")
		printSystemMessage("counter is now %v", v)
		return nil
	}); err != nil {
		return nil, err
	}

	return reg, nil
}

// counterHandler folds numeric payloads into the counter leaf; a bare
// dispatch moves it by one step in the given direction.
func counterHandler(direction float64) domain.HandlerFunc {
	return func(ctx context.Context, prior, payload any) (any, error) {
		if prior == nil {
			return float64(0), nil
		}
		delta := float64(1)
		if payload != nil {
			delta = asNumber(payload)
		}
		return asNumber(prior) + direction*delta, nil
	}
}

// asNumber widens the numeric types a payload may arrive as: int from Go
// callers, float64 from JSON and YAML decoding.
func asNumber(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

// BuildStore assembles the demo store: the bundled registry, an optional
// seed file, debug hooks when requested, plus any extra hook sets (say a
// metrics collector).
func BuildStore(opts RunOptions, hooks ...domain.Hooks) (*canopy.Store, error) {
	reg, err := DemoRegistry()
	if err != nil {
		return nil, err
	}

	logger := createLogger(opts.Debug)
	storeOpts := []canopy.Option{canopy.WithLogger(logger)}
	if opts.Name != "" {
		storeOpts = append(storeOpts, canopy.WithName(opts.Name))
	}
	if opts.Debug {
		hooks = append([]domain.Hooks{createDebugHooks(logger)}, hooks...)
	}
	if len(hooks) > 0 {
		storeOpts = append(storeOpts, canopy.WithHooks(domain.JoinHooks(hooks...)))
	}
	if opts.StatePath != "" {
		seed, err := LoadInitialState(opts.StatePath)
		if err != nil {
			return nil, err
		}
		storeOpts = append(storeOpts, canopy.WithInitialState(seed))
	}

	return canopy.New(reg, storeOpts...)
}
