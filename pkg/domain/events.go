package domain

import (
	"context"
	"time"
)

// TransitionEvent describes one transition moving through the dispatch loop.
type TransitionEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	Type      string        `json:"type"`               // action type tag
	Queued    int           `json:"queued"`             // queue depth observed when the event fired
	Duration  time.Duration `json:"duration,omitempty"` // set on apply and fail
	Err       error         `json:"-"`                  // set on fail
}

// EffectEvent describes one side-effect invocation.
type EffectEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`  // type tag the effect reacted to
	Index     int       `json:"index"` // position in the tag's registration order
	Err       error     `json:"-"`
}

// Hooks defines callbacks for store observability. All fields are optional;
// nil callbacks are skipped. Callbacks run synchronously on the dispatch and
// effect loops and must be fast and non-blocking.
type Hooks struct {
	OnEnqueue func(context.Context, *TransitionEvent)
	OnApply   func(context.Context, *TransitionEvent)
	OnFail    func(context.Context, *TransitionEvent)
	OnEffect  func(context.Context, *EffectEvent)
}

// JoinHooks fans each callback out to every non-nil counterpart, in the
// order given. Use it to stack independent hook sets, say logging plus
// metrics, onto one store.
func JoinHooks(sets ...Hooks) Hooks {
	var joined Hooks
	for _, s := range sets {
		joined.OnEnqueue = joinTransition(joined.OnEnqueue, s.OnEnqueue)
		joined.OnApply = joinTransition(joined.OnApply, s.OnApply)
		joined.OnFail = joinTransition(joined.OnFail, s.OnFail)
		joined.OnEffect = joinEffect(joined.OnEffect, s.OnEffect)
	}
	return joined
}

func joinTransition(a, b func(context.Context, *TransitionEvent)) func(context.Context, *TransitionEvent) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e *TransitionEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func joinEffect(a, b func(context.Context, *EffectEvent)) func(context.Context, *EffectEvent) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e *EffectEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
