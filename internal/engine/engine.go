// Package engine serializes state transitions.
//
// One goroutine owns the current snapshot: it drains an explicit FIFO task
// queue, applies the composed reducer one transition at a time, publishes
// each new snapshot, and resolves each submission's result channel. A
// second goroutine runs side effects, batch by batch, so effects can block
// (and even wait on their own follow-up dispatches) without stalling the
// transition loop.
//
// The guarantees the rest of the system leans on:
//
//   - transitions apply in strict submission order, including submissions
//     made from inside handlers and effects, which land after the
//     transition in flight;
//   - no two transitions ever compute against the same base snapshot;
//   - a failed transition leaves the snapshot untouched and fails only its
//     own submitter, the queue keeps moving.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/canopy/internal/compiler"
	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/observe"
)

// task is one queued transition with its pending result.
type task struct {
	ctx    context.Context
	act    domain.Action
	result chan domain.Result
}

// effectBatch carries one applied transition's matching effects to the
// effect loop.
type effectBatch struct {
	act     domain.Action
	snap    domain.Snapshot
	effects []domain.EffectFunc
}

// EffectErrorHandler receives errors (and recovered panics) from side
// effects, which are never surfaced to dispatch callers.
type EffectErrorHandler func(err error, act domain.Action)

// Config wires an Engine.
type Config struct {
	Reducer *compiler.Reducer
	Value   *observe.Value
	Effects map[string][]domain.EffectFunc
	Logger  *slog.Logger
	Hooks   domain.Hooks

	// OnEffectError defaults to a warn log entry.
	OnEffectError EffectErrorHandler
}

// Engine owns the snapshot held in Config.Value and is its only writer.
type Engine struct {
	reducer       *compiler.Reducer
	value         *observe.Value
	effects       map[string][]domain.EffectFunc
	logger        *slog.Logger
	hooks         domain.Hooks
	onEffectError EffectErrorHandler

	tasks   *fifo[*task]
	batches *fifo[effectBatch]

	ctx    context.Context
	cancel context.CancelFunc

	loopDone   chan struct{}
	effectDone chan struct{}
	closeOnce  sync.Once
}

// New builds an Engine and starts its transition and effect loops.
func New(cfg Config) *Engine {
	e := &Engine{
		reducer:       cfg.Reducer,
		value:         cfg.Value,
		effects:       cfg.Effects,
		logger:        cfg.Logger,
		hooks:         cfg.Hooks,
		onEffectError: cfg.OnEffectError,
		tasks:         newFifo[*task](),
		batches:       newFifo[effectBatch](),
		loopDone:      make(chan struct{}),
		effectDone:    make(chan struct{}),
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.onEffectError == nil {
		e.onEffectError = func(err error, act domain.Action) {
			e.logger.Warn("side effect failed", "type", act.Type, "err", err)
		}
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())

	go e.loop()
	go e.effectLoop()
	return e
}

// Submit queues a transition and returns its pending result. It never
// blocks; the channel receives exactly one Result once the transition has
// been served (or rejected) and is then closed.
//
// Submissions after Close fail with domain.ErrClosed. A context already
// cancelled when the transition reaches the head of the queue fails that
// transition without touching the state.
func (e *Engine) Submit(ctx context.Context, act domain.Action) <-chan domain.Result {
	t := &task{ctx: ctx, act: act, result: make(chan domain.Result, 1)}
	if !e.tasks.push(t) {
		e.resolve(t, domain.Result{State: e.value.Get(), Err: domain.ErrClosed})
		return t.result
	}
	e.emitTransition(e.hooks.OnEnqueue, &domain.TransitionEvent{
		Timestamp: time.Now(),
		Type:      act.Type,
		Queued:    e.tasks.len(),
	})
	return t.result
}

// Queued reports the current transition queue depth.
func (e *Engine) Queued() int {
	return e.tasks.len()
}

// Close stops intake, serves every transition already queued, drains the
// pending side effects, and releases the loops. It is idempotent and safe
// to call from any goroutine except the engine's own loops.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.tasks.close()
		<-e.loopDone
		e.batches.close()
		<-e.effectDone
		e.cancel()
	})
	return nil
}

// loop is the single consumer of the transition queue.
func (e *Engine) loop() {
	defer close(e.loopDone)
	for {
		tasks, open := e.tasks.wait()
		for _, t := range tasks {
			e.serve(t)
		}
		if !open {
			return
		}
	}
}

// serve applies one transition against the current snapshot.
func (e *Engine) serve(t *task) {
	if err := t.ctx.Err(); err != nil {
		e.failTransition(t, time.Now(), err)
		return
	}

	base := e.value.Get()
	start := time.Now()
	next, err := e.reducer.Apply(t.ctx, base, &t.act)
	if err != nil {
		e.failTransition(t, start, err)
		return
	}

	e.value.Set(next)
	e.emitTransition(e.hooks.OnApply, &domain.TransitionEvent{
		Timestamp: time.Now(),
		Type:      t.act.Type,
		Queued:    e.tasks.len(),
		Duration:  time.Since(start),
	})
	e.logger.Debug("transition applied",
		"type", t.act.Type,
		"queued", e.tasks.len(),
		"duration", time.Since(start))

	if effects := e.effects[t.act.Type]; len(effects) > 0 {
		e.batches.push(effectBatch{
			act:     t.act,
			snap:    domain.NewSnapshot(next),
			effects: effects,
		})
	}
	e.resolve(t, domain.Result{State: next})
}

func (e *Engine) failTransition(t *task, start time.Time, err error) {
	e.logger.Error("transition failed", "type", t.act.Type, "err", err)
	e.emitTransition(e.hooks.OnFail, &domain.TransitionEvent{
		Timestamp: time.Now(),
		Type:      t.act.Type,
		Queued:    e.tasks.len(),
		Duration:  time.Since(start),
		Err:       err,
	})
	e.resolve(t, domain.Result{
		State: e.value.Get(),
		Err:   fmt.Errorf("transition %q: %w", t.act.Type, err),
	})
}

func (e *Engine) resolve(t *task, res domain.Result) {
	t.result <- res
	close(t.result)
}

// effectLoop is the single consumer of effect batches. Running effects off
// the transition loop keeps dispatch latency independent of effect work and
// lets an effect wait on transitions it dispatched itself.
func (e *Engine) effectLoop() {
	defer close(e.effectDone)
	for {
		batches, open := e.batches.wait()
		for _, b := range batches {
			e.runBatch(b)
		}
		if !open {
			return
		}
	}
}

// runBatch invokes one transition's effects in registration order.
func (e *Engine) runBatch(b effectBatch) {
	for i, fn := range b.effects {
		err := e.invokeEffect(fn, b.snap)
		if err != nil {
			e.onEffectError(err, b.act)
		}
		e.emitEffect(&domain.EffectEvent{
			Timestamp: time.Now(),
			Type:      b.act.Type,
			Index:     i,
			Err:       err,
		})
	}
}

// invokeEffect shields the effect loop from panicking callbacks.
func (e *Engine) invokeEffect(fn domain.EffectFunc, snap domain.Snapshot) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("side effect panicked: %v", r)
		}
	}()
	return fn(e.ctx, snap, e.Submit)
}

func (e *Engine) emitTransition(hook func(context.Context, *domain.TransitionEvent), ev *domain.TransitionEvent) {
	if hook != nil {
		hook(e.ctx, ev)
	}
}

func (e *Engine) emitEffect(ev *domain.EffectEvent) {
	if e.hooks.OnEffect != nil {
		e.hooks.OnEffect(e.ctx, ev)
	}
}
