// Package metrics exposes a store's dispatch activity as Prometheus
// collectors. Build a Collector, register it, and pass its Hooks to the
// store:
//
//	col := metrics.New("myapp", prometheus.DefaultRegisterer)
//	store, err := canopy.New(reg, canopy.WithHooks(col.Hooks()))
//
// Serve the registry with promhttp wherever the application exposes HTTP.
package metrics

import (
	"context"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the store-level metrics. All of them are labelled by
// action type tag where that makes sense, so one Collector covers one
// store; give each store its own namespace when an application runs
// several.
type Collector struct {
	transitions *prometheus.CounterVec
	duration    prometheus.Histogram
	queueDepth  prometheus.Gauge
	effects     *prometheus.CounterVec
}

// New builds a Collector and registers its metrics with reg. A nil reg
// falls back to the default registerer. Registration panics on duplicate
// names, same as prometheus.MustRegister.
func New(namespace string, reg prometheus.Registerer) *Collector {
	if namespace == "" {
		namespace = "canopy"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Transitions served, by action type and outcome.",
			},
			[]string{"type", "outcome"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transition_duration_seconds",
				Help:      "Time spent applying a transition.",
			},
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_depth",
				Help:      "Transitions waiting behind the one in flight.",
			},
		),
		effects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "effects_total",
				Help:      "Side-effect invocations, by action type and outcome.",
			},
			[]string{"type", "outcome"},
		),
	}
	reg.MustRegister(c.transitions, c.duration, c.queueDepth, c.effects)
	return c
}

// Hooks returns the callbacks that feed this Collector. Combine with other
// hook sets via domain.JoinHooks.
func (c *Collector) Hooks() domain.Hooks {
	return domain.Hooks{
		OnEnqueue: func(_ context.Context, e *domain.TransitionEvent) {
			c.queueDepth.Set(float64(e.Queued))
		},
		OnApply: func(_ context.Context, e *domain.TransitionEvent) {
			c.transitions.WithLabelValues(e.Type, "applied").Inc()
			c.duration.Observe(e.Duration.Seconds())
			c.queueDepth.Set(float64(e.Queued))
		},
		OnFail: func(_ context.Context, e *domain.TransitionEvent) {
			c.transitions.WithLabelValues(e.Type, "failed").Inc()
			c.queueDepth.Set(float64(e.Queued))
		},
		OnEffect: func(_ context.Context, e *domain.EffectEvent) {
			outcome := "ok"
			if e.Err != nil {
				outcome = "error"
			}
			c.effects.WithLabelValues(e.Type, outcome).Inc()
		},
	}
}
