// Package telemetry exposes Prometheus metrics for the dialogue engine and
// HTTP layer.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all dialogue-related collectors. A nil *Metrics is valid
// and records nothing, which keeps tests free of registry setup.
type Metrics struct {
	turnsTotal          prometheus.Counter
	repliesPerTurn      prometheus.Histogram
	generationFallbacks prometheus.Counter
	validatorRetries    prometheus.Counter
	iterationLimitHits  prometheus.Counter
	turnDuration        prometheus.Histogram
}

// New registers the dialogue metric set with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		turnsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "stakesim_turns_total",
			Help: "Total dialogue turns processed.",
		}),
		repliesPerTurn: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "stakesim_replies_per_turn",
			Help:    "Persona replies produced per turn.",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		}),
		generationFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "stakesim_generation_fallbacks_total",
			Help: "Generation failures recovered with canned replies.",
		}),
		validatorRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "stakesim_validator_retries_total",
			Help: "Reply batches rejected by the validator.",
		}),
		iterationLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "stakesim_iteration_limit_hits_total",
			Help: "Turns abandoned at the interpreter iteration ceiling.",
		}),
		turnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "stakesim_turn_duration_seconds",
			Help:    "Wall time per dialogue turn.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) TurnProcessed(replies int, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.Inc()
	m.repliesPerTurn.Observe(float64(replies))
	m.turnDuration.Observe(seconds)
}

func (m *Metrics) GenerationFallback() {
	if m == nil {
		return
	}
	m.generationFallbacks.Inc()
}

func (m *Metrics) ValidatorRetry() {
	if m == nil {
		return
	}
	m.validatorRetries.Inc()
}

func (m *Metrics) IterationLimitHit() {
	if m == nil {
		return
	}
	m.iterationLimitHits.Inc()
}
