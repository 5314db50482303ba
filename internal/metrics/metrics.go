// Package metrics exposes Prometheus instrumentation for the ledger engine.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ledgerbook"

// Commit outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeRejected  = "rejected"
	OutcomeConflict  = "conflict"
	OutcomeIntegrity = "integrity"
)

// Budget resolution results.
const (
	BudgetCached  = "cached"
	BudgetFound   = "found"
	BudgetCreated = "created"
	BudgetRaced   = "raced"
)

// Event publish and export outcomes.
const (
	EventPublished = "published"
	EventFailed    = "failed"
	EventRejected  = "rejected"
	EventSkipped   = "skipped"
)

type Metrics struct {
	commits        *prometheus.CounterVec
	retries        *prometheus.CounterVec
	commitDuration *prometheus.HistogramVec
	budgets        *prometheus.CounterVec
	events         *prometheus.CounterVec
	exports        *prometheus.CounterVec
	breakerState   *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		commits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commits_total",
				Help:      "Units of work on ledger transactions by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commit_retries_total",
				Help:      "Units of work retried after a concurrent modification",
			},
			[]string{"op"},
		),
		commitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "commit_duration_seconds",
				Help:      "Time spent committing a unit of work, retries included",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"op"},
		),
		budgets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "budget_resolutions_total",
				Help:      "Budget lookups by how they were satisfied",
			},
			[]string{"result"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_events_total",
				Help:      "Ledger events by publish outcome",
			},
			[]string{"outcome"},
		),
		exports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_exports_total",
				Help:      "Ledger snapshots exported by outcome",
			},
			[]string{"outcome"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.commits, m.retries, m.commitDuration, m.budgets, m.events, m.exports, m.breakerState,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) RecordCommit(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues(op, outcome).Inc()
	m.commitDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) RecordRetry(op string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(op).Inc()
}

func (m *Metrics) RecordBudget(result string) {
	if m == nil {
		return
	}
	m.budgets.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordEvent(outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordExport(outcome string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(outcome).Inc()
}

// RecordBreakerState stores 0 for closed, 1 for half-open and 2 for open.
func (m *Metrics) RecordBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(float64(state))
}

// BreakerState returns the gauge for the named breaker.
func (m *Metrics) BreakerState(name string) prometheus.Gauge {
	return m.breakerState.WithLabelValues(name)
}

// Exports returns the export counter for outcome.
func (m *Metrics) Exports(outcome string) prometheus.Counter {
	return m.exports.WithLabelValues(outcome)
}
