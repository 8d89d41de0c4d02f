// Package metrics defines the Prometheus instrumentation for one agurim
// run: how many flow records were ingested, how many aggregates survived
// threshold discovery, and how long each pass took.
package metrics

import (
	"context"
	"fmt"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace is the default Prometheus namespace for agurim's metrics.
const Namespace = "agurim"

const subsystemEngine = "engine"

// Engine is the Prometheus-based instrumentation for one Engine's run:
// flows ingested, aggregates accepted, discards, and pass timing.
type Engine struct {
	flowsIngested    prometheus.Counter
	aggregatesKept   prometheus.Gauge
	flowsDiscarded   prometheus.Counter
	passDuration     prometheus.Histogram
	plotBucketsTotal prometheus.Gauge
}

// NewEngine registers the engine metrics in reg and returns a properly
// initialized *Engine, grounded on the teacher's metrics-constructor idiom
// (one field per gauge/counter/histogram, registered via a
// [container.KeyValues] collector list with registration errors joined).
func NewEngine(namespace string, reg prometheus.Registerer) (m *Engine, err error) {
	const (
		flowsIngested    = "flows_ingested_total"
		aggregatesKept   = "aggregates_kept"
		flowsDiscarded   = "flows_discarded_total"
		passDuration     = "pass_duration_seconds"
		plotBucketsTotal = "plot_buckets_total"
	)

	m = &Engine{
		flowsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      flowsIngested,
			Namespace: namespace,
			Subsystem: subsystemEngine,
			Help:      "Total number of flow records inserted into the engine.",
		}),
		aggregatesKept: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      aggregatesKept,
			Namespace: namespace,
			Subsystem: subsystemEngine,
			Help:      "Number of aggregates the most recent discovery pass accepted.",
		}),
		flowsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      flowsDiscarded,
			Namespace: namespace,
			Subsystem: subsystemEngine,
			Help:      "Total number of flow entries skipped for preceding the analysis window start; malformed or filtered-out lines are not counted.",
		}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:      passDuration,
			Namespace: namespace,
			Subsystem: subsystemEngine,
			Help:      "Time elapsed running one discovery or plotting pass.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		plotBucketsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      plotBucketsTotal,
			Namespace: namespace,
			Subsystem: subsystemEngine,
			Help:      "Number of pass-2 plotting buckets produced by the most recent run.",
		}),
	}

	var errs []error
	collectors := container.KeyValues[string, prometheus.Collector]{{
		Key:   flowsIngested,
		Value: m.flowsIngested,
	}, {
		Key:   aggregatesKept,
		Value: m.aggregatesKept,
	}, {
		Key:   flowsDiscarded,
		Value: m.flowsDiscarded,
	}, {
		Key:   passDuration,
		Value: m.passDuration,
	}, {
		Key:   plotBucketsTotal,
		Value: m.plotBucketsTotal,
	}}

	for _, c := range collectors {
		err = reg.Register(c.Value)
		if err != nil {
			errs = append(errs, fmt.Errorf("registering metrics %q: %w", c.Key, err))
		}
	}

	if err = errors.Join(errs...); err != nil {
		return nil, err
	}

	return m, nil
}

// FlowsIngested records n more flow records having been inserted into the
// engine.
func (m *Engine) FlowsIngested(_ context.Context, n int) {
	m.flowsIngested.Add(float64(n))
}

// FlowsDiscarded records n more flow entries having been skipped.
func (m *Engine) FlowsDiscarded(_ context.Context, n int) {
	m.flowsDiscarded.Add(float64(n))
}

// AggregatesKeptSet records the size of the most recently accepted
// aggregate list.
func (m *Engine) AggregatesKeptSet(_ context.Context, n int) {
	m.aggregatesKept.Set(float64(n))
}

// PlotBucketsSet records the number of pass-2 buckets the most recent
// plotting run produced.
func (m *Engine) PlotBucketsSet(_ context.Context, n int) {
	m.plotBucketsTotal.Set(float64(n))
}

// HandlePassDuration records how long one discovery or plotting pass took,
// in seconds.
func (m *Engine) HandlePassDuration(_ context.Context, seconds float64) {
	m.passDuration.Observe(seconds)
}
