// Package telemetry exports coordinator activity as Prometheus metrics.
package telemetry

import (
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/dreamware/runwaymesh/internal/coordinator"
)

// DefaultNamespace prefixes every metric when none is given.
const DefaultNamespace = "runwaymesh"

// Exporter adapts coordinator.Recorder to Prometheus collectors.
type Exporter struct {
	tasksCreated    prom.Counter
	transitions     *prom.CounterVec
	queueDepth      prom.Gauge
	nodes           *prom.GaugeVec
	lateResults     *prom.CounterVec
	cycleDuration   prom.Histogram
	publishFailures prom.Counter
}

var _ coordinator.Recorder = (*Exporter)(nil)

// NewExporter creates and registers the collectors. Collectors already
// present in reg are reused, so two exporters on one registry share counts.
func NewExporter(namespace string, reg prom.Registerer) (*Exporter, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}

	created := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_created_total",
		Help:      "Total number of tasks created.",
	})
	transitions := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_transitions_total",
		Help:      "Task lifecycle transitions.",
	}, []string{"from", "to"})
	depth := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Number of pending tasks.",
	})
	nodes := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "nodes",
		Help:      "Nodes by derived status at the last sweep.",
	}, []string{"status"})
	late := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "late_results_total",
		Help:      "Results reported by nodes that no longer owned the task.",
	}, []string{"decision"})
	cycle := prom.NewHistogram(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "cycle_duration_seconds",
		Help:      "Duration of production cycles.",
		Buckets:   prom.DefBuckets,
	})
	publish := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "event_publish_failures_total",
		Help:      "Events that could not be published.",
	})

	var err error
	if created, err = registerCollector(reg, created); err != nil {
		return nil, err
	}
	if transitions, err = registerCollector(reg, transitions); err != nil {
		return nil, err
	}
	if depth, err = registerCollector(reg, depth); err != nil {
		return nil, err
	}
	if nodes, err = registerCollector(reg, nodes); err != nil {
		return nil, err
	}
	if late, err = registerCollector(reg, late); err != nil {
		return nil, err
	}
	if cycle, err = registerCollector(reg, cycle); err != nil {
		return nil, err
	}
	if publish, err = registerCollector(reg, publish); err != nil {
		return nil, err
	}

	return &Exporter{
		tasksCreated:    created,
		transitions:     transitions,
		queueDepth:      depth,
		nodes:           nodes,
		lateResults:     late,
		cycleDuration:   cycle,
		publishFailures: publish,
	}, nil
}

// TaskCreated implements coordinator.Recorder.
func (e *Exporter) TaskCreated() {
	if e == nil {
		return
	}
	e.tasksCreated.Inc()
}

// TaskTransition implements coordinator.Recorder.
func (e *Exporter) TaskTransition(from, to coordinator.TaskStatus) {
	if e == nil {
		return
	}
	e.transitions.WithLabelValues(normalizeLabel(string(from), "unknown"), normalizeLabel(string(to), "unknown")).Inc()
}

// QueueDepth implements coordinator.Recorder.
func (e *Exporter) QueueDepth(n int) {
	if e == nil {
		return
	}
	e.queueDepth.Set(float64(n))
}

// NodeStatuses implements coordinator.Recorder.
func (e *Exporter) NodeStatuses(counts map[coordinator.NodeStatus]int) {
	if e == nil {
		return
	}
	for _, s := range []coordinator.NodeStatus{coordinator.NodeWorking, coordinator.NodeIdle, coordinator.NodeDead} {
		e.nodes.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}

// LateResult implements coordinator.Recorder.
func (e *Exporter) LateResult(d coordinator.LateDecision) {
	if e == nil {
		return
	}
	e.lateResults.WithLabelValues(normalizeLabel(string(d), "unknown")).Inc()
}

// ObserveCycle records how long a production cycle took.
func (e *Exporter) ObserveCycle(d time.Duration) {
	if e == nil {
		return
	}
	e.cycleDuration.Observe(d.Seconds())
}

// PublishFailed counts an event that could not be delivered.
func (e *Exporter) PublishFailed() {
	if e == nil {
		return
	}
	e.publishFailures.Inc()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var already prom.AlreadyRegisteredError
	if errors.As(err, &already) {
		existing, ok := already.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}
	return collector, err
}
