// Package engine runs the coordinator's periodic production cycle: load the
// current traffic window, publish a summary, enqueue compute tasks for the
// workers and sweep for dead nodes and expired assignments.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/runwaymesh/internal/cluster"
	"github.com/dreamware/runwaymesh/internal/coordinator"
	"github.com/dreamware/runwaymesh/internal/storage"
	"github.com/dreamware/runwaymesh/internal/traffic"
)

// TaskType is the type tag of tasks produced by the cycle.
const TaskType = cluster.TaskComputeCongestion

// Queue is the part of the coordinator the engine drives.
type Queue interface {
	CreateTask(taskType string, windowMinutes int, data map[string]any) string
	Sweep(now time.Time) coordinator.SweepReport
	Now() time.Time
}

// CycleObserver is told how long each cycle took.
type CycleObserver interface {
	ObserveCycle(d time.Duration)
}

// Config holds the cycle settings.
type Config struct {
	Interval      time.Duration
	TasksPerCycle int
	WindowMinutes int
	Airport       string
	Runway        string
}

// Report describes one completed cycle.
type Report struct {
	At      time.Time
	Summary traffic.Summary
	Tasks   []string
	Sweep   coordinator.SweepReport
}

// Engine owns the production loop.
type Engine struct {
	cfg      Config
	queue    Queue
	source   traffic.Source
	store    storage.SummaryStore
	observer CycleObserver
	log      *logrus.Entry

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped atomic.Bool
	cycles  atomic.Int64
	done    chan struct{}
}

// New creates an engine. observer and log may be nil.
func New(cfg Config, queue Queue, source traffic.Source, store storage.SummaryStore, observer CycleObserver, log *logrus.Entry) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = 45 * time.Second
	}
	if cfg.WindowMinutes <= 0 {
		cfg.WindowMinutes = 60
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:      cfg,
		queue:    queue,
		source:   source,
		store:    store,
		observer: observer,
		log:      log.WithField("component", "engine"),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// RunOnce performs a single cycle. A failing data source degrades to an
// empty batch; a failing summary store is logged. Neither stops task
// production or the sweep.
func (e *Engine) RunOnce(ctx context.Context) Report {
	start := time.Now()
	now := e.queue.Now()
	window := time.Duration(e.cfg.WindowMinutes) * time.Minute

	records, err := e.source.Records(ctx, now, window)
	if err != nil {
		e.log.WithError(err).Warn("failed to load traffic data; using an empty batch")
		records = nil
	}

	summary := traffic.Summarize(records, e.cfg.WindowMinutes, now, e.cfg.Airport, e.cfg.Runway)
	if err := e.store.Set(ctx, summary); err != nil {
		e.log.WithError(err).Warn("failed to store summary")
	}

	batch := traffic.Batch{
		Movements:   records,
		WindowStart: now.Add(-window),
		WindowEnd:   now,
		AirportCode: e.cfg.Airport,
		Runway:      e.cfg.Runway,
	}
	report := Report{At: now, Summary: summary, Tasks: make([]string, 0, e.cfg.TasksPerCycle)}
	for i := 0; i < e.cfg.TasksPerCycle; i++ {
		report.Tasks = append(report.Tasks, e.queue.CreateTask(TaskType, e.cfg.WindowMinutes, batch.Payload()))
	}

	report.Sweep = e.queue.Sweep(now)
	e.cycles.Add(1)

	if e.observer != nil {
		e.observer.ObserveCycle(time.Since(start))
	}
	e.log.WithFields(logrus.Fields{
		"movements":  summary.TotalMovements,
		"congestion": summary.CongestionLevel,
		"tasks":      len(report.Tasks),
		"requeued":   len(report.Sweep.Requeued),
		"dead_nodes": len(report.Sweep.DeadNodes),
	}).Info("cycle complete")
	return report
}

// Start runs a cycle immediately and then once per interval in a new
// goroutine, until ctx is cancelled or Stop is called. A cycle in progress
// always runs to completion; cancellation only ends the wait between cycles.
// Start must be called at most once.
//
// Example:
//
//	e.Start(ctx)
//	defer e.Stop()
func (e *Engine) Start(ctx context.Context) {
	if ctx == nil {
		ctx = e.ctx
	}
	e.wg.Add(1)
	go e.run(ctx)
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()
	defer close(e.done)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	e.log.WithField("interval", e.cfg.Interval).Info("production cycle started")

	cycleCtx := context.WithoutCancel(ctx)
	for {
		if e.stopped.Load() {
			return
		}
		e.RunOnce(cycleCtx)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			e.log.Info("production cycle stopping due to context cancellation")
			return
		case <-e.ctx.Done():
			e.log.Info("production cycle stopping")
			return
		}
	}
}

// Done is closed once the loop started by Start has returned.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Stop ends the loop and waits for an in-flight cycle to finish.
func (e *Engine) Stop() {
	e.stopped.Store(true)
	e.cancel()
	e.wg.Wait()
}

// Cycles returns the number of completed cycles.
func (e *Engine) Cycles() int64 { return e.cycles.Load() }

// String describes the engine configuration.
func (e *Engine) String() string {
	return fmt.Sprintf("engine(%s %s, %d tasks every %s over %dm)",
		e.cfg.Airport, e.cfg.Runway, e.cfg.TasksPerCycle, e.cfg.Interval, e.cfg.WindowMinutes)
}
