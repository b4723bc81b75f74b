// Package coordinator implements the task-distribution and node-health core.
// See doc.go for complete package documentation.
package coordinator

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/runwaymesh/internal/analytics"
)

// Config holds the coordinator tunables.
type Config struct {
	// NodeTimeout is the heartbeat age after which a node is dead.
	NodeTimeout time.Duration
	// TaskTimeout is the assignment age after which a task is requeued.
	TaskTimeout time.Duration
	// WorkingGrace keeps a node "working" for a while after its last activity.
	WorkingGrace time.Duration
	// HistoryCapacity bounds the rolling metrics history.
	HistoryCapacity int
	// ForecastWindow is the number of history entries averaged by forecasts.
	ForecastWindow int
	// RecentTasks is the number of tasks listed in a status snapshot.
	RecentTasks int
	// RetainFinished bounds how many COMPLETED and FAILED tasks are kept
	// for lookups. Older ones are forgotten and only counted.
	RetainFinished int
}

// DefaultConfig returns the tunables used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		NodeTimeout:     15 * time.Second,
		TaskTimeout:     60 * time.Second,
		WorkingGrace:    10 * time.Second,
		HistoryCapacity: 100,
		ForecastWindow:  5,
		RecentTasks:     20,
		RetainFinished:  1000,
	}
}

// Recorder receives coordinator telemetry. Implementations must be cheap;
// they are called with the coordinator lock held.
type Recorder interface {
	TaskCreated()
	TaskTransition(from, to TaskStatus)
	QueueDepth(n int)
	NodeStatuses(counts map[NodeStatus]int)
	LateResult(decision LateDecision)
}

type nopRecorder struct{}

func (nopRecorder) TaskCreated() {}
func (nopRecorder) TaskTransition(_, _ TaskStatus) {}
func (nopRecorder) QueueDepth(int) {}
func (nopRecorder) NodeStatuses(map[NodeStatus]int) {}
func (nopRecorder) LateResult(LateDecision) {}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces time.Now as the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithLogger sets the log entry used for state transitions.
func WithLogger(log *logrus.Entry) Option {
	return func(c *Coordinator) { c.log = log }
}

// WithRecorder sets the telemetry sink.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.rec = r }
}

// WithLateResultPolicy overrides DropLateResults.
func WithLateResultPolicy(p LateResultPolicy) Option {
	return func(c *Coordinator) { c.late = p }
}

// Coordinator owns the task queue, the node registry and the result
// aggregator. All three are guarded by one mutex because claim, complete
// and sweep touch tasks and nodes together.
//
// Thread-safe: all exported methods may be called concurrently.
type Coordinator struct {
	cfg  Config
	now  func() time.Time
	log  *logrus.Entry
	rec  Recorder
	late LateResultPolicy

	mu       sync.Mutex
	seq      uint64
	tasks    map[string]*Task
	order    []string // retained task ids in creation order
	pending  []string // FIFO of PENDING task ids
	finished []string // retained terminal task ids in finish order
	pruned   map[TaskStatus]int
	nodes    map[string]*Node
	agg      *analytics.Aggregator
}

// New creates a coordinator. Zero-valued fields of cfg fall back to
// DefaultConfig.
func New(cfg Config, opts ...Option) *Coordinator {
	def := DefaultConfig()
	if cfg.NodeTimeout <= 0 {
		cfg.NodeTimeout = def.NodeTimeout
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = def.TaskTimeout
	}
	if cfg.WorkingGrace < 0 {
		cfg.WorkingGrace = 0
	}
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = def.HistoryCapacity
	}
	if cfg.ForecastWindow <= 0 {
		cfg.ForecastWindow = def.ForecastWindow
	}
	if cfg.RecentTasks <= 0 {
		cfg.RecentTasks = def.RecentTasks
	}
	if cfg.RetainFinished <= 0 {
		cfg.RetainFinished = def.RetainFinished
	}

	c := &Coordinator{
		cfg:   cfg,
		now:   time.Now,
		rec:   nopRecorder{},
		late:  DropLateResults,
		tasks:  make(map[string]*Task),
		nodes:  make(map[string]*Node),
		pruned: make(map[TaskStatus]int),
		agg:    analytics.NewAggregator(cfg.HistoryCapacity),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logrus.NewEntry(logrus.StandardLogger())
	}
	c.log = c.log.WithField("component", "coordinator")
	return c
}

// Now returns the current time according to the coordinator's clock.
func (c *Coordinator) Now() time.Time { return c.now() }

// Config returns the effective tunables.
func (c *Coordinator) Config() Config { return c.cfg }
