package coordinator

import (
	"errors"
	"time"
)

// ErrUnknownTask is reported when a task id does not exist.
var ErrUnknownTask = errors.New("unknown task")

// TaskStatus is a task lifecycle state.
type TaskStatus string

const (
	// TaskPending means the task is waiting in the queue.
	TaskPending TaskStatus = "PENDING"
	// TaskAssigned means a node has claimed the task.
	TaskAssigned TaskStatus = "ASSIGNED"
	// TaskCompleted is terminal: the owning node reported a result.
	TaskCompleted TaskStatus = "COMPLETED"
	// TaskFailed is terminal: the owning node reported an error.
	TaskFailed TaskStatus = "FAILED"
	// TaskTimeout is transient; a timed out task always re-enters TaskPending.
	TaskTimeout TaskStatus = "TIMEOUT"
)

// Terminal reports whether no further transition is possible.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// NodeStatus is the derived status of a worker node.
type NodeStatus string

const (
	NodeWorking NodeStatus = "working"
	NodeIdle    NodeStatus = "idle"
	NodeDead    NodeStatus = "dead"
)

// Task is a unit of work handed to a node.
type Task struct {
	ID            string         `json:"task_id"`
	Type          string         `json:"type"`
	NodeID        string         `json:"node_id,omitempty"`
	Status        TaskStatus     `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	AssignedAt    *time.Time     `json:"assigned_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	WindowMinutes int            `json:"window_minutes"`
	Data          map[string]any `json:"data,omitempty"`
	Result        map[string]any `json:"result,omitempty"`
	// Timeouts counts how often the task was reclaimed by a sweep.
	Timeouts int `json:"timeouts"`

	seq uint64
	// lastAssignedAt survives a timeout requeue so a late completion can
	// still report when the task was handed out.
	lastAssignedAt time.Time
}

// clone returns a copy safe to hand out of the lock. Payload maps are shared;
// they are treated as immutable once stored.
func (t *Task) clone() *Task {
	c := *t
	if t.AssignedAt != nil {
		at := *t.AssignedAt
		c.AssignedAt = &at
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

// Node is the registry entry for one worker.
type Node struct {
	ID             string
	LastHeartbeat  time.Time
	LastActivity   time.Time
	TasksAssigned  int
	TasksCompleted int
	TasksFailed    int
	CurrentTask    string

	// markedDead records the last sweep verdict so the dead transition is
	// logged once. Reported status is always derived, never read from here.
	markedDead bool
}

// NodeView is the externally visible state of a node at a point in time.
type NodeView struct {
	ID                  string     `json:"node_id"`
	Status              NodeStatus `json:"status"`
	Alive               bool       `json:"alive"`
	LastHeartbeat       time.Time  `json:"last_heartbeat"`
	HeartbeatAgeSeconds float64    `json:"heartbeat_age_seconds"`
	LastActivity        *time.Time `json:"last_activity,omitempty"`
	TasksAssigned       int        `json:"tasks_assigned"`
	TasksCompleted      int        `json:"tasks_completed"`
	TasksFailed         int        `json:"tasks_failed"`
	CurrentTask         string     `json:"current_task,omitempty"`
}

// Resolution is the outcome of a Complete or Fail call.
type Resolution string

const (
	// ResolutionAccepted means the result was applied to the task.
	ResolutionAccepted Resolution = "accepted"
	// ResolutionUnknownTask means no task has the given id.
	ResolutionUnknownTask Resolution = "unknown_task"
	// ResolutionStale means the task is no longer owned by the reporting
	// node, or already finished, and the result was dropped.
	ResolutionStale Resolution = "stale"
)

// SweepReport lists what a Sweep changed.
type SweepReport struct {
	DeadNodes []string `json:"dead_nodes"`
	Requeued  []string `json:"requeued"`
}
