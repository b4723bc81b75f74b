// Package coordinator implements the control plane of a runwaymesh cluster:
// the task queue with its lifecycle state machine, the registry of worker
// nodes, the timeout sweep that reclaims abandoned work, and the aggregation
// of completed results into metrics, explanations and forecasts.
//
// # Overview
//
// Worker nodes pull work. A node announces itself with heartbeats and asks
// for work by claiming; the coordinator hands out the oldest pending task and
// the node later reports a result or a failure. The coordinator never pushes
// anything to a node.
//
//	┌──────────────────────────────────────────┐
//	│               COORDINATOR                │
//	├──────────────────────────────────────────┤
//	│                                          │
//	│  ┌────────────────┐   ┌───────────────┐  │
//	│  │  Task queue    │   │ Node registry │  │
//	│  │  - FIFO ids    │◄─►│ - heartbeats  │  │
//	│  │  - lifecycle   │   │ - counters    │  │
//	│  └───────┬────────┘   └───────────────┘  │
//	│          │ completed results             │
//	│  ┌───────▼────────────────────────────┐  │
//	│  │  Aggregator                        │  │
//	│  │  - latest result and metrics       │  │
//	│  │  - bounded history ─► forecast     │  │
//	│  │  - explanation of latest metrics   │  │
//	│  └────────────────────────────────────┘  │
//	└──────────────────────────────────────────┘
//
// # Task Lifecycle
//
//	PENDING ──claim──► ASSIGNED ──complete──► COMPLETED
//	   ▲                  │  └─────fail─────► FAILED
//	   │                  │
//	   └──── TIMEOUT ◄────┘ sweep (assignment older than TaskTimeout)
//
// COMPLETED and FAILED are terminal. TIMEOUT only exists during a sweep: the
// task is logged, detached from its node and appended to the tail of the
// queue, where it competes with newer tasks on a FIFO basis. There is no retry
// cap; Task.Timeouts counts how often a task has been reclaimed.
//
// # Node Status
//
// Status is derived on every read and never stored:
//
//	dead     heartbeat older than NodeTimeout (overrides everything else)
//	working  owns an ASSIGNED task, or had activity within WorkingGrace
//	idle     otherwise
//
// Activity means an assignment, a completion or a failure. Heartbeats alone
// keep a node alive but never make it working.
//
// # Late Results
//
// A node may report a task it no longer owns, typically after a timeout
// requeued it. Results for unknown tasks and for tasks already in a terminal
// state are logged and ignored. For tasks still open the LateResultPolicy
// decides; the default drops the result and leaves the current owner alone.
//
// # Concurrency
//
// Tasks, nodes and the aggregator share one mutex because claim, complete
// and sweep update them together. Status takes the lock once for the whole
// snapshot. Status derivation and Sweep scan every node and every retained
// task, which is fine for tens of workers. Retained tasks are bounded:
// pending and assigned tasks plus at most RetainFinished terminal ones.
// Older terminal tasks are dropped and survive only in the status counts.
package coordinator
