package cluster

import (
	"time"

	"github.com/dreamware/runwaymesh/internal/coordinator"
)

// TaskComputeCongestion tasks carry a traffic batch to analyze.
const TaskComputeCongestion = "compute_congestion"

// Result statuses a node may submit.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// HeartbeatRequest registers or refreshes a node.
type HeartbeatRequest struct {
	NodeID string `json:"node_id"`
}

// HeartbeatResponse acknowledges a heartbeat with the coordinator clock.
type HeartbeatResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// TaskResponse wraps a claimed task; Task is nil when the queue is empty.
type TaskResponse struct {
	Task *coordinator.Task `json:"task"`
}

// ResultRequest reports the outcome of a task. Result carries the analysis
// for completed tasks and optional detail for failed ones.
type ResultRequest struct {
	TaskID string         `json:"task_id"`
	NodeID string         `json:"node_id"`
	Status string         `json:"status"`
	Result map[string]any `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// ResultResponse reports how the coordinator resolved a submitted result.
// A non-accepted resolution is still a 200; the worker just moves on.
type ResultResponse struct {
	Status coordinator.Resolution `json:"status"`
}

// Feedback is an operator decision posted from an edge device.
type Feedback struct {
	Decision  string    `json:"decision"`
	Notes     string    `json:"notes,omitempty"`
	Timestamp time.Time `json:"timestamp_utc"`
}

// ErrorResponse is the body of every non-2xx coordinator reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
