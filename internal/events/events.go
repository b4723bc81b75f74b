// Package events publishes task outcomes and edge feedback to downstream
// consumers. Publishing is best effort: failures are logged by the caller
// and never reach the worker that reported the result.
package events

import (
	"context"
	"time"
)

// Kind names the type of an Event.
type Kind string

const (
	// KindTaskResult is emitted for every accepted task completion or failure.
	KindTaskResult Kind = "task_result"
	// KindEdgeFeedback carries an operator decision posted from the edge.
	KindEdgeFeedback Kind = "edge_feedback"
)

// Event is the message published for every outcome.
type Event struct {
	Kind   Kind           `json:"kind"`
	TaskID string         `json:"task_id,omitempty"`
	NodeID string         `json:"node_id,omitempty"`
	Status string         `json:"status,omitempty"`
	Result map[string]any `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
	At     time.Time      `json:"at"`
}

// Key selects the partition key: the node id when present, else the task id,
// else the kind.
func (e Event) Key() string {
	switch {
	case e.NodeID != "":
		return e.NodeID
	case e.TaskID != "":
		return e.TaskID
	}
	return string(e.Kind)
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }
