package coordinator

import (
	"time"

	"github.com/dreamware/runwaymesh/internal/analytics"
)

// Snapshot is a consistent point-in-time view of the coordinator.
type Snapshot struct {
	GeneratedAt     time.Time              `json:"generated_at"`
	Nodes           NodesView              `json:"nodes"`
	Tasks           TasksView              `json:"tasks"`
	LatestResult    map[string]any         `json:"latest_result"`
	LatestResultAt  *time.Time             `json:"latest_result_at,omitempty"`
	LatestMetrics   analytics.Metrics      `json:"latest_metrics"`
	Explanation     *analytics.Explanation `json:"xai"`
	Forecast        *analytics.Forecast    `json:"forecast"`
	HistorySize     int                    `json:"history_size"`
	HistoryCapacity int                    `json:"history_capacity"`
}

// NodesView counts nodes by derived status.
type NodesView struct {
	Total   int        `json:"total"`
	Alive   int        `json:"alive"`
	Working int        `json:"working"`
	Idle    int        `json:"idle"`
	Dead    int        `json:"dead"`
	Details []NodeView `json:"details"`
}

// TasksView counts tasks by status and lists the most recent ones.
type TasksView struct {
	Total      int           `json:"total"`
	Pending    int           `json:"pending"`
	Assigned   int           `json:"assigned"`
	Completed  int           `json:"completed"`
	Failed     int           `json:"failed"`
	QueueDepth int           `json:"queue_depth"`
	Recent     []TaskSummary `json:"recent"`
}

// TaskSummary is the short form of a task listed in a snapshot.
type TaskSummary struct {
	ID          string     `json:"task_id"`
	Type        string     `json:"type"`
	Status      TaskStatus `json:"status"`
	NodeID      string     `json:"node_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Timeouts    int        `json:"timeouts"`
	Error       string     `json:"error,omitempty"`
}

// Status assembles a Snapshot under a single lock acquisition, so node
// statuses agree with the task map they are derived from.
func (c *Coordinator) Status() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	snap := Snapshot{GeneratedAt: now}

	details := c.nodeViewsLocked(now)
	snap.Nodes = NodesView{Total: len(details), Details: details}
	for _, v := range details {
		switch v.Status {
		case NodeWorking:
			snap.Nodes.Working++
		case NodeIdle:
			snap.Nodes.Idle++
		case NodeDead:
			snap.Nodes.Dead++
		}
		if v.Alive {
			snap.Nodes.Alive++
		}
	}

	tv := TasksView{
		Total:      len(c.tasks) + c.pruned[TaskCompleted] + c.pruned[TaskFailed],
		Completed:  c.pruned[TaskCompleted],
		Failed:     c.pruned[TaskFailed],
		QueueDepth: len(c.pending),
		Recent:     []TaskSummary{},
	}
	for _, t := range c.tasks {
		switch t.Status {
		case TaskPending:
			tv.Pending++
		case TaskAssigned:
			tv.Assigned++
		case TaskCompleted:
			tv.Completed++
		case TaskFailed:
			tv.Failed++
		}
	}
	for i := len(c.order) - 1; i >= 0 && len(tv.Recent) < c.cfg.RecentTasks; i-- {
		tv.Recent = append(tv.Recent, summarizeTask(c.tasks[c.order[i]]))
	}
	snap.Tasks = tv

	snap.LatestResult = c.agg.LatestResult()
	if at := c.agg.LatestAt(); !at.IsZero() {
		snap.LatestResultAt = &at
	}
	snap.LatestMetrics = c.agg.LatestMetrics()
	snap.Explanation = analytics.Explain(snap.LatestMetrics)
	snap.Forecast = analytics.ForecastFrom(c.agg.History(), c.cfg.ForecastWindow)
	snap.HistorySize = c.agg.History().Len()
	snap.HistoryCapacity = c.agg.History().Cap()
	return snap
}

func summarizeTask(t *Task) TaskSummary {
	s := TaskSummary{
		ID:        t.ID,
		Type:      t.Type,
		Status:    t.Status,
		NodeID:    t.NodeID,
		CreatedAt: t.CreatedAt,
		Timeouts:  t.Timeouts,
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		s.CompletedAt = &at
	}
	if t.Status == TaskFailed {
		if msg, ok := t.Result["error"].(string); ok {
			s.Error = msg
		}
	}
	return s
}
