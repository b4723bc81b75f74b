package coordinator

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/dreamware/runwaymesh/internal/analytics"
)

// CreateTask appends a new PENDING task to the tail of the queue and returns
// its id. Ids are sequential and never reused.
func (c *Coordinator) CreateTask(taskType string, windowMinutes int, data map[string]any) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	id := fmt.Sprintf("task-%06d", c.seq)
	c.tasks[id] = &Task{
		ID:            id,
		Type:          taskType,
		Status:        TaskPending,
		CreatedAt:     c.now(),
		WindowMinutes: windowMinutes,
		Data:          data,
		seq:           c.seq,
	}
	c.order = append(c.order, id)
	c.pending = append(c.pending, id)

	c.rec.TaskCreated()
	c.rec.QueueDepth(len(c.pending))
	c.log.WithFields(logrus.Fields{"task_id": id, "type": taskType}).Debug("task created")
	return id
}

// Claim hands the oldest pending task to nodeID and counts as a heartbeat
// from that node. It returns nil when the queue is empty. A node that still
// owns an ASSIGNED task gets that task again instead of a new one.
func (c *Coordinator) Claim(nodeID string) *Task {
	if nodeID == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := c.heartbeatLocked(nodeID, now)

	if t := c.ownedTaskLocked(n); t != nil {
		c.log.WithFields(logrus.Fields{"node_id": nodeID, "task_id": t.ID}).Debug("redelivering assigned task")
		return t.clone()
	}

	for len(c.pending) > 0 {
		id := c.pending[0]
		c.pending = c.pending[1:]

		t := c.tasks[id]
		if t == nil || t.Status != TaskPending {
			continue
		}

		assignedAt := now
		t.Status = TaskAssigned
		t.NodeID = nodeID
		t.AssignedAt = &assignedAt
		t.lastAssignedAt = now

		n.CurrentTask = id
		n.TasksAssigned++
		n.LastActivity = now

		c.rec.TaskTransition(TaskPending, TaskAssigned)
		c.rec.QueueDepth(len(c.pending))
		c.log.WithFields(logrus.Fields{"node_id": nodeID, "task_id": id}).Info("task assigned")
		return t.clone()
	}
	return nil
}

// Complete records a result for taskID reported by nodeID. Unknown ids and
// results from nodes that no longer own the task never fail; they are
// logged and reported through the returned Resolution.
func (c *Coordinator) Complete(taskID, nodeID string, result map[string]any) Resolution {
	return c.resolve(taskID, nodeID, TaskCompleted, result, "")
}

// Fail records that nodeID could not process taskID. The reason is stored as
// the "error" field of the task result, merged over detail.
func (c *Coordinator) Fail(taskID, nodeID, reason string, detail map[string]any) Resolution {
	return c.resolve(taskID, nodeID, TaskFailed, detail, reason)
}

func (c *Coordinator) resolve(taskID, nodeID string, outcome TaskStatus, result map[string]any, reason string) Resolution {
	c.mu.Lock()
	defer c.mu.Unlock()

	log := c.log.WithFields(logrus.Fields{"task_id": taskID, "node_id": nodeID, "outcome": outcome})

	t, ok := c.tasks[taskID]
	if !ok {
		log.Warn("result for unknown task ignored")
		return ResolutionUnknownTask
	}

	if t.Status != TaskAssigned || t.NodeID != nodeID {
		if t.Status.Terminal() {
			c.rec.LateResult(DropLate)
			log.WithField("status", t.Status).Warn("result for finished task dropped")
			return ResolutionStale
		}
		decision := c.late.Decide(LateResult{Task: *t.clone(), NodeID: nodeID, Outcome: outcome})
		c.rec.LateResult(decision)
		if decision != AcceptLate {
			log.WithFields(logrus.Fields{"status": t.Status, "owner": t.NodeID}).Warn("late result dropped")
			return ResolutionStale
		}
		log.WithFields(logrus.Fields{"status": t.Status, "owner": t.NodeID}).Info("late result accepted")
	}

	c.finishLocked(t, nodeID, outcome, result, reason, c.now())
	return ResolutionAccepted
}

func (c *Coordinator) finishLocked(t *Task, nodeID string, outcome TaskStatus, result map[string]any, reason string, now time.Time) {
	from := t.Status
	if from == TaskPending {
		c.pending = slices.DeleteFunc(c.pending, func(id string) bool { return id == t.ID })
	}
	if owner := c.nodes[t.NodeID]; owner != nil && owner.CurrentTask == t.ID {
		owner.CurrentTask = ""
	}

	completedAt := now
	t.Status = outcome
	t.NodeID = nodeID
	t.CompletedAt = &completedAt
	if t.AssignedAt == nil && !t.lastAssignedAt.IsZero() {
		// Accepted late result for a requeued task.
		assignedAt := t.lastAssignedAt
		t.AssignedAt = &assignedAt
	}

	n := c.nodes[nodeID]
	if n != nil {
		if n.CurrentTask == t.ID {
			n.CurrentTask = ""
		}
		n.LastActivity = now
	}

	switch outcome {
	case TaskCompleted:
		t.Result = result
		if n != nil {
			n.TasksCompleted++
		}
		if !c.agg.RecordFrom(nodeID, result, now) {
			c.log.WithField("task_id", t.ID).Warn("result has no metrics; kept as latest result only")
		}
	case TaskFailed:
		t.Result = withError(result, reason)
		if n != nil {
			n.TasksFailed++
		}
	}

	c.rec.TaskTransition(from, outcome)
	c.rec.QueueDepth(len(c.pending))
	c.log.WithFields(logrus.Fields{"task_id": t.ID, "node_id": nodeID, "status": outcome}).Info("task finished")

	c.finished = append(c.finished, t.ID)
	c.pruneLocked()
}

// pruneLocked forgets the oldest terminal tasks beyond RetainFinished. A
// result for a forgotten task resolves as unknown.
func (c *Coordinator) pruneLocked() {
	excess := len(c.finished) - c.cfg.RetainFinished
	if excess <= 0 {
		return
	}
	drop := make(map[string]bool, excess)
	for _, id := range c.finished[:excess] {
		if t := c.tasks[id]; t != nil {
			c.pruned[t.Status]++
			delete(c.tasks, id)
		}
		drop[id] = true
	}
	c.finished = slices.Delete(c.finished, 0, excess)
	c.order = slices.DeleteFunc(c.order, func(id string) bool { return drop[id] })
}

// Combined averages the latest metrics reported by each node.
func (c *Coordinator) Combined() (analytics.Combined, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agg.Combined()
}

func withError(detail map[string]any, reason string) map[string]any {
	out := make(map[string]any, len(detail)+1)
	for k, v := range detail {
		out[k] = v
	}
	out["error"] = reason
	return out
}

// Task returns a copy of the task with the given id.
func (c *Coordinator) Task(id string) (*Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tasks[id]
	if !ok {
		return nil, false
	}
	return t.clone(), true
}

// QueueDepth returns the number of pending tasks.
func (c *Coordinator) QueueDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// ownedTaskLocked returns the ASSIGNED task n currently holds, if any.
func (c *Coordinator) ownedTaskLocked(n *Node) *Task {
	if n == nil || n.CurrentTask == "" {
		return nil
	}
	t := c.tasks[n.CurrentTask]
	if t == nil || t.Status != TaskAssigned || t.NodeID != n.ID {
		return nil
	}
	return t
}
