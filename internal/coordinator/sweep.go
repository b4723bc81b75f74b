package coordinator

import (
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

// Sweep marks nodes whose heartbeat is older than NodeTimeout as dead and
// requeues ASSIGNED tasks older than TaskTimeout.
//
// The dead transition is logged once per edge; a later heartbeat revives the
// node. Timed out tasks pass through TIMEOUT, lose their node and assignment
// time, and are appended to the tail of the queue in creation order, with
// no priority over newer tasks and no retry cap.
func (c *Coordinator) Sweep(now time.Time) SweepReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	report := SweepReport{DeadNodes: []string{}, Requeued: []string{}}

	for _, n := range c.nodes {
		if now.Sub(n.LastHeartbeat) <= c.cfg.NodeTimeout || n.markedDead {
			continue
		}
		n.markedDead = true
		report.DeadNodes = append(report.DeadNodes, n.ID)
		c.log.WithFields(logrus.Fields{
			"node_id":        n.ID,
			"last_heartbeat": n.LastHeartbeat,
		}).Warn("node marked dead")
	}
	slices.Sort(report.DeadNodes)

	var expired []*Task
	for _, t := range c.tasks {
		if t.Status == TaskAssigned && t.AssignedAt != nil && now.Sub(*t.AssignedAt) > c.cfg.TaskTimeout {
			expired = append(expired, t)
		}
	}
	slices.SortFunc(expired, func(a, b *Task) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})

	for _, t := range expired {
		owner := t.NodeID
		t.Status = TaskTimeout
		c.rec.TaskTransition(TaskAssigned, TaskTimeout)
		c.log.WithFields(logrus.Fields{
			"task_id":     t.ID,
			"node_id":     owner,
			"assigned_at": *t.AssignedAt,
		}).Warn("task timed out; requeueing")

		if n := c.nodes[owner]; n != nil && n.CurrentTask == t.ID {
			n.CurrentTask = ""
		}
		t.NodeID = ""
		t.AssignedAt = nil
		t.Timeouts++
		t.Status = TaskPending
		c.pending = append(c.pending, t.ID)
		c.rec.TaskTransition(TaskTimeout, TaskPending)
		report.Requeued = append(report.Requeued, t.ID)
	}

	c.rec.QueueDepth(len(c.pending))
	c.rec.NodeStatuses(c.statusCountsLocked(now))
	return report
}
