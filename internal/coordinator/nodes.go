package coordinator

import (
	"time"

	"golang.org/x/exp/slices"
)

// Heartbeat registers nodeID on first contact and refreshes its heartbeat
// otherwise. It never changes the node's current task.
func (c *Coordinator) Heartbeat(nodeID string) {
	if nodeID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.heartbeatLocked(nodeID, c.now())
}

func (c *Coordinator) heartbeatLocked(nodeID string, now time.Time) *Node {
	n, ok := c.nodes[nodeID]
	if !ok {
		n = &Node{ID: nodeID, LastHeartbeat: now}
		c.nodes[nodeID] = n
		c.log.WithField("node_id", nodeID).Info("node registered")
		return n
	}
	n.LastHeartbeat = now
	if n.markedDead {
		n.markedDead = false
		c.log.WithField("node_id", nodeID).Info("node recovered")
	}
	return n
}

// deriveStatusLocked computes a node's status at now:
//  1. dead when the heartbeat is older than NodeTimeout
//  2. working when it owns an ASSIGNED task
//  3. working when its last activity is within WorkingGrace
//  4. idle otherwise
//
// It has no side effects.
func (c *Coordinator) deriveStatusLocked(n *Node, now time.Time) NodeStatus {
	if now.Sub(n.LastHeartbeat) > c.cfg.NodeTimeout {
		return NodeDead
	}
	if c.ownedTaskLocked(n) != nil {
		return NodeWorking
	}
	if !n.LastActivity.IsZero() && now.Sub(n.LastActivity) <= c.cfg.WorkingGrace {
		return NodeWorking
	}
	return NodeIdle
}

func (c *Coordinator) nodeViewLocked(n *Node, now time.Time) NodeView {
	status := c.deriveStatusLocked(n, now)
	v := NodeView{
		ID:                  n.ID,
		Status:              status,
		Alive:               status != NodeDead,
		LastHeartbeat:       n.LastHeartbeat,
		HeartbeatAgeSeconds: now.Sub(n.LastHeartbeat).Seconds(),
		TasksAssigned:       n.TasksAssigned,
		TasksCompleted:      n.TasksCompleted,
		TasksFailed:         n.TasksFailed,
		CurrentTask:         n.CurrentTask,
	}
	if !n.LastActivity.IsZero() {
		at := n.LastActivity
		v.LastActivity = &at
	}
	return v
}

// Node returns the current view of a node.
func (c *Coordinator) Node(id string) (NodeView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[id]
	if !ok {
		return NodeView{}, false
	}
	return c.nodeViewLocked(n, c.now()), true
}

// Nodes returns views of all nodes ordered by id. The scan is O(nodes).
func (c *Coordinator) Nodes() []NodeView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nodeViewsLocked(c.now())
}

func (c *Coordinator) nodeViewsLocked(now time.Time) []NodeView {
	out := make([]NodeView, 0, len(c.nodes))
	for _, n := range c.nodes {
		out = append(out, c.nodeViewLocked(n, now))
	}
	slices.SortFunc(out, func(a, b NodeView) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

func (c *Coordinator) statusCountsLocked(now time.Time) map[NodeStatus]int {
	counts := map[NodeStatus]int{NodeWorking: 0, NodeIdle: 0, NodeDead: 0}
	for _, n := range c.nodes {
		counts[c.deriveStatusLocked(n, now)]++
	}
	return counts
}
