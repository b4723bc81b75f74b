package coordinator

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/runwaymesh/internal/analytics"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// countingRecorder keeps the last values reported to it.
type countingRecorder struct {
	created     int
	transitions map[[2]TaskStatus]int
	depth       int
	statuses    map[NodeStatus]int
	late        map[LateDecision]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		transitions: map[[2]TaskStatus]int{},
		late:        map[LateDecision]int{},
	}
}

func (r *countingRecorder) TaskCreated() { r.created++ }
func (r *countingRecorder) TaskTransition(from, to TaskStatus) { r.transitions[[2]TaskStatus{from, to}]++ }
func (r *countingRecorder) QueueDepth(n int) { r.depth = n }
func (r *countingRecorder) NodeStatuses(counts map[NodeStatus]int) { r.statuses = counts }
func (r *countingRecorder) LateResult(d LateDecision) { r.late[d]++ }

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestCoordinator(t *testing.T, opts ...Option) (*Coordinator, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	opts = append([]Option{WithClock(clock.Now), WithLogger(quietLogger())}, opts...)
	return New(DefaultConfig(), opts...), clock
}

func metricsResult(density, occupancy float64) map[string]any {
	return map[string]any{
		analytics.MetricsKey: map[string]any{
			analytics.FieldDensity:      density,
			analytics.FieldOccupancyPct: occupancy,
		},
	}
}

// TestNewDefaults verifies that zero-valued config fields fall back to defaults.
func TestNewDefaults(t *testing.T) {
	c := New(Config{}, WithLogger(quietLogger()))

	cfg := c.Config()
	assert.Equal(t, DefaultConfig().NodeTimeout, cfg.NodeTimeout)
	assert.Equal(t, DefaultConfig().TaskTimeout, cfg.TaskTimeout)
	assert.Equal(t, time.Duration(0), cfg.WorkingGrace)
	assert.Equal(t, 100, cfg.HistoryCapacity)
	assert.Equal(t, 5, cfg.ForecastWindow)
	assert.Equal(t, 20, cfg.RecentTasks)
}

// TestClaimFIFO verifies that claims return tasks in creation order.
func TestClaimFIFO(t *testing.T) {
	c, _ := newTestCoordinator(t)

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, c.CreateTask("compute_congestion", 60, nil))
	}
	assert.Equal(t, "task-000001", ids[0])
	assert.Equal(t, 5, c.QueueDepth())

	for i, want := range ids {
		node := []string{"a", "b", "c", "d", "e"}[i]
		got := c.Claim(node)
		require.NotNil(t, got)
		assert.Equal(t, want, got.ID)
		assert.Equal(t, TaskAssigned, got.Status)
		assert.Equal(t, node, got.NodeID)
		assert.NotNil(t, got.AssignedAt)
	}

	assert.Nil(t, c.Claim("f"), "queue should be empty")
	assert.Equal(t, 0, c.QueueDepth())
}

// TestClaimRegistersNode verifies that a claim counts as a heartbeat.
func TestClaimRegistersNode(t *testing.T) {
	c, _ := newTestCoordinator(t)

	assert.Nil(t, c.Claim("phone-1"))

	v, ok := c.Node("phone-1")
	require.True(t, ok)
	assert.Equal(t, NodeIdle, v.Status)
	assert.True(t, v.Alive)
	assert.Nil(t, v.LastActivity, "an empty claim is not activity")

	assert.Nil(t, c.Claim(""), "empty node id never registers")
	assert.Len(t, c.Nodes(), 1)
}

// TestClaimRedeliversOwnedTask verifies that a node holding an ASSIGNED task
// gets the same task back instead of a second one.
func TestClaimRedeliversOwnedTask(t *testing.T) {
	c, _ := newTestCoordinator(t)
	t1 := c.CreateTask("compute_congestion", 60, nil)
	c.CreateTask("compute_congestion", 60, nil)

	first := c.Claim("a")
	require.NotNil(t, first)
	again := c.Claim("a")
	require.NotNil(t, again)

	assert.Equal(t, t1, again.ID)
	assert.Equal(t, 1, c.QueueDepth())

	v, _ := c.Node("a")
	assert.Equal(t, 1, v.TasksAssigned)
}

// TestFailScenario covers a failure followed by a fresh claim.
func TestFailScenario(t *testing.T) {
	c, _ := newTestCoordinator(t)
	t1 := c.CreateTask("compute_congestion", 60, nil)
	t2 := c.CreateTask("compute_congestion", 60, nil)
	c.CreateTask("compute_congestion", 60, nil)

	got := c.Claim("A")
	require.NotNil(t, got)
	require.Equal(t, t1, got.ID)

	res := c.Fail(t1, "A", "x", map[string]any{"attempt": 1})
	assert.Equal(t, ResolutionAccepted, res)

	task, ok := c.Task(t1)
	require.True(t, ok)
	assert.Equal(t, TaskFailed, task.Status)
	assert.NotNil(t, task.CompletedAt)
	assert.Equal(t, "x", task.Result["error"])
	assert.Equal(t, 1, task.Result["attempt"])

	node, _ := c.Node("A")
	assert.Equal(t, 1, node.TasksFailed)
	assert.Empty(t, node.CurrentTask)

	next := c.Claim("A")
	require.NotNil(t, next)
	assert.Equal(t, t2, next.ID, "FAILED is terminal and never handed out again")
}

// TestCompleteFeedsAggregator verifies counters, node state and metrics after
// a completion.
func TestCompleteFeedsAggregator(t *testing.T) {
	c, clock := newTestCoordinator(t)
	id := c.CreateTask("compute_congestion", 60, nil)
	require.NotNil(t, c.Claim("A"))

	clock.Advance(2 * time.Second)
	res := c.Complete(id, "A", metricsResult(22, 45))
	assert.Equal(t, ResolutionAccepted, res)

	task, _ := c.Task(id)
	assert.Equal(t, TaskCompleted, task.Status)
	assert.Equal(t, clock.Now(), *task.CompletedAt)

	node, _ := c.Node("A")
	assert.Equal(t, 1, node.TasksCompleted)
	assert.Empty(t, node.CurrentTask)

	snap := c.Status()
	assert.Equal(t, analytics.Metrics{analytics.FieldDensity: 22, analytics.FieldOccupancyPct: 45}, snap.LatestMetrics)
	require.NotNil(t, snap.Explanation)
	assert.Equal(t, analytics.LevelMedium, snap.Explanation.Level)
	require.NotNil(t, snap.Forecast)
	assert.Equal(t, 1, snap.Forecast.Samples)
	assert.Equal(t, 1, snap.HistorySize)
}

// TestCompleteWithoutMetrics verifies that a result with no numeric fields is
// still the latest result but stays out of history.
func TestCompleteWithoutMetrics(t *testing.T) {
	c, _ := newTestCoordinator(t)
	id := c.CreateTask("compute_congestion", 60, nil)
	c.Claim("A")

	raw := map[string]any{"note": "nothing to report"}
	assert.Equal(t, ResolutionAccepted, c.Complete(id, "A", raw))

	snap := c.Status()
	assert.Equal(t, raw, snap.LatestResult)
	assert.Empty(t, snap.LatestMetrics)
	assert.Nil(t, snap.Explanation)
	assert.Nil(t, snap.Forecast)
	assert.Equal(t, 0, snap.HistorySize)
}

// TestCompleteUnknownTask verifies that unknown ids are ignored.
func TestCompleteUnknownTask(t *testing.T) {
	c, _ := newTestCoordinator(t)
	c.Heartbeat("A")

	assert.Equal(t, ResolutionUnknownTask, c.Complete("task-999999", "A", metricsResult(1, 1)))
	assert.Equal(t, ResolutionUnknownTask, c.Fail("nope", "A", "boom", nil))

	node, _ := c.Node("A")
	assert.Zero(t, node.TasksCompleted)
	assert.Zero(t, node.TasksFailed)
	assert.Nil(t, c.Status().LatestResult)
}

// TestTimeoutRequeue covers a timeout followed by a claim from another node.
func TestTimeoutRequeue(t *testing.T) {
	rec := newCountingRecorder()
	c, clock := newTestCoordinator(t, WithRecorder(rec))
	c.CreateTask("compute_congestion", 60, nil)
	c.CreateTask("compute_congestion", 60, nil)
	t3 := c.CreateTask("compute_congestion", 60, nil)

	c.Claim("A")
	c.Claim("A2")
	got := c.Claim("B")
	require.NotNil(t, got)
	require.Equal(t, t3, got.ID)

	clock.Advance(c.Config().TaskTimeout + time.Second)
	// keep C alive through the sweep
	c.Heartbeat("C")
	report := c.Sweep(clock.Now())
	assert.Contains(t, report.Requeued, t3)

	task, _ := c.Task(t3)
	assert.Equal(t, TaskPending, task.Status)
	assert.Empty(t, task.NodeID)
	assert.Nil(t, task.AssignedAt)
	assert.Equal(t, 1, task.Timeouts)

	b, _ := c.Node("B")
	assert.Empty(t, b.CurrentTask)

	// requeued tasks go to the tail in creation order
	first := c.Claim("C")
	require.NotNil(t, first)
	assert.Equal(t, "task-000001", first.ID)
	c.Complete(first.ID, "C", metricsResult(5, 5))
	c.Claim("D")
	nextForC := c.Claim("C")
	require.NotNil(t, nextForC)
	assert.Equal(t, t3, nextForC.ID)
	assert.Equal(t, "C", nextForC.NodeID)

	assert.Equal(t, 3, rec.transitions[[2]TaskStatus{TaskAssigned, TaskTimeout}])
	assert.Equal(t, 3, rec.transitions[[2]TaskStatus{TaskTimeout, TaskPending}])
	assert.Equal(t, 3, rec.created)
}

// TestSweepRespectsTaskTimeout verifies that fresh assignments are left alone.
func TestSweepRespectsTaskTimeout(t *testing.T) {
	c, clock := newTestCoordinator(t)
	id := c.CreateTask("compute_congestion", 60, nil)
	c.Claim("A")

	clock.Advance(c.Config().TaskTimeout)
	report := c.Sweep(clock.Now())
	assert.Empty(t, report.Requeued, "exactly TaskTimeout is not expired")

	task, _ := c.Task(id)
	assert.Equal(t, TaskAssigned, task.Status)
}

// TestDeadOverridesWorking verifies that heartbeat age alone decides death.
func TestDeadOverridesWorking(t *testing.T) {
	c, clock := newTestCoordinator(t)
	c.CreateTask("compute_congestion", 60, nil)
	require.NotNil(t, c.Claim("A"))

	v, _ := c.Node("A")
	assert.Equal(t, NodeWorking, v.Status)

	clock.Advance(c.Config().NodeTimeout)
	v, _ = c.Node("A")
	assert.Equal(t, NodeWorking, v.Status, "exactly NodeTimeout is still alive")

	clock.Advance(time.Second)
	v, _ = c.Node("A")
	assert.Equal(t, NodeDead, v.Status)
	assert.False(t, v.Alive)
	assert.NotEmpty(t, v.CurrentTask, "status reads have no side effects")
}

// TestWorkingGrace verifies the grace window after activity.
func TestWorkingGrace(t *testing.T) {
	c, clock := newTestCoordinator(t)
	id := c.CreateTask("compute_congestion", 60, nil)
	c.Claim("A")
	c.Complete(id, "A", metricsResult(1, 1))

	v, _ := c.Node("A")
	assert.Equal(t, NodeWorking, v.Status)

	clock.Advance(c.Config().WorkingGrace)
	c.Heartbeat("A")
	v, _ = c.Node("A")
	assert.Equal(t, NodeWorking, v.Status)

	clock.Advance(time.Second)
	c.Heartbeat("A")
	v, _ = c.Node("A")
	assert.Equal(t, NodeIdle, v.Status, "heartbeats are not activity")
}

// TestSweepMarksDeadOnce verifies edge-only dead reporting and recovery.
func TestSweepMarksDeadOnce(t *testing.T) {
	rec := newCountingRecorder()
	c, clock := newTestCoordinator(t, WithRecorder(rec))
	c.Heartbeat("A")
	c.Heartbeat("B")

	clock.Advance(c.Config().NodeTimeout + time.Second)
	c.Heartbeat("B")

	report := c.Sweep(clock.Now())
	assert.Equal(t, []string{"A"}, report.DeadNodes)
	assert.Equal(t, 1, rec.statuses[NodeDead])
	assert.Equal(t, 1, rec.statuses[NodeIdle])

	report = c.Sweep(clock.Now())
	assert.Empty(t, report.DeadNodes, "dead transition reported once")

	c.Heartbeat("A")
	v, _ := c.Node("A")
	assert.Equal(t, NodeIdle, v.Status)

	clock.Advance(c.Config().NodeTimeout + time.Second)
	report = c.Sweep(clock.Now())
	assert.Equal(t, []string{"A", "B"}, report.DeadNodes)
}

// TestCurrentTaskCleared verifies that current_task empties on every exit
// from ASSIGNED.
func TestCurrentTaskCleared(t *testing.T) {
	tests := []struct {
		name  string
		leave func(c *Coordinator, clock *fakeClock, id string)
	}{
		{"complete", func(c *Coordinator, _ *fakeClock, id string) { c.Complete(id, "A", metricsResult(1, 1)) }},
		{"fail", func(c *Coordinator, _ *fakeClock, id string) { c.Fail(id, "A", "boom", nil) }},
		{"timeout", func(c *Coordinator, clock *fakeClock, _ string) {
			clock.Advance(c.Config().TaskTimeout + time.Second)
			c.Sweep(clock.Now())
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, clock := newTestCoordinator(t)
			id := c.CreateTask("compute_congestion", 60, nil)
			c.Claim("A")

			v, _ := c.Node("A")
			require.Equal(t, id, v.CurrentTask)

			tt.leave(c, clock, id)

			v, _ = c.Node("A")
			assert.Empty(t, v.CurrentTask)
		})
	}
}

// TestLateResultDropped verifies the default policy after a reassignment.
func TestLateResultDropped(t *testing.T) {
	rec := newCountingRecorder()
	c, clock := newTestCoordinator(t, WithRecorder(rec))
	id := c.CreateTask("compute_congestion", 60, nil)
	c.Claim("A")

	clock.Advance(c.Config().TaskTimeout + time.Second)
	c.Sweep(clock.Now())
	require.NotNil(t, c.Claim("B"))

	assert.Equal(t, ResolutionStale, c.Complete(id, "A", metricsResult(50, 90)))

	task, _ := c.Task(id)
	assert.Equal(t, TaskAssigned, task.Status)
	assert.Equal(t, "B", task.NodeID)
	b, _ := c.Node("B")
	assert.Equal(t, id, b.CurrentTask)
	a, _ := c.Node("A")
	assert.Zero(t, a.TasksCompleted)
	assert.Equal(t, 1, rec.late[DropLate])

	// the real owner still completes normally
	assert.Equal(t, ResolutionAccepted, c.Complete(id, "B", metricsResult(10, 10)))
	// and anything after a terminal state is dropped without consulting the policy
	assert.Equal(t, ResolutionStale, c.Complete(id, "A", metricsResult(50, 90)))
	assert.Equal(t, 2, rec.late[DropLate])
}

// TestLateResultAccepted verifies that an accepting policy detaches the task
// from its current owner.
func TestLateResultAccepted(t *testing.T) {
	var seen []LateResult
	policy := LateResultFunc(func(r LateResult) LateDecision {
		seen = append(seen, r)
		return AcceptLate
	})
	c, clock := newTestCoordinator(t, WithLateResultPolicy(policy))
	id := c.CreateTask("compute_congestion", 60, nil)
	c.Claim("A")

	clock.Advance(c.Config().TaskTimeout + time.Second)
	c.Sweep(clock.Now())
	require.NotNil(t, c.Claim("B"))

	assert.Equal(t, ResolutionAccepted, c.Complete(id, "A", metricsResult(12, 20)))
	require.Len(t, seen, 1)
	assert.Equal(t, "A", seen[0].NodeID)
	assert.Equal(t, "B", seen[0].Task.NodeID)
	assert.Equal(t, TaskCompleted, seen[0].Outcome)

	task, _ := c.Task(id)
	assert.Equal(t, TaskCompleted, task.Status)
	assert.Equal(t, "A", task.NodeID)

	a, _ := c.Node("A")
	assert.Equal(t, 1, a.TasksCompleted)
	b, _ := c.Node("B")
	assert.Empty(t, b.CurrentTask)

	assert.Equal(t, ResolutionStale, c.Complete(id, "B", metricsResult(1, 1)))
}

// TestLateResultWhilePending verifies that accepting a late result removes
// the task from the queue.
func TestLateResultWhilePending(t *testing.T) {
	c, clock := newTestCoordinator(t, WithLateResultPolicy(AcceptLateResults))
	id := c.CreateTask("compute_congestion", 60, nil)
	c.Claim("A")

	clock.Advance(c.Config().TaskTimeout + time.Second)
	c.Sweep(clock.Now())
	require.Equal(t, 1, c.QueueDepth())

	assert.Equal(t, ResolutionAccepted, c.Fail(id, "A", "slow", nil))
	assert.Equal(t, 0, c.QueueDepth())
	assert.Nil(t, c.Claim("B"))
}

// TestLateCompletionKeepsAssignedAt verifies that a task finished through an
// accepted late result still reports when it was handed out.
func TestLateCompletionKeepsAssignedAt(t *testing.T) {
	c, clock := newTestCoordinator(t, WithLateResultPolicy(AcceptLateResults))
	id := c.CreateTask("compute_congestion", 60, nil)
	claimedAt := clock.Now()
	require.NotNil(t, c.Claim("A"))

	clock.Advance(c.Config().TaskTimeout + time.Second)
	c.Sweep(clock.Now())
	requeued, _ := c.Task(id)
	require.Equal(t, TaskPending, requeued.Status)
	require.Nil(t, requeued.AssignedAt)

	assert.Equal(t, ResolutionAccepted, c.Complete(id, "A", metricsResult(12, 20)))

	task, _ := c.Task(id)
	assert.Equal(t, TaskCompleted, task.Status)
	require.NotNil(t, task.AssignedAt)
	assert.Equal(t, claimedAt, *task.AssignedAt)
	require.NotNil(t, task.CompletedAt)
	assert.True(t, task.CompletedAt.After(*task.AssignedAt))
}

// TestFinishedTaskRetention verifies that old terminal tasks are forgotten
// while the status totals keep counting them.
func TestFinishedTaskRetention(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetainFinished = 2
	clock := newFakeClock()
	c := New(cfg, WithClock(clock.Now), WithLogger(quietLogger()))

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, c.CreateTask("compute_congestion", 60, nil))
	}
	for i := 0; i < 4; i++ {
		task := c.Claim("A")
		require.NotNil(t, task)
		if i == 1 {
			require.Equal(t, ResolutionAccepted, c.Fail(task.ID, "A", "bad batch", nil))
			continue
		}
		require.Equal(t, ResolutionAccepted, c.Complete(task.ID, "A", metricsResult(10, 10)))
	}

	_, ok := c.Task(ids[0])
	assert.False(t, ok, "oldest finished task forgotten")
	_, ok = c.Task(ids[1])
	assert.False(t, ok)
	for _, id := range ids[2:] {
		_, ok := c.Task(id)
		assert.True(t, ok, id)
	}
	assert.Equal(t, ResolutionUnknownTask, c.Complete(ids[0], "A", metricsResult(1, 1)))

	snap := c.Status()
	assert.Equal(t, 5, snap.Tasks.Total)
	assert.Equal(t, 3, snap.Tasks.Completed)
	assert.Equal(t, 1, snap.Tasks.Failed)
	assert.Equal(t, 1, snap.Tasks.Pending)
	require.Len(t, snap.Tasks.Recent, 3)
	assert.Equal(t, ids[4], snap.Tasks.Recent[0].ID)
	assert.Equal(t, ids[2], snap.Tasks.Recent[2].ID)
}

// TestCombined verifies the per-node average over completed results.
func TestCombined(t *testing.T) {
	c, _ := newTestCoordinator(t)
	_, ok := c.Combined()
	assert.False(t, ok)

	a := c.CreateTask("compute_congestion", 60, nil)
	b := c.CreateTask("compute_congestion", 60, nil)
	require.Equal(t, a, c.Claim("A").ID)
	require.Equal(t, b, c.Claim("B").ID)
	c.Complete(a, "A", metricsResult(10, 30))
	c.Complete(b, "B", metricsResult(30, 60))

	got, ok := c.Combined()
	require.True(t, ok)
	assert.Equal(t, 2, got.Nodes)
	assert.Equal(t, 20.0, got.TrafficDensity)
	assert.Equal(t, 45.0, got.OccupancyPercent)
	assert.Equal(t, analytics.LevelMedium, got.Level)
}

// TestStatusSnapshot verifies counts and the recent task listing.
func TestStatusSnapshot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RecentTasks = 2
	clock := newFakeClock()
	c := New(cfg, WithClock(clock.Now), WithLogger(quietLogger()))

	t1 := c.CreateTask("compute_congestion", 60, nil)
	c.CreateTask("compute_congestion", 60, nil)
	t3 := c.CreateTask("compute_congestion", 60, nil)
	c.Claim("A")
	c.Fail(t1, "A", "bad data", nil)
	c.Claim("B")
	c.Heartbeat("C")
	clock.Advance(cfg.WorkingGrace + time.Second)
	c.Heartbeat("B")
	c.Heartbeat("C")

	snap := c.Status()
	assert.Equal(t, clock.Now(), snap.GeneratedAt)

	assert.Equal(t, 3, snap.Nodes.Total)
	assert.Equal(t, 3, snap.Nodes.Alive)
	assert.Equal(t, 1, snap.Nodes.Working)
	assert.Equal(t, 2, snap.Nodes.Idle, "A is past its grace window and C never worked")
	assert.Equal(t, 0, snap.Nodes.Dead)
	require.Len(t, snap.Nodes.Details, 3)
	assert.Equal(t, "A", snap.Nodes.Details[0].ID)

	assert.Equal(t, 3, snap.Tasks.Total)
	assert.Equal(t, 1, snap.Tasks.Pending)
	assert.Equal(t, 1, snap.Tasks.Assigned)
	assert.Equal(t, 1, snap.Tasks.Failed)
	assert.Equal(t, 1, snap.Tasks.QueueDepth)
	require.Len(t, snap.Tasks.Recent, 2)
	assert.Equal(t, t3, snap.Tasks.Recent[0].ID, "newest first")

	failed, ok := c.Task(t1)
	require.True(t, ok)
	assert.Equal(t, "bad data", summarizeTask(failed).Error)
}

// TestStatusForecast checks the moving average over the newest entries.
func TestStatusForecast(t *testing.T) {
	c, _ := newTestCoordinator(t)
	for _, d := range []float64{99, 10, 20, 30, 40, 50} {
		id := c.CreateTask("compute_congestion", 60, nil)
		c.Claim("A")
		require.Equal(t, ResolutionAccepted, c.Complete(id, "A", metricsResult(d, 50)))
	}

	snap := c.Status()
	require.NotNil(t, snap.Forecast)
	require.NotNil(t, snap.Forecast.PredictedDensity)
	assert.InDelta(t, 30.0, *snap.Forecast.PredictedDensity, 1e-9)
	assert.Equal(t, analytics.LevelMedium, snap.Forecast.PredictedLevel)
	assert.Equal(t, 6, snap.HistorySize)
}

// TestConcurrentAccess exercises the lock under the race detector.
func TestConcurrentAccess(t *testing.T) {
	c := New(DefaultConfig(), WithLogger(quietLogger()))
	for i := 0; i < 50; i++ {
		c.CreateTask("compute_congestion", 60, nil)
	}

	var wg sync.WaitGroup
	for w := 0; w < 5; w++ {
		wg.Add(1)
		go func(node string) {
			defer wg.Done()
			for {
				task := c.Claim(node)
				if task == nil {
					return
				}
				c.Complete(task.ID, node, metricsResult(10, 10))
				_ = c.Status()
			}
		}(string(rune('a' + w)))
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			c.Sweep(time.Now())
		}
	}()
	wg.Wait()

	snap := c.Status()
	assert.Equal(t, 50, snap.Tasks.Completed)
	assert.Equal(t, 0, snap.Tasks.QueueDepth)
}
