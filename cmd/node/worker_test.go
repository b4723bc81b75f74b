package main

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/dreamware/runwaymesh/internal/cluster"
	"github.com/dreamware/runwaymesh/internal/config"
	"github.com/dreamware/runwaymesh/internal/coordinator"
	"github.com/dreamware/runwaymesh/internal/traffic"
)

var now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fakeClient struct {
	mu         sync.Mutex
	tasks      []*coordinator.Task
	results    []cluster.ResultRequest
	heartbeats int
	resolution coordinator.Resolution
	claimErr   error
}

func (f *fakeClient) Heartbeat(context.Context, string) (cluster.HeartbeatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats++
	return cluster.HeartbeatResponse{Status: "ok", Timestamp: now}, nil
}

func (f *fakeClient) ClaimTask(context.Context, string) (*coordinator.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	if len(f.tasks) == 0 {
		return nil, nil
	}
	t := f.tasks[0]
	f.tasks = f.tasks[1:]
	return t, nil
}

func (f *fakeClient) SubmitResult(_ context.Context, req cluster.ResultRequest) (coordinator.Resolution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, req)
	if f.resolution == "" {
		return coordinator.ResolutionAccepted, nil
	}
	return f.resolution, nil
}

func (f *fakeClient) heartbeatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heartbeats
}

func quietEntry() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestWorker(client coordinatorClient) *Worker {
	w := NewWorker("edge-1", client, time.Hour, time.Hour, quietEntry())
	w.now = func() time.Time { return now }
	return w
}

func busyTask(id string) *coordinator.Task {
	var movements []traffic.Record
	for i := 0; i < 12; i++ {
		kind := traffic.Arrival
		if i%2 == 1 {
			kind = traffic.Departure
		}
		movements = append(movements, traffic.Record{
			Timestamp:        now.Add(time.Duration(-60+i*5) * time.Minute),
			MovementType:     kind,
			Runway:           "09/27",
			OccupancySeconds: 90,
		})
	}
	b := traffic.Batch{Movements: movements, AirportCode: "VABB", Runway: "09/27"}
	return &coordinator.Task{
		ID:            id,
		Type:          cluster.TaskComputeCongestion,
		WindowMinutes: 60,
		Data:          b.Payload(),
		Status:        coordinator.TaskAssigned,
	}
}

func TestWorkerCompletesTasks(t *testing.T) {
	client := &fakeClient{tasks: []*coordinator.Task{busyTask("task-000001"), busyTask("task-000002")}}
	w := newTestWorker(client)

	w.poll(context.Background())

	require.Len(t, client.results, 2)
	for i, r := range client.results {
		assert.Equal(t, cluster.StatusCompleted, r.Status)
		assert.Equal(t, "edge-1", r.NodeID)
		assert.Empty(t, r.Error)
		assert.Equal(t, 12, r.Result["total_movements"])
		assert.Contains(t, r.Result, "congestion_level")
		assert.Equal(t, "VABB", r.Result["airport_code"])
		assertProcessingTime(t, r.Result)
		if i == 0 {
			assert.Equal(t, "task-000001", r.TaskID)
		}
	}

	stats := w.Stats()
	assert.Equal(t, int64(2), stats.TasksFetched)
	assert.Equal(t, int64(2), stats.TasksCompleted)
	assert.Zero(t, stats.TasksFailed)
}

func assertProcessingTime(t *testing.T, result map[string]any) {
	t.Helper()
	v, ok := result[ProcessingTimeKey].(float64)
	require.True(t, ok, "processing time missing from %v", result)
	assert.GreaterOrEqual(t, v, 0.0)
	assert.Equal(t, math.Round(v*1000)/1000, v)
}

func TestWorkerReportsFailures(t *testing.T) {
	tests := []struct {
		name    string
		task    *coordinator.Task
		wantErr string
	}{
		{
			name:    "empty batch",
			task:    &coordinator.Task{ID: "task-000001", Type: cluster.TaskComputeCongestion, WindowMinutes: 60},
			wantErr: traffic.ErrNoMovements.Error(),
		},
		{
			name:    "unknown type",
			task:    &coordinator.Task{ID: "task-000002", Type: "reindex", WindowMinutes: 60},
			wantErr: `unknown task type "reindex"`,
		},
		{
			name: "malformed batch",
			task: &coordinator.Task{
				ID:            "task-000003",
				Type:          cluster.TaskComputeCongestion,
				WindowMinutes: 60,
				Data:          map[string]any{"traffic_movements": "not a list"},
			},
			wantErr: "decode traffic batch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{tasks: []*coordinator.Task{tt.task}}
			w := newTestWorker(client)

			w.poll(context.Background())

			require.Len(t, client.results, 1)
			r := client.results[0]
			assert.Equal(t, cluster.StatusFailed, r.Status)
			assert.Equal(t, tt.task.ID, r.TaskID)
			assert.Contains(t, r.Error, tt.wantErr)
			require.Len(t, r.Result, 1)
			assertProcessingTime(t, r.Result)
			assert.Equal(t, int64(1), w.Stats().TasksFailed)
		})
	}
}

func TestWorkerCountsStaleResults(t *testing.T) {
	client := &fakeClient{
		tasks:      []*coordinator.Task{busyTask("task-000001")},
		resolution: coordinator.ResolutionStale,
	}
	w := newTestWorker(client)

	w.poll(context.Background())

	stats := w.Stats()
	assert.Equal(t, int64(1), stats.StaleResults)
	assert.Zero(t, stats.TasksCompleted)
}

func TestWorkerClaimError(t *testing.T) {
	client := &fakeClient{claimErr: errors.New("connection refused")}
	w := newTestWorker(client)

	w.poll(context.Background())

	assert.Empty(t, client.results)
	assert.Zero(t, w.Stats().TasksFetched)
}

func TestWorkerRunStopsOnCancel(t *testing.T) {
	client := &fakeClient{tasks: []*coordinator.Task{busyTask("task-000001")}}
	w := NewWorker("edge-1", client, 10*time.Millisecond, 10*time.Millisecond, quietEntry())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return client.heartbeatCount() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, int64(1), w.Stats().TasksCompleted)
	assert.GreaterOrEqual(t, w.Stats().Heartbeats, int64(2))
}

func TestLoadConfigFlags(t *testing.T) {
	t.Setenv("RUNWAY_CONFIG", "")

	var got *config.Config
	app := newApp()
	app.Action = func(c *cli.Context) error {
		var err error
		got, err = loadConfig(c)
		return err
	}

	t.Run("overrides", func(t *testing.T) {
		require.NoError(t, app.Run([]string{"node", "--coordinator", "http://coord:9000", "--id", "edge-7"}))
		assert.Equal(t, "http://coord:9000", got.Node.CoordinatorURL)
		assert.Equal(t, "edge-7", got.Node.ID)
	})

	t.Run("generated id", func(t *testing.T) {
		require.NoError(t, app.Run([]string{"node"}))
		assert.Regexp(t, `^node-[0-9a-f]{8}$`, got.Node.ID)
		assert.NotEmpty(t, got.Node.CoordinatorURL)
	})
}
