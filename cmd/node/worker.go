package main

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/runwaymesh/internal/cluster"
	"github.com/dreamware/runwaymesh/internal/coordinator"
	"github.com/dreamware/runwaymesh/internal/traffic"
)

// ProcessingTimeKey is the result field carrying analysis wall time in
// seconds, rounded to milliseconds.
const ProcessingTimeKey = "processing_time_seconds"

// coordinatorClient is the part of cluster.Client the worker uses.
type coordinatorClient interface {
	Heartbeat(ctx context.Context, nodeID string) (cluster.HeartbeatResponse, error)
	ClaimTask(ctx context.Context, nodeID string) (*coordinator.Task, error)
	SubmitResult(ctx context.Context, req cluster.ResultRequest) (coordinator.Resolution, error)
}

// Stats are the worker's local counters.
type Stats struct {
	Heartbeats        int64 `json:"heartbeats"`
	HeartbeatFailures int64 `json:"heartbeat_failures"`
	TasksFetched      int64 `json:"tasks_fetched"`
	TasksCompleted    int64 `json:"tasks_completed"`
	TasksFailed       int64 `json:"tasks_failed"`
	StaleResults      int64 `json:"stale_results"`
}

// Worker pulls tasks from the coordinator, analyzes them and reports back.
type Worker struct {
	id                string
	client            coordinatorClient
	heartbeatInterval time.Duration
	pollInterval      time.Duration
	now               func() time.Time
	log               *logrus.Entry

	heartbeats        atomic.Int64
	heartbeatFailures atomic.Int64
	fetched           atomic.Int64
	completed         atomic.Int64
	failed            atomic.Int64
	stale             atomic.Int64
}

// NewWorker creates a worker for node id.
func NewWorker(id string, client coordinatorClient, heartbeatInterval, pollInterval time.Duration, log *logrus.Entry) *Worker {
	if heartbeatInterval <= 0 {
		heartbeatInterval = 5 * time.Second
	}
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Worker{
		id:                id,
		client:            client,
		heartbeatInterval: heartbeatInterval,
		pollInterval:      pollInterval,
		now:               time.Now,
		log:               log.WithFields(logrus.Fields{"component": "worker", "node_id": id}),
	}
}

// Run sends heartbeats and polls for work until ctx is cancelled. Errors
// talking to the coordinator are logged and retried on the next tick.
func (w *Worker) Run(ctx context.Context) {
	w.log.WithFields(logrus.Fields{
		"heartbeat_interval": w.heartbeatInterval,
		"poll_interval":      w.pollInterval,
	}).Info("worker started")

	w.heartbeat(ctx)
	w.poll(ctx)

	heartbeat := time.NewTicker(w.heartbeatInterval)
	defer heartbeat.Stop()
	poll := time.NewTicker(w.pollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.WithField("stats", w.Stats()).Info("worker stopped")
			return
		case <-heartbeat.C:
			w.heartbeat(ctx)
		case <-poll.C:
			w.poll(ctx)
		}
	}
}

func (w *Worker) heartbeat(ctx context.Context) {
	if _, err := w.client.Heartbeat(ctx, w.id); err != nil {
		if ctx.Err() == nil {
			w.heartbeatFailures.Add(1)
			w.log.WithError(err).Warn("heartbeat failed")
		}
		return
	}
	w.heartbeats.Add(1)
}

// poll claims and processes tasks until the queue is empty.
func (w *Worker) poll(ctx context.Context) {
	for ctx.Err() == nil {
		task, err := w.client.ClaimTask(ctx, w.id)
		if err != nil {
			if ctx.Err() == nil {
				w.log.WithError(err).Warn("claim failed")
			}
			return
		}
		if task == nil {
			return
		}
		w.fetched.Add(1)
		w.process(ctx, task)
	}
}

// process analyzes task and submits the outcome.
func (w *Worker) process(ctx context.Context, task *coordinator.Task) {
	log := w.log.WithField("task_id", task.ID)
	req := cluster.ResultRequest{TaskID: task.ID, NodeID: w.id}

	started := time.Now()
	result, err := w.analyze(task)
	elapsed := math.Round(time.Since(started).Seconds()*1000) / 1000
	if err != nil {
		req.Status = cluster.StatusFailed
		req.Error = err.Error()
		req.Result = map[string]any{ProcessingTimeKey: elapsed}
		log.WithError(err).Warn("task failed")
	} else {
		req.Status = cluster.StatusCompleted
		result[ProcessingTimeKey] = elapsed
		req.Result = result
		log.WithFields(logrus.Fields{
			"density":    result["traffic_density"],
			"congestion": result["congestion_level"],
		}).Info("task analyzed")
	}

	res, err := w.client.SubmitResult(ctx, req)
	if err != nil {
		log.WithError(err).Error("failed to submit result")
		return
	}
	switch {
	case res != coordinator.ResolutionAccepted:
		w.stale.Add(1)
		log.WithField("resolution", res).Warn("coordinator did not accept result")
	case req.Status == cluster.StatusCompleted:
		w.completed.Add(1)
	default:
		w.failed.Add(1)
	}
}

func (w *Worker) analyze(task *coordinator.Task) (map[string]any, error) {
	if task.Type != cluster.TaskComputeCongestion {
		return nil, fmt.Errorf("unknown task type %q", task.Type)
	}
	batch, err := traffic.DecodeBatch(task.Data)
	if err != nil {
		return nil, err
	}
	return traffic.Analyze(batch, task.WindowMinutes, w.now())
}

// Stats returns a snapshot of the local counters.
func (w *Worker) Stats() Stats {
	return Stats{
		Heartbeats:        w.heartbeats.Load(),
		HeartbeatFailures: w.heartbeatFailures.Load(),
		TasksFetched:      w.fetched.Load(),
		TasksCompleted:    w.completed.Load(),
		TasksFailed:       w.failed.Load(),
		StaleResults:      w.stale.Load(),
	}
}
