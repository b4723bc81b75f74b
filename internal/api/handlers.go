// Package api exposes the coordinator over HTTP with gin.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/dreamware/runwaymesh/internal/cluster"
	"github.com/dreamware/runwaymesh/internal/coordinator"
	"github.com/dreamware/runwaymesh/internal/events"
	"github.com/dreamware/runwaymesh/internal/storage"
	"github.com/dreamware/runwaymesh/internal/traffic"
)

// publishTimeout bounds how long a request waits on the event publisher.
const publishTimeout = 2 * time.Second

// FailureCounter counts events that could not be published.
type FailureCounter interface {
	PublishFailed()
}

// API provides the HTTP handlers.
type API struct {
	coord     *coordinator.Coordinator
	summaries storage.SummaryStore
	publisher events.Publisher
	failures  FailureCounter
	log       *logrus.Entry
}

// NewAPI creates the handlers. publisher, failures and log may be nil.
func NewAPI(coord *coordinator.Coordinator, summaries storage.SummaryStore, publisher events.Publisher, failures FailureCounter, log *logrus.Entry) *API {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &API{
		coord:     coord,
		summaries: summaries,
		publisher: publisher,
		failures:  failures,
		log:       log.WithField("component", "api"),
	}
}

// HeartbeatHandler registers a node or refreshes its heartbeat.
func (a *API) HeartbeatHandler(c *gin.Context) {
	var req cluster.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.NodeID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "node_id is required"})
		return
	}

	a.coord.Heartbeat(req.NodeID)
	c.JSON(http.StatusOK, cluster.HeartbeatResponse{Status: "ok", Timestamp: a.coord.Now()})
}

// ClaimTaskHandler hands the next pending task to the calling node.
func (a *API) ClaimTaskHandler(c *gin.Context) {
	nodeID := strings.TrimSpace(c.Query("node_id"))
	if nodeID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "node_id is required"})
		return
	}

	c.JSON(http.StatusOK, cluster.TaskResponse{Task: a.coord.Claim(nodeID)})
}

// SubmitResultHandler records a completion or failure.
func (a *API) SubmitResultHandler(c *gin.Context) {
	var req cluster.ResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.log.WithError(err).Warn("invalid result payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if req.TaskID == "" || req.NodeID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "task_id and node_id are required"})
		return
	}

	var res coordinator.Resolution
	switch req.Status {
	case cluster.StatusCompleted:
		res = a.coord.Complete(req.TaskID, req.NodeID, req.Result)
	case cluster.StatusFailed:
		reason := req.Error
		if reason == "" {
			reason = "unknown error"
		}
		res = a.coord.Fail(req.TaskID, req.NodeID, reason, req.Result)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": `status must be "completed" or "failed"`})
		return
	}

	if res == coordinator.ResolutionAccepted && req.Status == cluster.StatusCompleted {
		a.refreshSummary(c.Request.Context())
	}
	if res == coordinator.ResolutionAccepted {
		a.publish(c.Request.Context(), events.Event{
			Kind:   events.KindTaskResult,
			TaskID: req.TaskID,
			NodeID: req.NodeID,
			Status: req.Status,
			Result: req.Result,
			Error:  req.Error,
			At:     a.coord.Now(),
		})
	}
	c.JSON(http.StatusOK, cluster.ResultResponse{Status: res})
}

// GetTaskHandler returns a single task.
func (a *API) GetTaskHandler(c *gin.Context) {
	task, ok := a.coord.Task(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": coordinator.ErrUnknownTask.Error()})
		return
	}
	c.JSON(http.StatusOK, task)
}

// StatusHandler returns the coordinator snapshot.
func (a *API) StatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, a.coord.Status())
}

// SummaryHandler returns the latest summary, or 503 before the first cycle.
func (a *API) SummaryHandler(c *gin.Context) {
	summary, err := a.summaries.Get(c.Request.Context())
	if errors.Is(err, storage.ErrNotReady) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		a.log.WithError(err).Error("failed to load summary")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "summary unavailable"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// EdgeFeedbackHandler accepts an operator decision from an edge device.
func (a *API) EdgeFeedbackHandler(c *gin.Context) {
	var fb cluster.Feedback
	if err := c.ShouldBindJSON(&fb); err != nil || strings.TrimSpace(fb.Decision) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "decision is required"})
		return
	}
	if fb.Timestamp.IsZero() {
		fb.Timestamp = a.coord.Now()
	}

	a.log.WithFields(logrus.Fields{
		"decision":  fb.Decision,
		"notes":     fb.Notes,
		"timestamp": fb.Timestamp,
	}).Info("edge feedback received")

	a.publish(c.Request.Context(), events.Event{
		Kind:   events.KindEdgeFeedback,
		Status: fb.Decision,
		Result: map[string]any{"notes": fb.Notes},
		At:     fb.Timestamp,
	})
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// HealthHandler reports liveness.
func (a *API) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": a.coord.Now()})
}

// refreshSummary replaces the stored summary with the average of each
// node's latest result. Store errors are logged; the result itself is
// already recorded.
func (a *API) refreshSummary(ctx context.Context) {
	combined, ok := a.coord.Combined()
	if !ok {
		return
	}
	base, err := a.summaries.Get(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotReady) {
		a.log.WithError(err).Warn("failed to load summary for combining")
	}
	summary := traffic.FromCombined(base, combined, a.coord.Now())
	if err := a.summaries.Set(ctx, summary); err != nil {
		a.log.WithError(err).Warn("failed to store combined summary")
		return
	}
	a.log.WithFields(logrus.Fields{
		"nodes":      combined.Nodes,
		"congestion": combined.Level,
	}).Debug("combined summary updated")
}

func (a *API) publish(ctx context.Context, e events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := a.publisher.Publish(ctx, e); err != nil {
		if a.failures != nil {
			a.failures.PublishFailed()
		}
		a.log.WithError(err).WithFields(logrus.Fields{"kind": e.Kind, "task_id": e.TaskID}).Warn("failed to publish event")
	}
}
