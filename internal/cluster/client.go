package cluster

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/runwaymesh/internal/coordinator"
	"github.com/dreamware/runwaymesh/internal/traffic"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL        string
	MaxRetries     int
	RetryPause     time.Duration
	RequestTimeout time.Duration
}

// Client talks to the coordinator on behalf of a worker node.
//
// Transport failures are retried up to MaxRetries attempts with RetryPause
// between them. Responses with an HTTP error status are returned at once;
// the coordinator already decided and retrying would not change its answer.
type Client struct {
	base       string
	http       *http.Client
	maxRetries int
	retryPause time.Duration
	log        *logrus.Entry
}

// NewClient creates a client. log may be nil.
func NewClient(cfg ClientConfig, log *logrus.Entry) *Client {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.RetryPause <= 0 {
		cfg.RetryPause = time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		base:       strings.TrimRight(cfg.BaseURL, "/"),
		http:       &http.Client{Timeout: cfg.RequestTimeout},
		maxRetries: cfg.MaxRetries,
		retryPause: cfg.RetryPause,
		log:        log,
	}
}

// Heartbeat announces nodeID to the coordinator.
func (c *Client) Heartbeat(ctx context.Context, nodeID string) (HeartbeatResponse, error) {
	var out HeartbeatResponse
	err := c.retry(ctx, "heartbeat", func() error {
		return PostJSON(ctx, c.http, c.base+"/node/heartbeat", HeartbeatRequest{NodeID: nodeID}, &out)
	})
	return out, err
}

// ClaimTask asks for the next task. It returns nil, nil when none is pending.
func (c *Client) ClaimTask(ctx context.Context, nodeID string) (*coordinator.Task, error) {
	var out TaskResponse
	u := c.base + "/task?node_id=" + url.QueryEscape(nodeID)
	err := c.retry(ctx, "claim", func() error {
		out = TaskResponse{}
		return GetJSON(ctx, c.http, u, &out)
	})
	return out.Task, err
}

// SubmitResult reports a task outcome and returns how the coordinator
// resolved it.
func (c *Client) SubmitResult(ctx context.Context, req ResultRequest) (coordinator.Resolution, error) {
	var out ResultResponse
	err := c.retry(ctx, "submit", func() error {
		return PostJSON(ctx, c.http, c.base+"/task-result", req, &out)
	})
	return out.Status, err
}

// Status fetches the coordinator snapshot.
func (c *Client) Status(ctx context.Context) (coordinator.Snapshot, error) {
	var out coordinator.Snapshot
	err := c.retry(ctx, "status", func() error {
		return GetJSON(ctx, c.http, c.base+"/status", &out)
	})
	return out, err
}

// Summary fetches the latest coordinator summary.
func (c *Client) Summary(ctx context.Context) (traffic.Summary, error) {
	var out traffic.Summary
	err := c.retry(ctx, "summary", func() error {
		return GetJSON(ctx, c.http, c.base+"/summary", &out)
	})
	return out, err
}

// SendFeedback posts an operator decision.
func (c *Client) SendFeedback(ctx context.Context, fb Feedback) error {
	return c.retry(ctx, "feedback", func() error {
		return PostJSON(ctx, c.http, c.base+"/edge-feedback", fb, nil)
	})
}

func (c *Client) retry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		var herr *HTTPError
		if errors.As(lastErr, &herr) || ctx.Err() != nil {
			return lastErr
		}
		if attempt == c.maxRetries {
			break
		}
		c.log.WithFields(logrus.Fields{"op": op, "attempt": attempt}).WithError(lastErr).Warn("request failed; retrying")

		t := time.NewTimer(c.retryPause)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, c.maxRetries, lastErr)
}

// IsStatus reports whether err is an HTTPError with the given code.
func IsStatus(err error, code int) bool {
	var herr *HTTPError
	return errors.As(err, &herr) && herr.StatusCode == code
}
