package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// httpClient is used when a caller passes a nil *http.Client.
var httpClient = &http.Client{Timeout: 5 * time.Second}

// HTTPError is returned when the server answered with a non-2xx status.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Message    string
}

// Error includes the server message when the body carried one.
func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %s %s: %d: %s", e.Method, e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("http %s %s: %d", e.Method, e.URL, e.StatusCode)
}

// PostJSON sends body as JSON to url and decodes the reply into out.
//
// Parameters:
//   - ctx: cancels the request
//   - c: client to use; nil selects a shared client with a 5s timeout
//   - body: value marshaled as the request body
//   - out: destination for the response body; nil discards it
//
// Returns an *HTTPError for a non-2xx reply, otherwise any transport,
// encoding or decoding error.
//
// Example:
//
//	var resp ResultResponse
//	err := PostJSON(ctx, nil, base+"/task-result", req, &resp)
func PostJSON(ctx context.Context, c *http.Client, url string, body any, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return do(c, req, out)
}

// GetJSON fetches url and decodes the JSON reply into out. Error handling
// and the nil client rule match PostJSON.
//
// Example:
//
//	var snap coordinator.Snapshot
//	err := GetJSON(ctx, nil, base+"/status", &snap)
func GetJSON(ctx context.Context, c *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return do(c, req, out)
}

// do executes req. Up to 4KiB of an error body is read to recover the
// server's message.
func do(c *http.Client, req *http.Request, out any) error {
	if c == nil {
		c = httpClient
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		herr := &HTTPError{Method: req.Method, URL: req.URL.String(), StatusCode: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var body ErrorResponse
		if json.Unmarshal(raw, &body) == nil {
			herr.Message = body.Error
		}
		return herr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
