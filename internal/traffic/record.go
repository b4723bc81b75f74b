// Package traffic holds runway movement records and the arithmetic that
// turns a window of them into congestion figures.
//
// The coordinator uses Summarize to publish its own view of the current
// window, and workers use Analyze to compute the per-batch result they
// report back. Both round before classifying so that the reported numbers
// always reproduce the reported level under analytics.Classify.
package traffic

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Movement types.
const (
	Arrival   = "arrival"
	Departure = "departure"
)

// Record is a single runway movement.
type Record struct {
	Timestamp        time.Time `json:"timestamp_utc"`
	MovementType     string    `json:"movement_type"`
	Runway           string    `json:"runway"`
	OccupancySeconds int       `json:"occupancy_seconds"`
}

// Batch is the payload a compute task carries to a worker.
type Batch struct {
	Movements   []Record  `json:"traffic_movements"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	AirportCode string    `json:"airport_code"`
	Runway      string    `json:"runway"`
}

// Payload returns the batch as the opaque map stored on a task.
func (b Batch) Payload() map[string]any {
	movements := make([]Record, len(b.Movements))
	copy(movements, b.Movements)
	return map[string]any{
		"traffic_movements": movements,
		"window_start":      b.WindowStart.Format(time.RFC3339),
		"window_end":        b.WindowEnd.Format(time.RFC3339),
		"airport_code":      b.AirportCode,
		"runway":            b.Runway,
	}
}

// DecodeBatch reads a batch back from a task payload, whether it came
// straight from Payload or through a JSON round trip.
func DecodeBatch(data map[string]any) (Batch, error) {
	var b Batch
	if len(data) == 0 {
		return b, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return b, fmt.Errorf("encode task data: %w", err)
	}
	if err := json.Unmarshal(raw, &b); err != nil {
		return b, fmt.Errorf("decode traffic batch: %w", err)
	}
	return b, nil
}

// InWindow returns the records with a timestamp at or after now-window.
func InWindow(records []Record, window time.Duration, now time.Time) []Record {
	start := now.Add(-window)
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if !r.Timestamp.Before(start) {
			out = append(out, r)
		}
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
