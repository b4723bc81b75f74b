package analytics

import (
	"encoding/json"

	"golang.org/x/exp/slices"
)

// MetricsKey is the sub-field under which a result may nest its metrics.
const MetricsKey = "metrics"

// Metrics is the normalized, flat numeric view of a task result.
type Metrics map[string]float64

// Get returns the named value and whether it was present.
func (m Metrics) Get(name string) (float64, bool) {
	v, ok := m[name]
	return v, ok
}

// Names returns the metric names in sorted order.
func (m Metrics) Names() []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// Clone returns an independent copy.
func (m Metrics) Clone() Metrics {
	if m == nil {
		return nil
	}
	out := make(Metrics, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Normalize converts a raw result payload into Metrics. A payload is either
// {"metrics": {...}} or a bare map; both yield the same shape. Non-numeric
// values are dropped. The boolean is false when no numeric value remains.
func Normalize(raw map[string]any) (Metrics, bool) {
	if raw == nil {
		return nil, false
	}
	src := raw
	if nested, ok := raw[MetricsKey].(map[string]any); ok {
		src = nested
	}

	out := make(Metrics, len(src))
	for k, v := range src {
		if f, ok := toFloat(v); ok {
			out[k] = f
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
