package analytics

import "time"

// Aggregator folds completed task results into the latest-result view and
// the rolling history used for forecasting.
//
// Aggregator does no locking of its own; the coordinator records into it
// under the same guard that protects task and node state.
type Aggregator struct {
	history       *History
	latestResult  map[string]any
	latestMetrics Metrics
	latestAt      time.Time
	recorded      int
	rejected      int
	byNode        map[string]Metrics
}

// NewAggregator creates an aggregator with the given history capacity.
func NewAggregator(historyCapacity int) *Aggregator {
	return &Aggregator{history: NewHistory(historyCapacity)}
}

// Record stores raw as the latest result unconditionally. Its normalized
// metrics are appended to history only when extraction succeeds; the
// return value reports whether it did.
func (a *Aggregator) Record(raw map[string]any, at time.Time) bool {
	a.latestResult = raw
	a.latestAt = at

	m, ok := Normalize(raw)
	if !ok {
		a.rejected++
		return false
	}
	a.latestMetrics = m
	a.history.Append(m)
	a.recorded++
	return true
}

// RecordFrom is Record for a result reported by nodeID. Extracted metrics
// also replace that node's entry in the per-node view behind Combined.
func (a *Aggregator) RecordFrom(nodeID string, raw map[string]any, at time.Time) bool {
	if !a.Record(raw, at) {
		return false
	}
	if nodeID != "" {
		if a.byNode == nil {
			a.byNode = make(map[string]Metrics)
		}
		a.byNode[nodeID] = a.latestMetrics.Clone()
	}
	return true
}

// Combined averages the latest metrics of every node that reported any.
func (a *Aggregator) Combined() (Combined, bool) { return Combine(a.byNode) }

// LatestResult returns the raw payload of the most recent completion.
func (a *Aggregator) LatestResult() map[string]any { return a.latestResult }

// LatestMetrics returns a copy of the most recently extracted metrics.
func (a *Aggregator) LatestMetrics() Metrics { return a.latestMetrics.Clone() }

// LatestAt returns when the latest result was recorded.
func (a *Aggregator) LatestAt() time.Time { return a.latestAt }

// History exposes the rolling history.
func (a *Aggregator) History() *History { return a.history }

// Counts returns how many results were folded into history and how many
// were kept only as latest result because extraction failed.
func (a *Aggregator) Counts() (recorded, rejected int) { return a.recorded, a.rejected }
