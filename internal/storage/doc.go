// Package storage holds the coordinator's latest congestion summary, the one
// piece of state that lives outside the coordinator lock.
//
// # Overview
//
// The production cycle writes a fresh summary once per cycle and any number
// of readers fetch it. Writes are last-write-wins; no history is kept.
//
//	┌────────────────┐  Set   ┌──────────────────┐  Get   ┌─────────────┐
//	│ engine (cycle) │ ─────► │   SummaryStore   │ ─────► │ GET /summary│
//	└────────────────┘        └────────┬─────────┘        └─────────────┘
//	                                   │
//	                      ┌────────────┴────────────┐
//	                      ▼                         ▼
//	               ┌─────────────┐           ┌─────────────┐
//	               │ MemoryStore │           │ RedisStore  │
//	               └─────────────┘           └─────────────┘
//
// # Implementations
//
// MemoryStore keeps the summary in process behind a sync.RWMutex. It is the
// default and what tests use.
//
// RedisStore stores the summary as JSON under a single key so several
// coordinator replicas or external dashboards can read the same value.
//
// # Readiness
//
// Both stores return ErrNotReady until the first summary has been written.
// The HTTP layer maps it to 503 Service Unavailable.
package storage
