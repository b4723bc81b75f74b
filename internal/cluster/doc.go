// Package cluster carries the worker side of the coordinator protocol: the
// JSON wire types and a retrying HTTP client.
//
// # Protocol
//
// Workers pull; the coordinator never calls a worker.
//
//	  Node                                   Coordinator
//	   │  POST /node/heartbeat {node_id}         │
//	   │────────────────────────────────────────►│ register or refresh
//	   │  GET /task?node_id=                     │
//	   │────────────────────────────────────────►│ claim oldest PENDING
//	   │◄────────────────────────────────────────│ {task: {...} | null}
//	   │  POST /task-result                      │
//	   │  {task_id,node_id,status,result|error}  │
//	   │────────────────────────────────────────►│ accepted | unknown_task | stale
//
// A claim also counts as a heartbeat. A result the coordinator no longer
// wants (the task timed out and went elsewhere) is answered with "stale"
// rather than an error status, so workers simply move on.
//
// # Retries
//
// Client retries transport failures (connection refused, reset, timeouts)
// a fixed number of times with a fixed pause. HTTP error statuses are
// returned as *HTTPError immediately.
package cluster
