package coordinator

// LateDecision is what a LateResultPolicy decides for a late result.
type LateDecision string

const (
	// DropLate discards the late result.
	DropLate LateDecision = "drop"
	// AcceptLate applies the late result, detaching the task from whoever
	// holds it now (or from the pending queue).
	AcceptLate LateDecision = "accept"
)

// LateResult describes a result reported by a node that no longer owns the
// task: the task timed out and is pending again, or it was reassigned.
type LateResult struct {
	Task    Task
	NodeID  string
	Outcome TaskStatus
}

// LateResultPolicy decides the fate of late results. Results for tasks that
// already reached a terminal state never reach the policy; they are dropped.
type LateResultPolicy interface {
	Decide(LateResult) LateDecision
}

// LateResultFunc adapts a function to LateResultPolicy.
type LateResultFunc func(LateResult) LateDecision

// Decide implements LateResultPolicy.
func (f LateResultFunc) Decide(r LateResult) LateDecision { return f(r) }

var (
	// DropLateResults is the default policy: late results are logged and
	// dropped, and the current owner keeps the task.
	DropLateResults LateResultPolicy = LateResultFunc(func(LateResult) LateDecision { return DropLate })

	// AcceptLateResults applies any late result that arrives while the task
	// is still open.
	AcceptLateResults LateResultPolicy = LateResultFunc(func(LateResult) LateDecision { return AcceptLate })
)
