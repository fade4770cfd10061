package executor

// Status is the externally visible workflow status.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusExhausted Status = "exhausted"
)

// ComputeStatus is the pure function from spec.md §4.6: executing while
// any ordered node id has not yet reached a terminal classification,
// error if any node errored, completed otherwise. Status is never stored;
// callers recompute it from Context + a State snapshot whenever needed.
func ComputeStatus(ctx *Context, snap Snapshot) Status {
	for _, nodeID := range ctx.OrderedNodeIDs {
		if !isDecided(nodeID, snap.Executed, snap.Skipped, snap.Errors) {
			return StatusExecuting
		}
	}
	if len(snap.Errors) > 0 {
		return StatusError
	}
	return StatusCompleted
}
