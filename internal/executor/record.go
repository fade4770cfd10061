package executor

import "github.com/flowcore/engine/pkg/workflow"

// NodeSummary is one node's entry in a persisted Record, matching the
// union shape spec.md §6 lays out for nodeExecutions.
type NodeSummary struct {
	NodeID     string                     `json:"nodeId"`
	Status     ResultStatus               `json:"status"`
	Outputs    map[string]workflow.Value  `json:"outputs,omitempty"`
	Usage      float64                    `json:"usage"`
	Error      string                     `json:"error,omitempty"`
	SkipReason SkipReason                 `json:"skipReason,omitempty"`
	BlockedBy  []string                   `json:"blockedBy,omitempty"`
}

// Record is the externally visible execution summary: created once by
// the driver and persisted once at the end. After each level the Level
// Scheduler sends the monitor a fresh Record built from the current state.
type Record struct {
	ID             string        `json:"id"`
	WorkflowID     string        `json:"workflowId"`
	DeploymentID   string        `json:"deploymentId,omitempty"`
	UserID         string        `json:"userId"`
	OrganizationID string        `json:"organizationId"`
	Status         Status        `json:"status"`
	StartedAt      int64         `json:"startedAt"`
	EndedAt        int64         `json:"endedAt,omitempty"`
	Error          string        `json:"error,omitempty"`
	NodeExecutions []NodeSummary `json:"nodeExecutions"`
}

// BuildNodeExecutions renders State into the NodeSummary slice a Record
// persists, in ctx.OrderedNodeIDs order so "idle" (not-yet-reached) nodes
// appear too when the execution was cut short.
func BuildNodeExecutions(ctx *Context, state *State) []NodeSummary {
	snap := state.Snapshot()
	summaries := make([]NodeSummary, 0, len(ctx.OrderedNodeIDs))
	for _, nodeID := range ctx.OrderedNodeIDs {
		switch {
		case contains(snap.Executed, nodeID):
			summaries = append(summaries, NodeSummary{
				NodeID:  nodeID,
				Status:  ResultCompleted,
				Outputs: snap.NodeOutputs[nodeID],
				Usage:   state.Usage(nodeID),
			})
		case contains(snap.Skipped, nodeID):
			reason, blockedBy, _ := state.SkipDetail(nodeID)
			summaries = append(summaries, NodeSummary{NodeID: nodeID, Status: ResultSkipped, SkipReason: reason, BlockedBy: blockedBy})
		default:
			if msg, ok := snap.Errors[nodeID]; ok {
				summaries = append(summaries, NodeSummary{NodeID: nodeID, Status: ResultError, Error: msg, Usage: state.Usage(nodeID)})
			} else {
				summaries = append(summaries, NodeSummary{NodeID: nodeID, Status: "idle"})
			}
		}
	}
	return summaries
}

func contains(set map[string]struct{}, id string) bool {
	_, ok := set[id]
	return ok
}
