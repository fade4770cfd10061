package executor

import (
	"sync"

	"github.com/flowcore/engine/pkg/workflow"
)

// Context is the immutable, per-execution data built once by the Execution
// Driver: the workflow, its identifiers, and the planner's levels.
type Context struct {
	Workflow       *workflow.Workflow
	WorkflowID     string
	OrganizationID string
	ExecutionID    string
	DeploymentID   string

	Levels         [][]string
	OrderedNodeIDs []string
}

// NewContext builds a Context from a workflow and a completed Plan.
func NewContext(w *workflow.Workflow, organizationID, executionID, deploymentID string, plan *Plan) *Context {
	return &Context{
		Workflow:       w,
		WorkflowID:     w.ID,
		OrganizationID: organizationID,
		ExecutionID:    executionID,
		DeploymentID:   deploymentID,
		Levels:         plan.Levels,
		OrderedNodeIDs: plan.OrderedNodeIDs(),
	}
}

// SkipReason names why a node was not executed.
type SkipReason string

const (
	SkipConditionalBranch SkipReason = "conditional_branch"
	SkipUpstreamFailure   SkipReason = "upstream_failure"
)

// ResultStatus is the outcome tag of a NodeExecutionResult.
type ResultStatus string

const (
	ResultCompleted ResultStatus = "completed"
	ResultError     ResultStatus = "error"
	ResultSkipped   ResultStatus = "skipped"
)

// NodeExecutionResult is the uniform, JSON-serializable outcome of running
// (or skipping) exactly one node; it is the value a DurableStep thunk
// returns and the Level Scheduler applies to State.
type NodeExecutionResult struct {
	NodeID     string                     `json:"nodeId"`
	Status     ResultStatus               `json:"status"`
	Outputs    map[string]workflow.Value  `json:"outputs,omitempty"`
	Usage      float64                    `json:"usage"`
	Error      string                     `json:"error,omitempty"`
	SkipReason SkipReason                 `json:"skipReason,omitempty"`
	BlockedBy  []string                   `json:"blockedBy,omitempty"`
}

// State is the single-writer mutable progress record for one execution.
// The Level Scheduler is the only component that applies results to it;
// everything else — the Input Collector, Skip Analyzer, Node Invoker —
// reads an immutable snapshot.
type State struct {
	mu sync.RWMutex

	executionID string
	workflowID  string

	nodeOutputs map[string]map[string]workflow.Value
	executed    map[string]struct{}
	skipped     map[string]struct{}
	errors      map[string]string
	usage       map[string]float64
	skipDetail  map[string]skipInfo
}

type skipInfo struct {
	reason    SkipReason
	blockedBy []string
}

// NewState creates an empty State for one execution.
func NewState(executionID, workflowID string) *State {
	return &State{
		executionID: executionID,
		workflowID:  workflowID,
		nodeOutputs: make(map[string]map[string]workflow.Value),
		executed:    make(map[string]struct{}),
		skipped:     make(map[string]struct{}),
		errors:      make(map[string]string),
		usage:       make(map[string]float64),
		skipDetail:  make(map[string]skipInfo),
	}
}

// Snapshot is a read-only, point-in-time view of State handed to the Input
// Collector, Skip Analyzer and Node Invoker so they never race the Level
// Scheduler's writes.
type Snapshot struct {
	NodeOutputs map[string]map[string]workflow.Value
	Executed    map[string]struct{}
	Skipped     map[string]struct{}
	Errors      map[string]string
}

// Snapshot copies the current maps under a read lock.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	outputs := make(map[string]map[string]workflow.Value, len(s.nodeOutputs))
	for nodeID, ports := range s.nodeOutputs {
		copied := make(map[string]workflow.Value, len(ports))
		for name, v := range ports {
			copied[name] = v
		}
		outputs[nodeID] = copied
	}

	executed := make(map[string]struct{}, len(s.executed))
	for id := range s.executed {
		executed[id] = struct{}{}
	}
	skipped := make(map[string]struct{}, len(s.skipped))
	for id := range s.skipped {
		skipped[id] = struct{}{}
	}
	errs := make(map[string]string, len(s.errors))
	for id, msg := range s.errors {
		errs[id] = msg
	}

	return Snapshot{NodeOutputs: outputs, Executed: executed, Skipped: skipped, Errors: errs}
}

// Apply records one node's result. Called by the Level Scheduler, in a
// level's declared order, after all of the level's results are collected.
func (s *State) Apply(result NodeExecutionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch result.Status {
	case ResultCompleted:
		s.executed[result.NodeID] = struct{}{}
		s.nodeOutputs[result.NodeID] = result.Outputs
		s.usage[result.NodeID] = result.Usage
	case ResultError:
		s.errors[result.NodeID] = result.Error
		if result.Usage != 0 {
			s.usage[result.NodeID] = result.Usage
		}
	case ResultSkipped:
		s.skipped[result.NodeID] = struct{}{}
		s.skipDetail[result.NodeID] = skipInfo{reason: result.SkipReason, blockedBy: result.BlockedBy}
	}
}

// SkipDetail returns the recorded skip reason and blockers for nodeID, if
// it was skipped.
func (s *State) SkipDetail(nodeID string) (reason SkipReason, blockedBy []string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.skipDetail[nodeID]
	if !ok {
		return "", nil, false
	}
	return info.reason, info.blockedBy, true
}

// Usage returns the recorded usage for nodeID.
func (s *State) Usage(nodeID string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usage[nodeID]
}

// IsDecided reports whether nodeID already has a terminal classification.
func (s *State) IsDecided(nodeID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return isDecided(nodeID, s.executed, s.skipped, s.errors)
}

func isDecided(nodeID string, executed, skipped map[string]struct{}, errs map[string]string) bool {
	if _, ok := executed[nodeID]; ok {
		return true
	}
	if _, ok := skipped[nodeID]; ok {
		return true
	}
	if _, ok := errs[nodeID]; ok {
		return true
	}
	return false
}

// TotalUsage sums recorded usage across every node.
func (s *State) TotalUsage() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total float64
	for _, u := range s.usage {
		total += u
	}
	return total
}

// ErrorCount reports how many nodes ended in error.
func (s *State) ErrorCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.errors)
}

// Errors returns a copy of the nodeId -> message error map.
func (s *State) Errors() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.errors))
	for k, v := range s.errors {
		out[k] = v
	}
	return out
}
