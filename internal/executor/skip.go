package executor

import (
	"sort"

	"github.com/flowcore/engine/pkg/workflow"
)

// EdgeClass is the per-incoming-edge classification the Skip Analyzer
// derives before deciding whether a node runs.
type EdgeClass string

const (
	EdgeErrored   EdgeClass = "errored"
	EdgeSkipped   EdgeClass = "skipped"
	EdgeInactive  EdgeClass = "inactive"
	EdgeAvailable EdgeClass = "available"
)

// Decision is the Skip Analyzer's verdict for one node.
type Decision struct {
	Executable bool
	Decided    bool // already has a terminal classification in State
	SkipReason SkipReason
	BlockedBy  []string
}

// ClassifyEdge returns the class of one incoming edge given a state
// snapshot, per spec.md §4.3: errored if the source errored, skipped if
// the source was skipped, inactive if the source completed but did not
// publish the referenced output (conditional branch not taken), available
// otherwise.
func ClassifyEdge(snap Snapshot, e *workflow.Edge) EdgeClass {
	if _, ok := snap.Errors[e.Source]; ok {
		return EdgeErrored
	}
	if _, ok := snap.Skipped[e.Source]; ok {
		return EdgeSkipped
	}
	if _, ok := snap.Executed[e.Source]; ok {
		if outputs, ok := snap.NodeOutputs[e.Source]; ok {
			if _, published := outputs[e.SourceOutput]; published {
				return EdgeAvailable
			}
		}
		return EdgeInactive
	}
	return EdgeAvailable
}

// Analyze classifies nodeID: already-decided, executable with no incoming
// edges, executable when enough incoming edges are available for the
// node's JoinStrategy (one, for the default wait_any), or skipped — with the asymmetric reason rule from spec.md §4.3: a skip is
// `conditional_branch` only when every non-available edge is `inactive`;
// any contribution from an errored or skipped upstream makes it
// `upstream_failure`.
func Analyze(w *workflow.Workflow, snap Snapshot, nodeID string) Decision {
	if isDecided(nodeID, snap.Executed, snap.Skipped, snap.Errors) {
		return Decision{Decided: true}
	}

	incoming := w.IncomingEdges(nodeID)
	if len(incoming) == 0 {
		return Decision{Executable: true}
	}

	anyAvailable := false
	onlyInactive := true
	availableCount := 0
	inactiveSet := make(map[string]struct{})
	failedSet := make(map[string]struct{})

	for _, e := range incoming {
		switch ClassifyEdge(snap, e) {
		case EdgeAvailable:
			anyAvailable = true
			availableCount++
		case EdgeInactive:
			inactiveSet[e.Source] = struct{}{}
		case EdgeErrored, EdgeSkipped:
			onlyInactive = false
			failedSet[e.Source] = struct{}{}
		}
	}

	if readyByJoinStrategy(w, nodeID, anyAvailable, availableCount, len(incoming)) {
		return Decision{Executable: true}
	}

	if onlyInactive {
		blocked := make([]string, 0, len(inactiveSet))
		for id := range inactiveSet {
			blocked = append(blocked, id)
		}
		sort.Strings(blocked)
		return Decision{SkipReason: SkipConditionalBranch, BlockedBy: blocked}
	}

	blocked := make([]string, 0, len(failedSet))
	for id := range failedSet {
		blocked = append(blocked, id)
	}
	sort.Strings(blocked)
	return Decision{SkipReason: SkipUpstreamFailure, BlockedBy: blocked}
}

// readyByJoinStrategy applies a node's declared JoinStrategy on top of the
// per-edge classification: wait_any (the default) is ready as soon as one
// edge is available; wait_all needs every incoming edge available; wait_n
// needs at least Node.JoinMinAvailable of them.
func readyByJoinStrategy(w *workflow.Workflow, nodeID string, anyAvailable bool, availableCount, totalIncoming int) bool {
	n, err := w.GetNode(nodeID)
	if err != nil {
		return anyAvailable
	}
	switch n.JoinStrategy {
	case workflow.JoinWaitAll:
		return availableCount == totalIncoming
	case workflow.JoinWaitN:
		return n.JoinMinAvailable > 0 && availableCount >= n.JoinMinAvailable
	default:
		return anyAvailable
	}
}
