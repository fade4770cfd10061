package executor

import (
	"sort"

	execerrors "github.com/flowcore/engine/internal/executor/errors"
	"github.com/flowcore/engine/pkg/workflow"
)

// Plan is the Graph Planner's output: a topological partition of the
// workflow's nodes into levels, each a set of mutually independent nodes.
type Plan struct {
	Levels [][]string
}

// OrderedNodeIDs flattens Levels, used only for "all nodes visited" checks.
func (p *Plan) OrderedNodeIDs() []string {
	ids := make([]string, 0, len(p.Levels))
	for _, level := range p.Levels {
		ids = append(ids, level...)
	}
	return ids
}

// PlanWorkflow validates a workflow and computes its execution levels.
//
// Validation runs first (duplicate ids, dangling edge references); a
// Kahn-layered sweep then computes levels by repeatedly peeling off every
// node whose in-degree has reached zero. A workflow whose union of levels
// is smaller than its node count contains a cycle.
func PlanWorkflow(w *workflow.Workflow) (*Plan, error) {
	if err := w.Validate(); err != nil {
		return nil, &execerrors.StructuralError{
			WorkflowID: w.ID,
			Message:    "validation failed: " + err.Error(),
			Cause:      err,
		}
	}

	if len(w.Nodes) == 0 {
		return &Plan{Levels: nil}, nil
	}

	inDegree := make(map[string]int, len(w.Nodes))
	outNeighbors := make(map[string][]string, len(w.Nodes))
	for _, n := range w.Nodes {
		inDegree[n.ID] = 0
	}
	for _, e := range w.Edges {
		inDegree[e.Target]++
		outNeighbors[e.Source] = append(outNeighbors[e.Source], e.Target)
	}

	var levels [][]string
	placed := make(map[string]bool, len(w.Nodes))

	current := make([]string, 0)
	for _, n := range w.Nodes {
		if inDegree[n.ID] == 0 {
			current = append(current, n.ID)
		}
	}
	sort.Strings(current)

	for len(current) > 0 {
		levels = append(levels, current)
		for _, id := range current {
			placed[id] = true
		}

		next := make([]string, 0)
		seen := make(map[string]bool)
		for _, id := range current {
			for _, neighbor := range outNeighbors[id] {
				inDegree[neighbor]--
				if inDegree[neighbor] == 0 && !seen[neighbor] {
					seen[neighbor] = true
					next = append(next, neighbor)
				}
			}
		}
		sort.Strings(next)
		current = next
	}

	if len(placed) < len(w.Nodes) {
		remaining := make([]string, 0, len(w.Nodes)-len(placed))
		for _, n := range w.Nodes {
			if !placed[n.ID] {
				remaining = append(remaining, n.ID)
			}
		}
		sort.Strings(remaining)
		return nil, &execerrors.CycleError{WorkflowID: w.ID, Remaining: remaining}
	}

	return &Plan{Levels: levels}, nil
}
