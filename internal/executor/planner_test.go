package executor

import (
	"testing"

	execerrors "github.com/flowcore/engine/internal/executor/errors"
	"github.com/flowcore/engine/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id string) *workflow.Node {
	return &workflow.Node{
		ID:      id,
		Type:    "num",
		Outputs: []*workflow.OutputPort{{Name: "value"}},
	}
}

func edge(source, target string) *workflow.Edge {
	return &workflow.Edge{Source: source, SourceOutput: "value", Target: target, TargetInput: "a"}
}

func TestPlanWorkflow_Empty(t *testing.T) {
	w := &workflow.Workflow{ID: "wf"}
	plan, err := PlanWorkflow(w)
	require.NoError(t, err)
	assert.Empty(t, plan.Levels)
}

func TestPlanWorkflow_LinearChain(t *testing.T) {
	a, b, c := node("a"), node("b"), node("c")
	c.Inputs = []*workflow.InputPort{{Name: "a"}}
	b.Inputs = []*workflow.InputPort{{Name: "a"}}
	w := &workflow.Workflow{
		ID:    "wf",
		Nodes: []*workflow.Node{a, b, c},
		Edges: []*workflow.Edge{edge("a", "b"), edge("b", "c")},
	}

	plan, err := PlanWorkflow(w)
	require.NoError(t, err)
	require.Len(t, plan.Levels, 3)
	assert.Equal(t, []string{"a"}, plan.Levels[0])
	assert.Equal(t, []string{"b"}, plan.Levels[1])
	assert.Equal(t, []string{"c"}, plan.Levels[2])
}

func TestPlanWorkflow_Diamond(t *testing.T) {
	a, b, c, d := node("a"), node("b"), node("c"), node("d")
	b.Inputs = []*workflow.InputPort{{Name: "a"}}
	c.Inputs = []*workflow.InputPort{{Name: "a"}}
	d.Inputs = []*workflow.InputPort{{Name: "a"}, {Name: "b"}}
	w := &workflow.Workflow{
		ID:    "wf",
		Nodes: []*workflow.Node{a, b, c, d},
		Edges: []*workflow.Edge{edge("a", "b"), edge("a", "c"), edge("b", "d"), edge("c", "d")},
	}

	plan, err := PlanWorkflow(w)
	require.NoError(t, err)
	require.Len(t, plan.Levels, 3)
	assert.Equal(t, []string{"a"}, plan.Levels[0])
	assert.ElementsMatch(t, []string{"b", "c"}, plan.Levels[1])
	assert.Equal(t, []string{"d"}, plan.Levels[2])
}

func TestPlanWorkflow_CycleDetected(t *testing.T) {
	a, b := node("a"), node("b")
	a.Inputs = []*workflow.InputPort{{Name: "a"}}
	b.Inputs = []*workflow.InputPort{{Name: "a"}}
	w := &workflow.Workflow{
		ID:    "wf",
		Nodes: []*workflow.Node{a, b},
		Edges: []*workflow.Edge{edge("a", "b"), edge("b", "a")},
	}

	_, err := PlanWorkflow(w)
	require.Error(t, err)
	var cycleErr *execerrors.CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.ElementsMatch(t, []string{"a", "b"}, cycleErr.Remaining)
}

func TestPlanWorkflow_SelfLoopIsCycle(t *testing.T) {
	a := node("a")
	a.Inputs = []*workflow.InputPort{{Name: "a"}}
	w := &workflow.Workflow{
		ID:    "wf",
		Nodes: []*workflow.Node{a},
		Edges: []*workflow.Edge{edge("a", "a")},
	}

	_, err := PlanWorkflow(w)
	var cycleErr *execerrors.CycleError
	require.ErrorAs(t, err, &cycleErr)
}

func TestPlanWorkflow_ValidationFailsOnDanglingEdge(t *testing.T) {
	a := node("a")
	w := &workflow.Workflow{
		ID:    "wf",
		Nodes: []*workflow.Node{a},
		Edges: []*workflow.Edge{edge("a", "missing")},
	}

	_, err := PlanWorkflow(w)
	require.Error(t, err)
	var structErr *execerrors.StructuralError
	require.ErrorAs(t, err, &structErr)
}
