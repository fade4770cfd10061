package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcore/engine/internal/catalog"
	"github.com/flowcore/engine/internal/catalog/builtin"
	"github.com/flowcore/engine/internal/credit"
	"github.com/flowcore/engine/internal/durablestep"
	"github.com/flowcore/engine/internal/objectstore"
	"github.com/flowcore/engine/internal/store/memstore"
	"github.com/flowcore/engine/pkg/workflow"
)

func newFullCatalog(t *testing.T) *catalog.Registry {
	reg := catalog.NewRegistry()
	require.NoError(t, reg.Register(builtin.NumDescriptor(), builtin.NewNumFactory()))
	require.NoError(t, reg.Register(builtin.AddDescriptor(), builtin.NewAddFactory()))
	require.NoError(t, reg.Register(builtin.SubDescriptor(), builtin.NewSubFactory()))
	require.NoError(t, reg.Register(builtin.MulDescriptor(), builtin.NewMulFactory()))
	require.NoError(t, reg.Register(builtin.DivDescriptor(), builtin.NewDivFactory()))
	require.NoError(t, reg.Register(builtin.ForkDescriptor(), builtin.NewForkFactory()))
	require.NoError(t, reg.Register(builtin.JoinDescriptor(), builtin.NewJoinFactory()))
	return reg
}

func newTestDriver(t *testing.T) (*Driver, *memstore.MemoryStore) {
	inv := NewInvoker(newFullCatalog(t), objectstore.NewMemoryStore(), catalog.Capabilities{}, nil)
	sched := NewScheduler(inv, durablestep.NewStore(), nil, 0)
	mem := memstore.NewMemoryStore()
	creditSvc := credit.NewInMemoryService(credit.Account{OrganizationID: "org-1", Balance: 1000})
	return NewDriver(sched, durablestep.NewStore(), creditSvc, mem, nil), mem
}

func binNode(id, typ string, b float64, repeated bool) *workflow.Node {
	n := addNode(id, repeated)
	n.Type = typ
	for _, p := range n.Inputs {
		if p.Name == "b" {
			p.Value = b
		}
	}
	return n
}

// Scenario 1: linear math.
func TestDriver_LinearMath(t *testing.T) {
	mul := binNode("mul", "mul", 2, false)
	w := &workflow.Workflow{
		ID:    "wf-linear",
		Nodes: []*workflow.Node{numNode("n5", 5), numNode("n3", 3), addNode("add", false), mul},
		Edges: []*workflow.Edge{
			{Source: "n5", SourceOutput: "value", Target: "add", TargetInput: "a"},
			{Source: "n3", SourceOutput: "value", Target: "add", TargetInput: "b"},
			{Source: "add", SourceOutput: "result", Target: "mul", TargetInput: "a"},
		},
	}

	driver, _ := newTestDriver(t)
	record, err := driver.Run(t.Context(), w, "org-1", "", nil, 10)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, record.Status)

	byID := summaryByID(record)
	addVal, _ := byID["add"].Outputs["result"].Scalar()
	mulVal, _ := byID["mul"].Outputs["result"].Scalar()
	assert.Equal(t, 8.0, addVal)
	assert.Equal(t, 16.0, mulVal)
}

// Scenario 2: division by zero blocks downstream.
func TestDriver_DivisionByZeroBlocksDownstream(t *testing.T) {
	add := binNode("add", "add", 5, false)
	w := &workflow.Workflow{
		ID:    "wf-div0",
		Nodes: []*workflow.Node{numNode("n10", 10), numNode("n0", 0), addNode("div", false), add},
		Edges: []*workflow.Edge{
			{Source: "n10", SourceOutput: "value", Target: "div", TargetInput: "a"},
			{Source: "n0", SourceOutput: "value", Target: "div", TargetInput: "b"},
			{Source: "div", SourceOutput: "result", Target: "add", TargetInput: "a"},
		},
	}
	w.Nodes[2].Type = "div"

	driver, _ := newTestDriver(t)
	record, err := driver.Run(t.Context(), w, "org-1", "", nil, 10)
	require.NoError(t, err)
	assert.Equal(t, StatusError, record.Status)

	byID := summaryByID(record)
	assert.Equal(t, ResultError, byID["div"].Status)
	assert.Equal(t, ResultSkipped, byID["add"].Status)
	assert.Equal(t, SkipUpstreamFailure, byID["add"].SkipReason)
	assert.Equal(t, []string{"div"}, byID["add"].BlockedBy)
	assert.Nil(t, byID["add"].Outputs)
}

// Scenario 3: cascading skip.
func TestDriver_CascadingSkip(t *testing.T) {
	add := binNode("add", "add", 5, false)
	mul := binNode("mul", "mul", 2, false)
	div := addNode("div", false)
	div.Type = "div"
	w := &workflow.Workflow{
		ID:    "wf-cascade",
		Nodes: []*workflow.Node{numNode("n10", 10), numNode("n0", 0), div, add, mul},
		Edges: []*workflow.Edge{
			{Source: "n10", SourceOutput: "value", Target: "div", TargetInput: "a"},
			{Source: "n0", SourceOutput: "value", Target: "div", TargetInput: "b"},
			{Source: "div", SourceOutput: "result", Target: "add", TargetInput: "a"},
			{Source: "add", SourceOutput: "result", Target: "mul", TargetInput: "a"},
		},
	}

	driver, _ := newTestDriver(t)
	record, err := driver.Run(t.Context(), w, "org-1", "", nil, 10)
	require.NoError(t, err)

	byID := summaryByID(record)
	assert.Equal(t, ResultSkipped, byID["mul"].Status)
	assert.Equal(t, SkipUpstreamFailure, byID["mul"].SkipReason)
	assert.Equal(t, []string{"add"}, byID["mul"].BlockedBy)
}

// Scenario 4: conditional fork, true branch.
func TestDriver_ConditionalForkTrueBranch(t *testing.T) {
	forkNode := &workflow.Node{
		ID:   "fork",
		Type: "fork",
		Inputs: []*workflow.InputPort{
			{Name: "condition", Value: true},
			{Name: "value", Value: 42.0},
		},
		Outputs: []*workflow.OutputPort{{Name: "true"}, {Name: "false"}},
	}
	trueAdd := binNode("trueAdd", "add", 0, false)
	falseAdd := binNode("falseAdd", "add", 0, false)
	w := &workflow.Workflow{
		ID:    "wf-fork",
		Nodes: []*workflow.Node{forkNode, trueAdd, falseAdd},
		Edges: []*workflow.Edge{
			{Source: "fork", SourceOutput: "true", Target: "trueAdd", TargetInput: "a"},
			{Source: "fork", SourceOutput: "false", Target: "falseAdd", TargetInput: "a"},
		},
	}

	driver, _ := newTestDriver(t)
	record, err := driver.Run(t.Context(), w, "org-1", "", nil, 10)
	require.NoError(t, err)

	byID := summaryByID(record)
	assert.Equal(t, ResultCompleted, byID["fork"].Status)
	assert.Equal(t, ResultCompleted, byID["trueAdd"].Status)
	assert.Equal(t, ResultSkipped, byID["falseAdd"].Status)
	assert.Equal(t, SkipConditionalBranch, byID["falseAdd"].SkipReason)
	assert.Equal(t, []string{"fork"}, byID["falseAdd"].BlockedBy)
}

// Scenario 5: fork-join — join runs with only the live branch's input.
func TestDriver_ForkJoin(t *testing.T) {
	forkNode := &workflow.Node{
		ID:   "fork",
		Type: "fork",
		Inputs: []*workflow.InputPort{
			{Name: "condition", Value: true},
			{Name: "value", Value: 42.0},
		},
		Outputs: []*workflow.OutputPort{{Name: "true"}, {Name: "false"}},
	}
	trueAdd := binNode("trueAdd", "add", 0, false)
	falseAdd := binNode("falseAdd", "add", 0, false)
	joinNode := &workflow.Node{
		ID:      "join",
		Type:    "join",
		Inputs:  []*workflow.InputPort{{Name: "a"}, {Name: "b"}},
		Outputs: []*workflow.OutputPort{{Name: "a"}, {Name: "b"}},
	}
	w := &workflow.Workflow{
		ID:    "wf-forkjoin",
		Nodes: []*workflow.Node{forkNode, trueAdd, falseAdd, joinNode},
		Edges: []*workflow.Edge{
			{Source: "fork", SourceOutput: "true", Target: "trueAdd", TargetInput: "a"},
			{Source: "fork", SourceOutput: "false", Target: "falseAdd", TargetInput: "a"},
			{Source: "trueAdd", SourceOutput: "result", Target: "join", TargetInput: "a"},
			{Source: "falseAdd", SourceOutput: "result", Target: "join", TargetInput: "b"},
		},
	}

	driver, _ := newTestDriver(t)
	record, err := driver.Run(t.Context(), w, "org-1", "", nil, 10)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, record.Status)

	byID := summaryByID(record)
	assert.Equal(t, ResultCompleted, byID["join"].Status)
	_, hasA := byID["join"].Outputs["a"]
	_, hasB := byID["join"].Outputs["b"]
	assert.True(t, hasA)
	assert.False(t, hasB)
}

// Scenario 6: diamond.
func TestDriver_Diamond(t *testing.T) {
	bNode := binNode("B", "add", 1, false)
	cNode := binNode("C", "add", 2, false)
	dNode := addNode("D", false)
	w := &workflow.Workflow{
		ID:    "wf-diamond",
		Nodes: []*workflow.Node{numNode("A", 10), bNode, cNode, dNode},
		Edges: []*workflow.Edge{
			{Source: "A", SourceOutput: "value", Target: "B", TargetInput: "a"},
			{Source: "A", SourceOutput: "value", Target: "C", TargetInput: "a"},
			{Source: "B", SourceOutput: "result", Target: "D", TargetInput: "a"},
			{Source: "C", SourceOutput: "result", Target: "D", TargetInput: "b"},
		},
	}

	driver, _ := newTestDriver(t)
	record, err := driver.Run(t.Context(), w, "org-1", "", nil, 10)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, record.Status)

	byID := summaryByID(record)
	dVal, _ := byID["D"].Outputs["result"].Scalar()
	assert.Equal(t, 23.0, dVal)
}

// Scenario 7: last-edge-wins fan-in.
func TestDriver_LastEdgeWins(t *testing.T) {
	add := binNode("add", "add", 100, false)
	w := &workflow.Workflow{
		ID:    "wf-lastwins",
		Nodes: []*workflow.Node{numNode("n1", 5), numNode("n2", 10), numNode("n3", 15), add},
		Edges: []*workflow.Edge{
			{Source: "n1", SourceOutput: "value", Target: "add", TargetInput: "a"},
			{Source: "n2", SourceOutput: "value", Target: "add", TargetInput: "a"},
			{Source: "n3", SourceOutput: "value", Target: "add", TargetInput: "a"},
		},
	}

	driver, _ := newTestDriver(t)
	record, err := driver.Run(t.Context(), w, "org-1", "", nil, 10)
	require.NoError(t, err)

	byID := summaryByID(record)
	v, _ := byID["add"].Outputs["result"].Scalar()
	assert.Equal(t, 115.0, v)
}

// Boundary: empty workflow.
func TestDriver_EmptyWorkflowCompletes(t *testing.T) {
	w := &workflow.Workflow{ID: "wf-empty"}
	driver, _ := newTestDriver(t)
	record, err := driver.Run(t.Context(), w, "org-1", "", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, record.Status)
	assert.Empty(t, record.NodeExecutions)
}

// Boundary: single isolated node with static inputs.
func TestDriver_SingleIsolatedNode(t *testing.T) {
	w := &workflow.Workflow{ID: "wf-single", Nodes: []*workflow.Node{numNode("n1", 7)}}
	driver, _ := newTestDriver(t)
	record, err := driver.Run(t.Context(), w, "org-1", "", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, record.Status)
	require.Len(t, record.NodeExecutions, 1)
	assert.Equal(t, ResultCompleted, record.NodeExecutions[0].Status)
}

// Boundary: a cycle produces a structural/cycle error and no node executions.
func TestDriver_CycleProducesErrorAndNoNodeExecutions(t *testing.T) {
	a := addNode("a", false)
	b := addNode("b", false)
	w := &workflow.Workflow{
		ID:    "wf-cycle",
		Nodes: []*workflow.Node{a, b},
		Edges: []*workflow.Edge{
			{Source: "a", SourceOutput: "result", Target: "b", TargetInput: "a"},
			{Source: "b", SourceOutput: "result", Target: "a", TargetInput: "a"},
		},
	}

	driver, _ := newTestDriver(t)
	record, err := driver.Run(t.Context(), w, "org-1", "", nil, 0)
	require.Error(t, err)
	assert.Equal(t, StatusError, record.Status)
	assert.Empty(t, record.NodeExecutions)
}

// Credit exhaustion short-circuits before any node runs.
func TestDriver_InsufficientCreditsExhausted(t *testing.T) {
	w := &workflow.Workflow{ID: "wf-credit", Nodes: []*workflow.Node{numNode("n1", 1)}}

	inv := NewInvoker(newFullCatalog(t), objectstore.NewMemoryStore(), catalog.Capabilities{}, nil)
	sched := NewScheduler(inv, durablestep.NewStore(), nil, 0)
	mem := memstore.NewMemoryStore()
	creditSvc := credit.NewInMemoryService(credit.Account{OrganizationID: "org-broke", Balance: 0})
	driver := NewDriver(sched, durablestep.NewStore(), creditSvc, mem, nil)

	record, err := driver.Run(t.Context(), w, "org-broke", "", nil, 100)
	require.NoError(t, err)
	assert.Equal(t, StatusExhausted, record.Status)
	assert.Empty(t, record.NodeExecutions)
}

// The final Record is persisted to the store exactly once, retrievable after Run returns.
func TestDriver_PersistsToStore(t *testing.T) {
	w := &workflow.Workflow{ID: "wf-persist", Nodes: []*workflow.Node{numNode("n1", 1)}}
	driver, mem := newTestDriver(t)
	record, err := driver.Run(t.Context(), w, "org-1", "", nil, 1)
	require.NoError(t, err)

	fetched, err := mem.Get(t.Context(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.Status, fetched.Status)
}

func summaryByID(record *Record) map[string]NodeSummary {
	out := make(map[string]NodeSummary, len(record.NodeExecutions))
	for _, s := range record.NodeExecutions {
		out[s.NodeID] = s
	}
	return out
}
