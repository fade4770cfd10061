package executor

import (
	"testing"

	"github.com/flowcore/engine/pkg/workflow"
	"github.com/stretchr/testify/assert"
)

func TestAnalyze_NoIncomingEdgesIsExecutable(t *testing.T) {
	w := &workflow.Workflow{ID: "wf", Nodes: []*workflow.Node{numNode("n1", 1)}}
	snap := Snapshot{NodeOutputs: map[string]map[string]workflow.Value{}, Executed: map[string]struct{}{}, Skipped: map[string]struct{}{}, Errors: map[string]string{}}

	d := Analyze(w, snap, "n1")
	assert.True(t, d.Executable)
	assert.False(t, d.Decided)
}

func TestAnalyze_AlreadyDecided(t *testing.T) {
	w := &workflow.Workflow{ID: "wf", Nodes: []*workflow.Node{numNode("n1", 1)}}
	snap := Snapshot{Executed: map[string]struct{}{"n1": {}}, Skipped: map[string]struct{}{}, Errors: map[string]string{}, NodeOutputs: map[string]map[string]workflow.Value{}}

	d := Analyze(w, snap, "n1")
	assert.True(t, d.Decided)
}

func TestAnalyze_UpstreamErrorBlocksWithUpstreamFailure(t *testing.T) {
	add := addNode("add", false)
	w := &workflow.Workflow{
		ID:    "wf",
		Nodes: []*workflow.Node{numNode("div", 1), add},
		Edges: []*workflow.Edge{{Source: "div", SourceOutput: "value", Target: "add", TargetInput: "a"}},
	}
	snap := Snapshot{
		Executed:    map[string]struct{}{},
		Skipped:     map[string]struct{}{},
		Errors:      map[string]string{"div": "division by zero"},
		NodeOutputs: map[string]map[string]workflow.Value{},
	}

	d := Analyze(w, snap, "add")
	assert.False(t, d.Executable)
	assert.Equal(t, SkipUpstreamFailure, d.SkipReason)
	assert.Equal(t, []string{"div"}, d.BlockedBy)
}

func TestAnalyze_InactiveOutputIsConditionalBranch(t *testing.T) {
	fork := &workflow.Node{
		ID:      "fork",
		Type:    "fork",
		Outputs: []*workflow.OutputPort{{Name: "true"}, {Name: "false"}},
	}
	falseAdd := addNode("falseAdd", false)
	w := &workflow.Workflow{
		ID:    "wf",
		Nodes: []*workflow.Node{fork, falseAdd},
		Edges: []*workflow.Edge{{Source: "fork", SourceOutput: "false", Target: "falseAdd", TargetInput: "a"}},
	}
	snap := Snapshot{
		Executed:    map[string]struct{}{"fork": {}},
		Skipped:     map[string]struct{}{},
		Errors:      map[string]string{},
		NodeOutputs: map[string]map[string]workflow.Value{"fork": {"true": workflow.NewScalar(42.0)}},
	}

	d := Analyze(w, snap, "falseAdd")
	assert.False(t, d.Executable)
	assert.Equal(t, SkipConditionalBranch, d.SkipReason)
	assert.Equal(t, []string{"fork"}, d.BlockedBy)
}

func TestAnalyze_JoinRunsWithOneAvailableAndOneInactiveBranch(t *testing.T) {
	join := &workflow.Node{
		ID:   "join",
		Type: "join",
		Inputs: []*workflow.InputPort{
			{Name: "a"}, {Name: "b"},
		},
	}
	w := &workflow.Workflow{
		ID:    "wf",
		Nodes: []*workflow.Node{addNode("trueAdd", false), addNode("falseAdd", false), join},
		Edges: []*workflow.Edge{
			{Source: "trueAdd", SourceOutput: "result", Target: "join", TargetInput: "a"},
			{Source: "falseAdd", SourceOutput: "result", Target: "join", TargetInput: "b"},
		},
	}
	snap := Snapshot{
		Executed: map[string]struct{}{"trueAdd": {}, "falseAdd": {}},
		Skipped:  map[string]struct{}{},
		Errors:   map[string]string{},
		NodeOutputs: map[string]map[string]workflow.Value{
			"trueAdd":  {"result": workflow.NewScalar(43.0)},
			"falseAdd": {},
		},
	}

	d := Analyze(w, snap, "join")
	assert.True(t, d.Executable)
}

func TestAnalyze_WaitAllBlocksUntilEveryBranchAvailable(t *testing.T) {
	join := &workflow.Node{
		ID:           "join",
		Type:         "join",
		Inputs:       []*workflow.InputPort{{Name: "a"}, {Name: "b"}},
		JoinStrategy: workflow.JoinWaitAll,
	}
	w := &workflow.Workflow{
		ID:    "wf",
		Nodes: []*workflow.Node{addNode("trueAdd", false), addNode("falseAdd", false), join},
		Edges: []*workflow.Edge{
			{Source: "trueAdd", SourceOutput: "result", Target: "join", TargetInput: "a"},
			{Source: "falseAdd", SourceOutput: "result", Target: "join", TargetInput: "b"},
		},
	}
	snap := Snapshot{
		Executed: map[string]struct{}{"trueAdd": {}, "falseAdd": {}},
		Skipped:  map[string]struct{}{},
		Errors:   map[string]string{},
		NodeOutputs: map[string]map[string]workflow.Value{
			"trueAdd":  {"result": workflow.NewScalar(43.0)},
			"falseAdd": {},
		},
	}

	d := Analyze(w, snap, "join")
	assert.False(t, d.Executable)
	assert.Equal(t, SkipConditionalBranch, d.SkipReason)
}

func TestAnalyze_WaitNRequiresMinimumAvailableBranches(t *testing.T) {
	join := &workflow.Node{
		ID:               "join",
		Type:             "join",
		Inputs:           []*workflow.InputPort{{Name: "a"}, {Name: "b"}, {Name: "c"}},
		JoinStrategy:     workflow.JoinWaitN,
		JoinMinAvailable: 2,
	}
	w := &workflow.Workflow{
		ID:    "wf",
		Nodes: []*workflow.Node{addNode("n1", false), addNode("n2", false), addNode("n3", false), join},
		Edges: []*workflow.Edge{
			{Source: "n1", SourceOutput: "result", Target: "join", TargetInput: "a"},
			{Source: "n2", SourceOutput: "result", Target: "join", TargetInput: "b"},
			{Source: "n3", SourceOutput: "result", Target: "join", TargetInput: "c"},
		},
	}

	onlyOneAvailable := Snapshot{
		Executed: map[string]struct{}{"n1": {}, "n2": {}, "n3": {}},
		Skipped:  map[string]struct{}{},
		Errors:   map[string]string{},
		NodeOutputs: map[string]map[string]workflow.Value{
			"n1": {"result": workflow.NewScalar(1.0)},
			"n2": {},
			"n3": {},
		},
	}
	d := Analyze(w, onlyOneAvailable, "join")
	assert.False(t, d.Executable)

	twoAvailable := Snapshot{
		Executed: map[string]struct{}{"n1": {}, "n2": {}, "n3": {}},
		Skipped:  map[string]struct{}{},
		Errors:   map[string]string{},
		NodeOutputs: map[string]map[string]workflow.Value{
			"n1": {"result": workflow.NewScalar(1.0)},
			"n2": {"result": workflow.NewScalar(2.0)},
			"n3": {},
		},
	}
	d = Analyze(w, twoAvailable, "join")
	assert.True(t, d.Executable)
}
