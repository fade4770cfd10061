package builtin

import (
	"context"
	"fmt"

	"github.com/flowcore/engine/internal/catalog"
	"github.com/flowcore/engine/pkg/workflow"
)

// forkExecutable publishes its "value" input on whichever of "true"/"false"
// its "condition" input selects; the other output is left unpublished, so
// downstream edges on that branch are classified inactive by the Skip
// Analyzer (conditional branch not taken).
type forkExecutable struct{}

func (f *forkExecutable) Execute(_ context.Context, nc *catalog.NodeContext) (catalog.Result, error) {
	condVal, ok := nc.Inputs["condition"]
	if !ok {
		return catalog.Result{Status: catalog.ExecutionError, Error: "fork: missing required input \"condition\""}, nil
	}
	condRaw, _ := condVal.Scalar()
	cond, ok := condRaw.(bool)
	if !ok {
		return catalog.Result{Status: catalog.ExecutionError, Error: fmt.Sprintf("fork: condition must be a boolean, got %T", condRaw)}, nil
	}

	value, ok := nc.Inputs["value"]
	if !ok {
		return catalog.Result{Status: catalog.ExecutionError, Error: "fork: missing required input \"value\""}, nil
	}

	outputs := map[string]workflow.Value{}
	if cond {
		outputs["true"] = value
	} else {
		outputs["false"] = value
	}

	return catalog.Result{Status: catalog.ExecutionCompleted, Outputs: outputs, Usage: 1}, nil
}

// NewForkFactory builds the "fork" node type.
func NewForkFactory() catalog.Factory {
	return func(n *workflow.Node) (catalog.Executable, error) {
		return &forkExecutable{}, nil
	}
}

func ForkDescriptor() *catalog.TypeDescriptor {
	return &catalog.TypeDescriptor{
		TypeID: "fork",
		Inputs: []*workflow.InputPort{
			{Name: "condition", Type: "boolean", Required: true},
			{Name: "value", Type: "any", Required: true},
		},
		Outputs:      []*workflow.OutputPort{{Name: "true", Type: "any"}, {Name: "false", Type: "any"}},
		DefaultUsage: 1,
	}
}

// joinExecutable passes through whichever of its declared inputs are
// present; it relies entirely on the Skip Analyzer's conditional-branch
// asymmetry to be allowed to run with a partial input set.
type joinExecutable struct {
	ports []string
}

func (j *joinExecutable) Execute(_ context.Context, nc *catalog.NodeContext) (catalog.Result, error) {
	outputs := make(map[string]workflow.Value, len(j.ports))
	for _, port := range j.ports {
		if v, ok := nc.Inputs[port]; ok {
			outputs[port] = v
		}
	}
	return catalog.Result{Status: catalog.ExecutionCompleted, Outputs: outputs, Usage: 1}, nil
}

// NewJoinFactory builds the "join" node type; its declared input ports
// determine which output names it may pass through.
func NewJoinFactory() catalog.Factory {
	return func(n *workflow.Node) (catalog.Executable, error) {
		ports := make([]string, len(n.Inputs))
		for i, p := range n.Inputs {
			ports[i] = p.Name
		}
		return &joinExecutable{ports: ports}, nil
	}
}

func JoinDescriptor() *catalog.TypeDescriptor {
	return &catalog.TypeDescriptor{
		TypeID: "join",
		Inputs: []*workflow.InputPort{
			{Name: "a", Type: "any"},
			{Name: "b", Type: "any"},
		},
		Outputs:      []*workflow.OutputPort{{Name: "a", Type: "any"}, {Name: "b", Type: "any"}},
		DefaultUsage: 1,
	}
}
