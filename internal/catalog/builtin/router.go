package builtin

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/flowcore/engine/internal/catalog"
	"github.com/flowcore/engine/pkg/workflow"
)

// conditionalRouterExecutable evaluates an expr-lang boolean expression
// against its merged inputs and republishes "value" on "match" or
// "noMatch" accordingly — the same expr-lang sublanguage mbflow's edge
// conditions use, here exposed as a node so a workflow can branch on
// richer predicates than a single boolean input.
type conditionalRouterExecutable struct {
	program *vm.Program
}

func (r *conditionalRouterExecutable) Execute(_ context.Context, nc *catalog.NodeContext) (catalog.Result, error) {
	value, ok := nc.Inputs["value"]
	if !ok {
		return catalog.Result{Status: catalog.ExecutionError, Error: "conditional-router: missing required input \"value\""}, nil
	}

	env := make(map[string]any, len(nc.Inputs))
	for name, v := range nc.Inputs {
		env[name] = v.Interface()
	}

	out, err := expr.Run(r.program, env)
	if err != nil {
		return catalog.Result{Status: catalog.ExecutionError, Error: fmt.Sprintf("conditional-router: %v", err)}, nil
	}
	matched, ok := out.(bool)
	if !ok {
		return catalog.Result{Status: catalog.ExecutionError, Error: "conditional-router: condition did not evaluate to a boolean"}, nil
	}

	outputs := map[string]workflow.Value{}
	if matched {
		outputs["match"] = value
	} else {
		outputs["noMatch"] = value
	}
	return catalog.Result{Status: catalog.ExecutionCompleted, Outputs: outputs, Usage: 1}, nil
}

// NewConditionalRouterFactory builds the "conditional-router" node type.
// The condition expression is read from the node's "condition" config
// input, which must carry a static string value, and compiled once at
// instantiation.
func NewConditionalRouterFactory() catalog.Factory {
	return func(n *workflow.Node) (catalog.Executable, error) {
		port, ok := n.InputPort("condition")
		if !ok {
			return nil, fmt.Errorf("conditional-router: node %s has no \"condition\" input port", n.ID)
		}
		condition, ok := port.Value.(string)
		if !ok || condition == "" {
			return nil, fmt.Errorf("conditional-router: node %s requires a static string \"condition\"", n.ID)
		}
		program, err := expr.Compile(condition, expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("conditional-router: failed to compile condition %q: %w", condition, err)
		}
		return &conditionalRouterExecutable{program: program}, nil
	}
}

func ConditionalRouterDescriptor() *catalog.TypeDescriptor {
	return &catalog.TypeDescriptor{
		TypeID: "conditional-router",
		Inputs: []*workflow.InputPort{
			{Name: "condition", Type: "string", Required: true, Hidden: true},
			{Name: "value", Type: "any", Required: true},
		},
		Outputs:      []*workflow.OutputPort{{Name: "match", Type: "any"}, {Name: "noMatch", Type: "any"}},
		DefaultUsage: 1,
	}
}
