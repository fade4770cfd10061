// Package builtin ships illustrative node-type implementations exercising
// the Executable contract and the domain stack — not a claim that any
// particular node type is mandated by the execution core.
package builtin

import (
	"context"
	"fmt"

	"github.com/flowcore/engine/internal/catalog"
	"github.com/flowcore/engine/pkg/workflow"
)

func scalarFloat(v workflow.Value, name string) (float64, error) {
	raw, ok := v.Scalar()
	if !ok {
		return 0, fmt.Errorf("%s: expected a scalar value", name)
	}
	switch n := raw.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%s: expected a number, got %T", name, raw)
	}
}

func requiredNumber(inputs map[string]workflow.Value, port string) (float64, error) {
	v, ok := inputs[port]
	if !ok {
		return 0, fmt.Errorf("missing required input %q", port)
	}
	return scalarFloat(v, port)
}

// numExecutable publishes its configured static value on "value".
type numExecutable struct {
	value float64
}

func (n *numExecutable) Execute(_ context.Context, nc *catalog.NodeContext) (catalog.Result, error) {
	v, err := requiredNumber(nc.Inputs, "value")
	if err != nil {
		return catalog.Result{Status: catalog.ExecutionError, Error: fmt.Sprintf("num: %v", err)}, nil
	}
	return catalog.Result{
		Status:  catalog.ExecutionCompleted,
		Outputs: map[string]workflow.Value{"value": workflow.NewScalar(v)},
		Usage:   1,
	}, nil
}

// NewNumFactory builds the "num" node type: a constant source.
func NewNumFactory() catalog.Factory {
	return func(n *workflow.Node) (catalog.Executable, error) {
		return &numExecutable{}, nil
	}
}

// binaryOp is shared by add/sub/mul/div: two required inputs "a" and "b",
// one published output "result".
type binaryOp struct {
	apply func(a, b float64) (float64, error)
}

func (b *binaryOp) Execute(_ context.Context, nc *catalog.NodeContext) (catalog.Result, error) {
	a, err := requiredNumber(nc.Inputs, "a")
	if err != nil {
		return catalog.Result{Status: catalog.ExecutionError, Error: err.Error()}, nil
	}
	bb, err := requiredNumber(nc.Inputs, "b")
	if err != nil {
		return catalog.Result{Status: catalog.ExecutionError, Error: err.Error()}, nil
	}

	result, err := b.apply(a, bb)
	if err != nil {
		return catalog.Result{Status: catalog.ExecutionError, Error: err.Error()}, nil
	}

	return catalog.Result{
		Status:  catalog.ExecutionCompleted,
		Outputs: map[string]workflow.Value{"result": workflow.NewScalar(result)},
		Usage:   1,
	}, nil
}

// NewAddFactory builds the "add" node type: result = a + b.
func NewAddFactory() catalog.Factory {
	return func(n *workflow.Node) (catalog.Executable, error) {
		return &binaryOp{apply: func(a, b float64) (float64, error) { return a + b, nil }}, nil
	}
}

// NewSubFactory builds the "sub" node type: result = a - b.
func NewSubFactory() catalog.Factory {
	return func(n *workflow.Node) (catalog.Executable, error) {
		return &binaryOp{apply: func(a, b float64) (float64, error) { return a - b, nil }}, nil
	}
}

// NewMulFactory builds the "mul" node type: result = a * b.
func NewMulFactory() catalog.Factory {
	return func(n *workflow.Node) (catalog.Executable, error) {
		return &binaryOp{apply: func(a, b float64) (float64, error) { return a * b, nil }}, nil
	}
}

// NewDivFactory builds the "div" node type: result = a / b, erroring on a
// zero divisor rather than producing Inf/NaN.
func NewDivFactory() catalog.Factory {
	return func(n *workflow.Node) (catalog.Executable, error) {
		return &binaryOp{apply: func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return a / b, nil
		}}, nil
	}
}

// mathPorts returns the two required numeric inputs "a" and "b" shared by
// the binary math node types, followed by any extra ports given.
func mathPorts(extra ...*workflow.InputPort) []*workflow.InputPort {
	base := []*workflow.InputPort{{Name: "a", Type: "number", Required: true}, {Name: "b", Type: "number", Required: true}}
	return append(base, extra...)
}

func NumDescriptor() *catalog.TypeDescriptor {
	return &catalog.TypeDescriptor{
		TypeID:       "num",
		Inputs:       []*workflow.InputPort{{Name: "value", Type: "number", Required: true}},
		Outputs:      []*workflow.OutputPort{{Name: "value", Type: "number"}},
		DefaultUsage: 1,
	}
}

func binaryDescriptor(typeID string) *catalog.TypeDescriptor {
	return &catalog.TypeDescriptor{
		TypeID:       typeID,
		Inputs:       mathPorts(),
		Outputs:      []*workflow.OutputPort{{Name: "result", Type: "number"}},
		DefaultUsage: 1,
	}
}

func AddDescriptor() *catalog.TypeDescriptor { return binaryDescriptor("add") }
func SubDescriptor() *catalog.TypeDescriptor { return binaryDescriptor("sub") }
func MulDescriptor() *catalog.TypeDescriptor { return binaryDescriptor("mul") }
func DivDescriptor() *catalog.TypeDescriptor { return binaryDescriptor("div") }
