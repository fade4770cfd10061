package executor

import (
	"github.com/flowcore/engine/pkg/workflow"
)

// Collect assembles the portName -> value map passed into a node's
// execute, following the order-sensitive rules of spec.md §4.2: static
// seed, then fan-in gather grouped by target input and walked in workflow
// declaration order, then a per-port finalize step. It is a pure function
// of its arguments — it never touches State.
func Collect(w *workflow.Workflow, nodeOutputs map[string]map[string]workflow.Value, nodeID string) (map[string]workflow.Value, error) {
	n, err := w.GetNode(nodeID)
	if err != nil {
		return nil, err
	}

	inputs := make(map[string]workflow.Value, len(n.Inputs))

	// 1. Static seed.
	for _, port := range n.Inputs {
		if port.Value != nil {
			inputs[port.Name] = workflow.FromInterface(port.Value)
		}
	}

	// 2. Fan-in gather, grouped by targetInput, edges walked in declaration order.
	gathered := make(map[string][]workflow.Value)
	gotAny := make(map[string]bool)
	for _, e := range w.Edges {
		if e.Target != nodeID {
			continue
		}
		outputs, ok := nodeOutputs[e.Source]
		if !ok {
			continue
		}
		v, ok := outputs[e.SourceOutput]
		if !ok {
			// Upstream completed but didn't publish this output: branch not taken.
			continue
		}
		gotAny[e.TargetInput] = true
		if items, isArray := v.Array(); isArray {
			gathered[e.TargetInput] = append(gathered[e.TargetInput], items...)
		} else {
			gathered[e.TargetInput] = append(gathered[e.TargetInput], v)
		}
	}

	// 3. Finalize per port.
	for port, values := range gathered {
		if !gotAny[port] {
			continue
		}
		inputPort, declared := n.InputPort(port)
		if declared && inputPort.Repeated {
			inputs[port] = workflow.NewArray(values)
			continue
		}
		// Last-writer-wins for non-repeated ports.
		inputs[port] = values[len(values)-1]
	}

	return inputs, nil
}
