package executor

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/flowcore/engine/internal/catalog"
	"github.com/flowcore/engine/internal/objectstore"
	"github.com/flowcore/engine/pkg/workflow"
)

// Invoker runs exactly one node and always returns a NodeExecutionResult —
// node-local failures never propagate out of it (spec.md §4.4, step 10).
type Invoker struct {
	Catalog      catalog.Catalog
	ObjectStore  objectstore.Store
	Capabilities catalog.Capabilities
	Entitled     func(n *workflow.Node, descriptor *catalog.TypeDescriptor) bool

	// Breaker, if set, short-circuits a node type after repeated errors.
	// Nil means no breaker is in effect.
	Breaker *Breaker
}

// NewInvoker builds an Invoker. entitled defaults to "always true" when nil.
func NewInvoker(cat catalog.Catalog, store objectstore.Store, caps catalog.Capabilities, entitled func(*workflow.Node, *catalog.TypeDescriptor) bool) *Invoker {
	if entitled == nil {
		entitled = func(*workflow.Node, *catalog.TypeDescriptor) bool { return true }
	}
	return &Invoker{Catalog: cat, ObjectStore: store, Capabilities: caps, Entitled: entitled}
}

// Invoke follows spec.md §4.4's ten steps.
func (inv *Invoker) Invoke(ctx context.Context, execCtx *Context, snap Snapshot, nodeID string, trigger any) NodeExecutionResult {
	n, err := execCtx.Workflow.GetNode(nodeID)
	if err != nil {
		return errorResult(nodeID, "NodeNotFound: "+err.Error())
	}

	descriptor, ok := inv.Catalog.Lookup(n.Type)
	if !ok {
		return errorResult(nodeID, "NodeTypeNotImplemented: "+n.Type)
	}

	if !inv.Breaker.Allow(n.Type) {
		return errorResult(nodeID, breakerOpenError(execCtx.ExecutionID, nodeID, n.Type).Error())
	}

	if descriptor.Subscription && !inv.Entitled(n, descriptor) {
		return errorResult(nodeID, "SubscriptionRequired: "+n.Type)
	}

	executable, err := inv.Catalog.Instantiate(n)
	if err != nil {
		return errorResult(nodeID, "NodeTypeNotImplemented: "+err.Error())
	}

	rawInputs, err := Collect(execCtx.Workflow, snap.NodeOutputs, nodeID)
	if err != nil {
		return errorResult(nodeID, err.Error())
	}
	transformedInputs, err := inv.dereferenceInputs(rawInputs)
	if err != nil {
		return errorResult(nodeID, "input transform failed: "+err.Error())
	}

	nc := &catalog.NodeContext{
		NodeID:         nodeID,
		WorkflowID:     execCtx.WorkflowID,
		ExecutionID:    execCtx.ExecutionID,
		OrganizationID: execCtx.OrganizationID,
		DeploymentID:   execCtx.DeploymentID,
		Inputs:         transformedInputs,
		Trigger:        trigger,
		Capabilities:   inv.Capabilities,
	}

	result, err := safeExecute(ctx, executable, nc)
	if err != nil {
		log.Debug().Str("node_id", nodeID).Str("node_type", n.Type).Err(err).Msg("node invocation raised an exception")
		inv.Breaker.RecordResult(n.Type, true)
		return errorResult(nodeID, err.Error())
	}

	switch result.Status {
	case catalog.ExecutionCompleted:
		outputs, err := inv.materializeOutputs(result.Outputs)
		if err != nil {
			inv.Breaker.RecordResult(n.Type, true)
			return errorResult(nodeID, "output transform failed: "+err.Error())
		}
		usage := result.Usage
		if usage == 0 {
			usage = descriptor.DefaultUsage
		}
		if usage == 0 {
			usage = 1
		}
		inv.Breaker.RecordResult(n.Type, false)
		return NodeExecutionResult{NodeID: nodeID, Status: ResultCompleted, Outputs: outputs, Usage: usage}
	case catalog.ExecutionError:
		inv.Breaker.RecordResult(n.Type, true)
		return NodeExecutionResult{NodeID: nodeID, Status: ResultError, Error: result.Error, Usage: result.Usage}
	default:
		inv.Breaker.RecordResult(n.Type, true)
		return errorResult(nodeID, fmt.Sprintf("node returned unknown status %q", result.Status))
	}
}

// safeExecute recovers a panicking Executable so a node-level bug cannot
// bring down the Level Scheduler's goroutine.
func safeExecute(ctx context.Context, executable catalog.Executable, nc *catalog.NodeContext) (result catalog.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return executable.Execute(ctx, nc)
}

func errorResult(nodeID, message string) NodeExecutionResult {
	return NodeExecutionResult{NodeID: nodeID, Status: ResultError, Error: message}
}

// dereferenceInputs resolves any ObjectReference-shaped input into its
// bytes, wrapped back into a Value so node code never sees the reference
// shape. Non-ref values pass through unchanged.
func (inv *Invoker) dereferenceInputs(inputs map[string]workflow.Value) (map[string]workflow.Value, error) {
	if inv.ObjectStore == nil {
		return inputs, nil
	}
	out := make(map[string]workflow.Value, len(inputs))
	for port, v := range inputs {
		resolved, err := inv.dereferenceValue(v)
		if err != nil {
			return nil, fmt.Errorf("port %s: %w", port, err)
		}
		out[port] = resolved
	}
	return out, nil
}

func (inv *Invoker) dereferenceValue(v workflow.Value) (workflow.Value, error) {
	if ref, ok := v.Ref(); ok {
		obj, err := inv.ObjectStore.ReadObject(ref)
		if err != nil {
			return workflow.Value{}, err
		}
		return workflow.NewObject(map[string]workflow.Value{
			"data":     workflow.NewScalar(obj.Data),
			"mimeType": workflow.NewScalar(obj.MimeType),
		}), nil
	}
	if items, ok := v.Array(); ok {
		resolved := make([]workflow.Value, len(items))
		for i, item := range items {
			r, err := inv.dereferenceValue(item)
			if err != nil {
				return workflow.Value{}, err
			}
			resolved[i] = r
		}
		return workflow.NewArray(resolved), nil
	}
	return v, nil
}

// materializeOutputs is the reverse transform: any output a node declares
// as in-memory bytes would, in a fuller catalog, be written back through
// the ObjectStore here. The builtin catalog's node types never produce
// such outputs, so this is currently the identity function, kept as the
// named boundary spec.md §4.4 step 8 calls for.
func (inv *Invoker) materializeOutputs(outputs map[string]workflow.Value) (map[string]workflow.Value, error) {
	return outputs, nil
}
