// Package catalog defines the node-type lookup contract the Node Invoker
// depends on. The node catalog's domain logic is deliberately opaque here:
// this package only fixes the abstract Executable.Execute(NodeContext)
// contract every node type must honor; internal/catalog/builtin supplies
// a handful of illustrative implementations.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/flowcore/engine/pkg/workflow"
)

// ErrTypeNotFound is returned by Registry.Instantiate for an unregistered
// type id; Catalog.Lookup reports a missing type through its bool result.
var ErrTypeNotFound = errors.New("node type not implemented")

// ExecutionStatus is the outcome tag an Executable reports.
type ExecutionStatus string

const (
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionError      ExecutionStatus = "error"
)

// Result is what Executable.Execute returns to the Node Invoker.
type Result struct {
	Status  ExecutionStatus
	Outputs map[string]workflow.Value
	Error   string
	Usage   float64
}

// NodeContext is built per invocation by the Node Invoker: identifiers,
// transformed inputs, trigger-specific payloads, and capability callbacks.
type NodeContext struct {
	NodeID         string
	WorkflowID     string
	ExecutionID    string
	OrganizationID string
	DeploymentID   string

	Inputs map[string]workflow.Value

	// Trigger carries the payload of whichever trigger started the
	// workflow (HTTP request, email, queue message, scheduled trigger), or
	// nil. Left as `any` because its shape is out of this core's scope
	// (spec.md §1).
	Trigger any

	Capabilities Capabilities
}

// Capabilities are the callback handles a node may use to reach outside
// the execution core: secrets, integrations, storage, queues, and
// recursive tool-calls into other nodes. All of these are external
// collaborators; the core only fixes their call shape.
type Capabilities struct {
	GetSecret     func(ctx context.Context, name string) (string, error)
	GetIntegration func(ctx context.Context, name string) (any, error)
	GetDatabase   func(ctx context.Context, handle string) (any, error)
	GetDataset    func(ctx context.Context, id string) (any, error)
	GetQueue      func(ctx context.Context, id string) (any, error)
	CallTool      func(ctx context.Context, name string, args map[string]workflow.Value) (workflow.Value, error)
}

// Executable is the abstract per-node-type behavior the Node Invoker runs.
type Executable interface {
	Execute(ctx context.Context, nc *NodeContext) (Result, error)
}

// RetryPolicy bounds how many times the Level Scheduler re-invokes a node
// type after a node-local error before giving up and recording it as
// ResultError. A zero-value RetryPolicy (MaxAttempts <= 1) means "never
// retry" — the type descriptor's default.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// TypeDescriptor describes one registered node type: its declared ports,
// the credit cost to assume during pre-flight estimation, whether it
// requires a paid subscription, and its retry policy on node-local error.
type TypeDescriptor struct {
	TypeID       string
	Inputs       []*workflow.InputPort
	Outputs      []*workflow.OutputPort
	DefaultUsage float64
	Subscription bool
	Retry        RetryPolicy
}

// Factory builds an Executable for one node instance. Node-specific
// configuration (parsed from the node's declared inputs, or from
// out-of-band config the catalog implementation keeps) is resolved here,
// not in the Node Invoker.
type Factory func(n *workflow.Node) (Executable, error)

// Catalog resolves a node type id to its descriptor and an instantiated
// Executable. Equivalent to spec.md §6's NodeCatalog abstract capability.
type Catalog interface {
	Lookup(typeID string) (*TypeDescriptor, bool)
	Instantiate(n *workflow.Node) (Executable, error)
}
