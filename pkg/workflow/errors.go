// Package workflow defines the public data model for workflows, nodes, edges
// and runtime values shared across the execution core.
package workflow

import "errors"

// Sentinel errors surfaced by workflow structure helpers.
var (
	ErrNodeNotFound     = errors.New("node not found")
	ErrPortNotFound     = errors.New("port not found")
	ErrDuplicateNodeID  = errors.New("duplicate node id")
	ErrUnknownEdgeNode  = errors.New("edge references unknown node")
	ErrUnknownEdgePort  = errors.New("edge references unknown port")
)

// ValidationError reports a single structural problem found while validating
// a workflow, with enough context to point a caller at the offending element.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
