// Package store defines the ExecutionStore abstraction spec.md §6 names:
// save(ExecutionRecord) → ExecutionRecord, persisted exactly once at the
// end of the Execution Driver's lifecycle.
package store

import (
	"context"

	"github.com/flowcore/engine/internal/executor"
)

// ExecutionStore persists a completed (or errored) Record.
type ExecutionStore interface {
	Save(ctx context.Context, record *executor.Record) (*executor.Record, error)
}
