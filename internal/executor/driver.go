package executor

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/flowcore/engine/internal/credit"
	"github.com/flowcore/engine/internal/durablestep"
	"github.com/flowcore/engine/internal/monitor"
	"github.com/flowcore/engine/internal/store"
	"github.com/flowcore/engine/pkg/workflow"
)

// Driver runs one execution of a workflow start to finish: submit,
// initialise, credit pre-flight, preload, run, persist, final update. It is
// one-shot — a Driver is not reused across executions, a new ExecutionID is
// minted per Run call.
type Driver struct {
	Scheduler     *Scheduler
	Steps         *durablestep.Store
	CreditService credit.Service
	Store         store.ExecutionStore
	Monitor       monitor.Service
}

// NewDriver builds a Driver from its collaborators.
func NewDriver(scheduler *Scheduler, steps *durablestep.Store, creditService credit.Service, st store.ExecutionStore, mon monitor.Service) *Driver {
	return &Driver{Scheduler: scheduler, Steps: steps, CreditService: creditService, Store: st, Monitor: mon}
}

// Run executes w once for organizationID, estimating its cost at
// costEstimate credits before any node runs. It follows spec.md §4.7's
// seven-step lifecycle and always returns a Record, even when the
// execution never reached the run step — an exhausted or structurally
// invalid workflow still produces a persisted, externally visible result.
func (d *Driver) Run(ctx context.Context, w *workflow.Workflow, organizationID, deploymentID string, trigger any, costEstimate float64) (*Record, error) {
	executionID := uuid.NewString()

	record := &Record{
		ID:             executionID,
		WorkflowID:     w.ID,
		DeploymentID:   deploymentID,
		OrganizationID: organizationID,
		Status:         StatusSubmitted,
	}

	plan, err := durablestep.Run(d.Steps, executionID, "initialise", func() (*Plan, error) {
		return PlanWorkflow(w)
	})
	if err != nil {
		return d.finalizeWithError(ctx, record, durablestep.NonRetryable(err))
	}

	execCtx := NewContext(w, organizationID, executionID, deploymentID, plan)

	sufficient, err := durablestep.Run(d.Steps, executionID, "credit-preflight", func() (bool, error) {
		if d.CreditService == nil {
			return true, nil
		}
		return d.CreditService.HasEnoughCredits(ctx, organizationID, costEstimate)
	})
	if err != nil {
		return d.finalizeWithError(ctx, record, err)
	}
	if !sufficient {
		record.Status = StatusExhausted
		record.Error = "insufficient credits for estimated cost"
		return d.persist(ctx, record)
	}

	_, err = durablestep.Run(d.Steps, executionID, "preload", func() (struct{}, error) {
		return struct{}{}, d.preloadResources(w)
	})
	if err != nil {
		return d.finalizeWithError(ctx, record, durablestep.NonRetryable(err))
	}

	state := NewState(executionID, w.ID)

	record.Status = StatusExecuting
	if d.Monitor != nil {
		d.Monitor.SendUpdate(executionID, record)
	}

	if err := d.Scheduler.Run(ctx, execCtx, state, trigger); err != nil {
		return d.finalizeWithError(ctx, record, err)
	}

	record.NodeExecutions = BuildNodeExecutions(execCtx, state)
	record.Status = ComputeStatus(execCtx, state.Snapshot())
	if record.Status == StatusError {
		record.Error = fmt.Sprintf("%d node(s) failed", state.ErrorCount())
	}

	if d.CreditService != nil {
		if err := d.CreditService.RecordUsage(ctx, organizationID, state.TotalUsage()); err != nil {
			log.Warn().Str("execution_id", executionID).Err(err).Msg("failed to record credit usage")
		}
	}

	return d.persist(ctx, record)
}

// preloadResources is the named boundary spec.md §4.7 calls for between
// credit pre-flight and running levels: a fuller deployment would warm
// caches or validate external resource handles here before any node runs.
// The builtin catalog's node types need nothing preloaded, so this is
// currently a no-op.
func (d *Driver) preloadResources(w *workflow.Workflow) error {
	return nil
}

func (d *Driver) finalizeWithError(ctx context.Context, record *Record, err error) (*Record, error) {
	record.Status = StatusError
	record.Error = err.Error()
	saved, saveErr := d.persist(ctx, record)
	if saveErr != nil {
		return record, saveErr
	}
	return saved, err
}

func (d *Driver) persist(ctx context.Context, record *Record) (*Record, error) {
	if d.Monitor != nil {
		d.Monitor.SendUpdate(record.ID, record)
	}
	if d.Store == nil {
		return record, nil
	}
	saved, err := durablestep.Run(d.Steps, record.ID, "persist", func() (*Record, error) {
		return d.Store.Save(ctx, record)
	})
	if err != nil {
		return record, fmt.Errorf("persist execution %s: %w", record.ID, err)
	}
	return saved, nil
}
