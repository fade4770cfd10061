package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flowcore/engine/internal/catalog"
	"github.com/flowcore/engine/internal/durablestep"
	"github.com/flowcore/engine/internal/monitor"
)

// maxRetryBackoff caps the exponential backoff a node type's RetryPolicy
// can request, so a misconfigured policy cannot stall a level indefinitely.
const maxRetryBackoff = 30 * time.Second

// Scheduler runs a Plan's levels in order, bounded-concurrent within each
// level, grounded on mbflow's DAGExecutor.executeWave — a semaphore-gated
// WaitGroup per wave — generalized from "wave of nodes" to "level of node
// IDs" and from a single execution state struct to the Collector/Analyzer/
// Invoker/State pipeline this core uses.
type Scheduler struct {
	Invoker          *Invoker
	Steps            *durablestep.Store
	Monitor          monitor.Service
	MaxParallelNodes int
}

// NewScheduler builds a Scheduler. maxParallelNodes <= 0 means "unbounded
// within a level".
func NewScheduler(invoker *Invoker, steps *durablestep.Store, mon monitor.Service, maxParallelNodes int) *Scheduler {
	return &Scheduler{Invoker: invoker, Steps: steps, Monitor: mon, MaxParallelNodes: maxParallelNodes}
}

// Run executes every level of execCtx.Levels in order against state,
// mutating it as each level completes. Within a level, the Skip Analyzer
// first classifies every node against one snapshot: nodes already decided
// are left as they are, nodes to skip get a skipped result without any
// invocation, and the rest run concurrently, bounded by MaxParallelNodes,
// each wrapped in a durable step keyed by the node ID so a replay of this
// execution ID does not re-invoke an already-completed node. Results are
// applied to state in the level's declared order, never concurrently with
// each other.
func (sch *Scheduler) Run(ctx context.Context, execCtx *Context, state *State, trigger any) error {
	for _, level := range execCtx.Levels {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("execution cancelled before level: %w", err)
		}

		results := make([]NodeExecutionResult, len(level))
		toInvoke := make([]int, 0, len(level))

		snap := state.Snapshot()
		for i, nodeID := range level {
			decision := Analyze(execCtx.Workflow, snap, nodeID)
			if decision.Decided {
				continue
			}
			if !decision.Executable {
				results[i] = NodeExecutionResult{
					NodeID:     nodeID,
					Status:     ResultSkipped,
					SkipReason: decision.SkipReason,
					BlockedBy:  decision.BlockedBy,
				}
				continue
			}
			toInvoke = append(toInvoke, i)
		}

		if err := sch.invokeLevel(ctx, execCtx, snap, level, toInvoke, results, trigger); err != nil {
			return err
		}

		for _, result := range results {
			if result.NodeID == "" {
				continue
			}
			state.Apply(result)
		}

		if sch.Monitor != nil {
			sch.Monitor.SendUpdate(execCtx.ExecutionID, &Record{
				ID:             execCtx.ExecutionID,
				WorkflowID:     execCtx.WorkflowID,
				OrganizationID: execCtx.OrganizationID,
				DeploymentID:   execCtx.DeploymentID,
				Status:         ComputeStatus(execCtx, state.Snapshot()),
				NodeExecutions: BuildNodeExecutions(execCtx, state),
			})
		}
	}
	return nil
}

func (sch *Scheduler) invokeLevel(ctx context.Context, execCtx *Context, snap Snapshot, level []string, toInvoke []int, results []NodeExecutionResult, trigger any) error {
	if len(toInvoke) == 0 {
		return nil
	}

	limit := sch.MaxParallelNodes
	if limit <= 0 {
		limit = len(toInvoke)
	}
	semaphore := make(chan struct{}, limit)

	var wg sync.WaitGroup
	for _, idx := range toInvoke {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				results[idx] = errorResult(level[idx], "execution cancelled: "+ctx.Err().Error())
				return
			default:
			}

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			nodeID := level[idx]
			result, err := durablestep.Run(sch.Steps, execCtx.ExecutionID, "node:"+nodeID, func() (NodeExecutionResult, error) {
				return sch.invokeWithRetry(ctx, execCtx, snap, nodeID, trigger), nil
			})
			if err != nil {
				log.Warn().Str("execution_id", execCtx.ExecutionID).Str("node_id", nodeID).Err(err).Msg("durable step failed")
				results[idx] = errorResult(nodeID, err.Error())
				return
			}
			results[idx] = result
		}(idx)
	}
	wg.Wait()

	return nil
}

// invokeWithRetry runs nodeID once, then re-runs it on a node-local error up
// to its type's RetryPolicy.MaxAttempts, sleeping an exponentially growing,
// capped backoff between attempts. This sits entirely inside the durable
// step's thunk in invokeLevel, so the whole retried sequence replays
// atomically — a replay never re-triggers the retries, only returns the
// final memoized result.
func (sch *Scheduler) invokeWithRetry(ctx context.Context, execCtx *Context, snap Snapshot, nodeID string, trigger any) NodeExecutionResult {
	policy := sch.retryPolicyFor(execCtx, nodeID)

	result := sch.Invoker.Invoke(ctx, execCtx, snap, nodeID, trigger)
	for attempt := 1; result.Status == ResultError && attempt < policy.MaxAttempts; attempt++ {
		backoff := policy.Backoff << uint(attempt-1)
		if backoff <= 0 || backoff > maxRetryBackoff {
			backoff = maxRetryBackoff
		}
		log.Debug().Str("execution_id", execCtx.ExecutionID).Str("node_id", nodeID).
			Int("attempt", attempt+1).Dur("backoff", backoff).Msg("retrying node after error")

		select {
		case <-ctx.Done():
			return result
		case <-time.After(backoff):
		}
		result = sch.Invoker.Invoke(ctx, execCtx, snap, nodeID, trigger)
	}
	return result
}

func (sch *Scheduler) retryPolicyFor(execCtx *Context, nodeID string) catalog.RetryPolicy {
	n, err := execCtx.Workflow.GetNode(nodeID)
	if err != nil || sch.Invoker == nil || sch.Invoker.Catalog == nil {
		return catalog.RetryPolicy{MaxAttempts: 1}
	}
	descriptor, ok := sch.Invoker.Catalog.Lookup(n.Type)
	if !ok || descriptor.Retry.MaxAttempts < 1 {
		return catalog.RetryPolicy{MaxAttempts: 1}
	}
	return descriptor.Retry
}
