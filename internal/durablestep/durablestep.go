// Package durablestep implements the abstract "replay with cached step
// results" primitive spec.md §6 depends on: durableStep(name, fn) → Result,
// memoizing fn's JSON-serializable return value keyed by (executionID,
// name) so a replayed execution short-circuits already-completed steps.
//
// Grounded on mbflow's ExecutionCheckpoint/CheckpointManager pair (the
// teacher's closest analog to a replay cache), generalized from
// per-wave whole-state snapshots to a per-step memo keyed by step name.
package durablestep

import (
	"encoding/json"
	"fmt"
	"sync"
)

// NonRetryableError marks a step failure the platform must not retry —
// the distinguished marker spec.md §6/§7 calls for. The Execution Driver
// applies it to planning failures (validation, cycle detection) and to a
// failed preload step.
type NonRetryableError struct {
	Cause error
}

func (e *NonRetryableError) Error() string { return e.Cause.Error() }
func (e *NonRetryableError) Unwrap() error { return e.Cause }

// NonRetryable wraps err as a NonRetryableError.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Cause: err}
}

// IsNonRetryable reports whether err (or something it wraps) is marked
// non-retryable.
func IsNonRetryable(err error) bool {
	var nr *NonRetryableError
	for err != nil {
		if e, ok := err.(*NonRetryableError); ok {
			nr = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return nr != nil
}

type stepKey struct {
	executionID string
	name        string
}

type stepRecord struct {
	raw []byte
	err error
}

// Store memoizes step results per execution, keyed by step name. A fresh
// Store should be used per process; a durable deployment would back this
// with the platform's actual replay substrate instead of this in-memory
// map, but the contract — same (executionID, name) replays without
// re-running fn — is identical.
type Store struct {
	mu    sync.Mutex
	steps map[stepKey]stepRecord
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{steps: make(map[stepKey]stepRecord)}
}

// Run executes fn under the durable step named by (executionID, name). On
// first invocation it runs fn, persists its error or JSON-encoded result,
// and returns fn's own return values; on replay (same executionID and name
// seen again) it returns the persisted error, or decodes the persisted
// JSON back into a T, without calling fn. The result must be
// JSON-serializable; a result that fails to marshal is reported as an
// error and not persisted.
func Run[T any](s *Store, executionID, name string, fn func() (T, error)) (T, error) {
	key := stepKey{executionID: executionID, name: name}

	s.mu.Lock()
	if rec, ok := s.steps[key]; ok {
		s.mu.Unlock()
		var out T
		if rec.err != nil {
			return out, rec.err
		}
		if err := json.Unmarshal(rec.raw, &out); err != nil {
			return out, fmt.Errorf("durablestep: replaying %q: %w", name, err)
		}
		return out, nil
	}
	s.mu.Unlock()

	result, err := fn()
	if err != nil {
		s.mu.Lock()
		s.steps[key] = stepRecord{err: err}
		s.mu.Unlock()
		return result, err
	}

	raw, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		return result, fmt.Errorf("durablestep: step %q returned a non-serializable result: %w", name, marshalErr)
	}

	s.mu.Lock()
	s.steps[key] = stepRecord{raw: raw}
	s.mu.Unlock()

	return result, nil
}

// Forget clears every memoized step for an execution, e.g. once it has
// finalized and its replay window has closed.
func (s *Store) Forget(executionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.steps {
		if key.executionID == executionID {
			delete(s.steps, key)
		}
	}
}
