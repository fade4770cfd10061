package executor

import (
	"fmt"
	"sync"
	"time"

	execerrors "github.com/flowcore/engine/internal/executor/errors"
)

// Breaker trips per node type after Threshold consecutive node-local errors
// seen within Window, and refuses further invocations of that type with a
// non-retryable NodeError until Cooldown elapses. Grounded on mbflow's
// circuit_breaker.go; purely a Node Invoker concern — it never influences
// planning, the Skip Analyzer, or status computation.
type Breaker struct {
	Threshold int
	Window    time.Duration
	Cooldown  time.Duration

	mu    sync.Mutex
	types map[string]*breakerState
}

type breakerState struct {
	consecutiveFailures int
	windowStart         time.Time
	trippedUntil        time.Time
}

// NewBreaker builds a Breaker. threshold <= 0 disables tripping entirely
// (Allow always reports true).
func NewBreaker(threshold int, window, cooldown time.Duration) *Breaker {
	return &Breaker{
		Threshold: threshold,
		Window:    window,
		Cooldown:  cooldown,
		types:     make(map[string]*breakerState),
	}
}

// Allow reports whether nodeType may be invoked right now.
func (b *Breaker) Allow(nodeType string) bool {
	if b == nil || b.Threshold <= 0 {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.types[nodeType]
	if !ok {
		return true
	}
	return b.now().After(st.trippedUntil)
}

// RecordResult updates nodeType's consecutive-failure streak. A success
// resets the streak; a failure within the current window extends it and
// trips the breaker once Threshold is reached.
func (b *Breaker) RecordResult(nodeType string, failed bool) {
	if b == nil || b.Threshold <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.types[nodeType]
	if !ok {
		st = &breakerState{}
		b.types[nodeType] = st
	}

	now := b.now()
	if !failed {
		st.consecutiveFailures = 0
		return
	}

	if st.windowStart.IsZero() || now.Sub(st.windowStart) > b.Window {
		st.windowStart = now
		st.consecutiveFailures = 0
	}
	st.consecutiveFailures++
	if st.consecutiveFailures >= b.Threshold {
		st.trippedUntil = now.Add(b.Cooldown)
	}
}

func (b *Breaker) now() time.Time { return time.Now() }

// breakerOpenError builds the non-retryable NodeError returned while a
// node type's breaker is open.
func breakerOpenError(executionID, nodeID, nodeType string) *execerrors.NodeError {
	return execerrors.NewNodeError(executionID, nodeID, nodeType,
		fmt.Sprintf("circuit breaker open for node type %q", nodeType), nil, false)
}
