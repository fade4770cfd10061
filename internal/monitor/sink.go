package monitor

import (
	"sync"

	"github.com/flowcore/engine/internal/executor"
)

// sinkEvent is one buffered write, paired with the session it was sent for.
type sinkEvent struct {
	SessionID string
	Record    *executor.Record
}

// BatchedMemorySink buffers events until BatchSize is reached, then flushes
// them to Flush in one call, mirroring mbflow's batched ClickHouse logger
// without pulling in a ClickHouse driver — a fuller deployment would swap
// Flush for a real batch insert. Safe for concurrent WriteEvent calls.
type BatchedMemorySink struct {
	BatchSize int
	Flush     func(batch []*executor.Record)

	mu      sync.Mutex
	pending []sinkEvent
}

// NewBatchedMemorySink builds a BatchedMemorySink. batchSize <= 0 means
// "never auto-flush" — call Drain explicitly.
func NewBatchedMemorySink(batchSize int, flush func(batch []*executor.Record)) *BatchedMemorySink {
	return &BatchedMemorySink{BatchSize: batchSize, Flush: flush}
}

// WriteEvent implements EventSink.
func (s *BatchedMemorySink) WriteEvent(sessionID string, record *executor.Record) error {
	s.mu.Lock()
	s.pending = append(s.pending, sinkEvent{SessionID: sessionID, Record: record})
	shouldFlush := s.BatchSize > 0 && len(s.pending) >= s.BatchSize
	var batch []sinkEvent
	if shouldFlush {
		batch = s.pending
		s.pending = nil
	}
	s.mu.Unlock()

	if shouldFlush {
		s.flush(batch)
	}
	return nil
}

// Drain flushes whatever is currently buffered, regardless of BatchSize.
func (s *BatchedMemorySink) Drain() {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()
	if len(batch) > 0 {
		s.flush(batch)
	}
}

// Pending reports how many events are currently buffered, unflushed.
func (s *BatchedMemorySink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *BatchedMemorySink) flush(batch []sinkEvent) {
	if s.Flush == nil {
		return
	}
	records := make([]*executor.Record, len(batch))
	for i, e := range batch {
		records[i] = e.Record
	}
	s.Flush(records)
}
