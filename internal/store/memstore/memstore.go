// Package memstore is a process-local ExecutionStore, grounded on mbflow's
// own stdlib-only storage.MemoryStore (map-backed, mutex-guarded, keyed by
// ID) — trimmed to the one entity this core persists, an execution record.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/flowcore/engine/internal/executor"
	"github.com/flowcore/engine/internal/store"
)

var _ store.ExecutionStore = (*MemoryStore)(nil)

// MemoryStore keeps every saved Record in memory, keyed by execution ID.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*executor.Record
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*executor.Record)}
}

// Save implements store.ExecutionStore.
func (s *MemoryStore) Save(_ context.Context, record *executor.Record) (*executor.Record, error) {
	if record.ID == "" {
		return nil, fmt.Errorf("memstore: record has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *record
	s.records[record.ID] = &cp
	return &cp, nil
}

// Get retrieves a previously saved Record by execution ID.
func (s *MemoryStore) Get(_ context.Context, executionID string) (*executor.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[executionID]
	if !ok {
		return nil, fmt.Errorf("memstore: execution %s not found", executionID)
	}
	cp := *r
	return &cp, nil
}
