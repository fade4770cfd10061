// Package objectstore provides the blob storage abstraction the Node
// Invoker uses to dereference ObjectReference values into bytes before a
// node runs, and to materialize bytes a node produced back into a
// reference afterward. The concrete backing store (S3, GCS, ...) is out
// of this core's scope (spec.md §1); this package ships only the
// in-memory implementation used standalone and in tests.
package objectstore

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/flowcore/engine/pkg/workflow"
)

// Object is the dereferenced form of an ObjectReference.
type Object struct {
	Data     []byte
	MimeType string
}

// Store is the abstract capability described in spec.md §6.
type Store interface {
	WriteObject(data []byte, mimeType, organizationID, executionID, filename string) (*workflow.ObjectReference, error)
	ReadObject(ref *workflow.ObjectReference) (*Object, error)
}

// MemoryStore is a process-local, thread-safe Store keyed by a generated
// uuid, sufficient for the standalone CLI and for tests that exercise the
// reference/dereference boundary without a real blob backend.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]Object)}
}

// WriteObject implements Store.
func (m *MemoryStore) WriteObject(data []byte, mimeType, organizationID, executionID, filename string) (*workflow.ObjectReference, error) {
	id := uuid.NewString()
	m.mu.Lock()
	m.objects[id] = Object{Data: data, MimeType: mimeType}
	m.mu.Unlock()

	return &workflow.ObjectReference{ID: id, MimeType: mimeType, Filename: filename}, nil
}

// ReadObject implements Store.
func (m *MemoryStore) ReadObject(ref *workflow.ObjectReference) (*Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[ref.ID]
	if !ok {
		return nil, fmt.Errorf("objectstore: object %s not found", ref.ID)
	}
	return &obj, nil
}
