package catalog

import (
	"fmt"
	"sync"

	"github.com/flowcore/engine/pkg/workflow"
)

// Registry is the thread-safe, in-memory Catalog implementation used by
// both the standalone CLI and tests: a type id maps to a descriptor plus
// the Factory that builds its Executable.
type Registry struct {
	mu    sync.RWMutex
	types map[string]registeredType
}

type registeredType struct {
	descriptor *TypeDescriptor
	factory    Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]registeredType)}
}

// Register adds a node type. Re-registering a type id overwrites it.
func (r *Registry) Register(descriptor *TypeDescriptor, factory Factory) error {
	if descriptor == nil || descriptor.TypeID == "" {
		return fmt.Errorf("catalog: descriptor must have a non-empty type id")
	}
	if factory == nil {
		return fmt.Errorf("catalog: factory cannot be nil for type %s", descriptor.TypeID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[descriptor.TypeID] = registeredType{descriptor: descriptor, factory: factory}
	return nil
}

// Lookup implements Catalog.
func (r *Registry) Lookup(typeID string) (*TypeDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.types[typeID]
	if !ok {
		return nil, false
	}
	return rt.descriptor, true
}

// Instantiate implements Catalog.
func (r *Registry) Instantiate(n *workflow.Node) (Executable, error) {
	r.mu.RLock()
	rt, ok := r.types[n.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTypeNotFound, n.Type)
	}
	return rt.factory(n)
}

// List returns every registered type id.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.types))
	for id := range r.types {
		ids = append(ids, id)
	}
	return ids
}
