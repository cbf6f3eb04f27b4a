package process

import (
	"fmt"
	"sync"
)

// Registry maps processor names to their descriptors.
type Registry struct {
	mu         sync.RWMutex
	processors map[string]ProcessorInfo
	order      []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{processors: make(map[string]ProcessorInfo)}
}

// Register adds a processor. Names must be unique.
func (r *Registry) Register(p ProcessorInfo) error {
	if p.Name == "" {
		return fmt.Errorf("processor name cannot be empty")
	}
	if p.Process == nil && p.PostProcess == nil {
		return fmt.Errorf("processor %s has nothing to run", p.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.processors[p.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProcessor, p.Name)
	}
	r.processors[p.Name] = p
	r.order = append(r.order, p.Name)
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(p ProcessorInfo) {
	if err := r.Register(p); err != nil {
		panic(err)
	}
}

// Get returns the processor registered under name.
func (r *Registry) Get(name string) (ProcessorInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[name]
	return p, ok
}

// Names returns processor names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// List resolves names into an ordered processor list.
func (r *Registry) List(names ...string) ([]ProcessorInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ProcessorInfo, 0, len(names))
	for _, name := range names {
		p, ok := r.processors[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProcessor, name)
		}
		out = append(out, p)
	}
	return out, nil
}
