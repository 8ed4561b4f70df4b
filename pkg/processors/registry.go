package processors

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry maps node type tags to processors. Multiple tags may alias the
// same processor instance. Lookup failure is the caller's problem to report;
// the registry itself never fails hard.
type Registry struct {
	logger *slog.Logger

	mu         sync.RWMutex
	processors map[string]Processor
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:     logger.With("module", "registry"),
		processors: make(map[string]Processor),
	}
}

// Register binds a type tag to a processor, replacing any previous binding.
func (r *Registry) Register(nodeType string, processor Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.processors[nodeType] = processor
	r.logger.Debug("Registered node processor", "node_type", nodeType)
}

// Unregister removes a type tag binding and reports whether one existed.
func (r *Registry) Unregister(nodeType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, existed := r.processors[nodeType]
	delete(r.processors, nodeType)

	return existed
}

// Get resolves the processor for a type tag.
func (r *Registry) Get(nodeType string) (Processor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	processor, ok := r.processors[nodeType]
	if !ok {
		return nil, fmt.Errorf("no processor registered for node type %q", nodeType)
	}

	return processor, nil
}

// Has reports whether a type tag is registered.
func (r *Registry) Has(nodeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.processors[nodeType]

	return ok
}

// SupportedTypes returns all registered type tags, sorted.
func (r *Registry) SupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.processors))
	for nodeType := range r.processors {
		types = append(types, nodeType)
	}

	sort.Strings(types)

	return types
}
