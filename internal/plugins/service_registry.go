package plugins

import (
	"sync"
)

// DefaultServiceRegistry is the in-process service registry shared between
// the core services and plugins. Plugins register services during Init and
// the storage layer resolves them lazily at call time, so lookups must be
// safe against concurrent registration.
type DefaultServiceRegistry struct {
	mu       sync.RWMutex
	services map[string]any
}

func NewServiceRegistry() *DefaultServiceRegistry {
	return &DefaultServiceRegistry{
		services: make(map[string]any),
	}
}

// Register stores a service under the given name, replacing any previous
// registration.
func (r *DefaultServiceRegistry) Register(name string, service any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[name] = service
}

// Get returns the service registered under the given name, or nil.
func (r *DefaultServiceRegistry) Get(name string) any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.services[name]
}
