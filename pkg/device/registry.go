package device

import (
	"fmt"
	"sort"
	"sync"
)

// Factory creates a new accelerator instance.
type Factory func() Accelerator

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
	// Priority order for default selection (first registered wins).
	priority = []string{"cpu"}
)

// Register registers an accelerator factory under name, replacing any
// previous registration.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = f
}

// Unregister removes an accelerator from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the registered accelerator names, sorted.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select creates and initializes the named accelerator. An empty name picks
// the highest-priority registered accelerator.
func Select(name string) (Accelerator, error) {
	registryMu.RLock()
	f, ok := factories[name]
	if name == "" {
		for _, n := range priority {
			if f, ok = factories[n]; ok {
				name = n
				break
			}
		}
	}
	registryMu.RUnlock()

	if !ok {
		if name == "" {
			return nil, fmt.Errorf("select default accelerator: %w", ErrNoDevice)
		}
		return nil, fmt.Errorf("select accelerator %q: %w", name, ErrNoDevice)
	}

	acc := f()
	if err := acc.Init(); err != nil {
		return nil, fmt.Errorf("init accelerator %q: %w", name, err)
	}
	return acc, nil
}
