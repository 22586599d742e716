package gitprovider

import (
	"fmt"
	"sort"
	"sync"
)

// Factory opens a Repository backend for the working copy at repoPath.
type Factory func(repoPath string, opts Options) (Repository, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a backend factory available by name.
// It is typically called from an init() function in the adapter package.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("gitprovider: duplicate registration for %q", name))
	}
	factories[name] = factory
}

// New opens repoPath with the named backend.
func New(name, repoPath string, opts Options) (Repository, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("gitprovider: unknown provider %q", name)
	}
	return factory(repoPath, opts)
}

// Available returns the names of all registered backends, sorted.
func Available() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
