package connector

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a Connector from its decrypted, backend-specific JSON config
type Factory func(config []byte) (Connector, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register adds a backend variant under its kind tag. Adding a backend means
// registering one factory; calling code dispatches only through the Connector
// interface and never changes.
func Register(kind string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[kind]; dup {
		panic("connector: duplicate registration for kind " + kind)
	}
	registry[kind] = factory
}

// Open constructs the Connector variant identified by kind
func Open(kind string, config []byte) (Connector, error) {
	registryMu.RLock()
	factory, ok := registry[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("connector: unknown kind %q", kind)
	}
	return factory(config)
}

// Kinds lists the registered backend variants, sorted
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
