package evo

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var ErrReplicatorExists = errors.New("replicator already registered")

// ReplicatorFactory builds a replicator from validated params.
type ReplicatorFactory func(Params) Replicator

var replicatorRegistry = struct {
	mu sync.RWMutex
	m  map[string]ReplicatorFactory
}{
	m: builtinReplicators(),
}

func builtinReplicators() map[string]ReplicatorFactory {
	return map[string]ReplicatorFactory{
		ReplicatorREQN: func(p Params) Replicator {
			return REQN{DT: p.DT}
		},
		ReplicatorTruncation: func(p Params) Replicator {
			return Truncation{Fraction: p.TruncationFraction}
		},
	}
}

// RegisterReplicator adds a named replicator. Custom replicators are checked
// only by their own factory; Params.Validate knows the built-in ones.
func RegisterReplicator(name string, factory ReplicatorFactory) error {
	name = normalizeReplicator(name)
	if name == "" {
		return errors.New("replicator name is required")
	}
	if factory == nil {
		return errors.New("replicator factory is required")
	}

	replicatorRegistry.mu.Lock()
	defer replicatorRegistry.mu.Unlock()

	if _, exists := replicatorRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrReplicatorExists, name)
	}
	replicatorRegistry.m[name] = factory
	return nil
}

// NewReplicator validates params and builds the replicator they name.
func NewReplicator(params Params) (Replicator, error) {
	name := normalizeReplicator(params.Replicator)

	replicatorRegistry.mu.RLock()
	factory, ok := replicatorRegistry.m[name]
	replicatorRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownReplicator, params.Replicator, strings.Join(ReplicatorNames(), ", "))
	}
	if name == ReplicatorREQN || name == ReplicatorTruncation {
		if err := params.Validate(); err != nil {
			return nil, err
		}
	}
	return factory(params), nil
}

func ReplicatorNames() []string {
	replicatorRegistry.mu.RLock()
	defer replicatorRegistry.mu.RUnlock()

	names := make([]string, 0, len(replicatorRegistry.m))
	for name := range replicatorRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetReplicatorRegistryForTests() {
	replicatorRegistry.mu.Lock()
	defer replicatorRegistry.mu.Unlock()
	replicatorRegistry.m = builtinReplicators()
}
