package workload

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kbukum/workloadops/errors"
	"github.com/kbukum/workloadops/logger"
)

// AdapterFactory builds an Adapter from the shared workload config and the
// backend-specific config value.
type AdapterFactory func(cfg Config, backendCfg any, log *logger.Logger) (Adapter, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[BackendKind]AdapterFactory)
)

// RegisterFactory registers the factory for a backend kind.
// Backend packages call it from init.
func RegisterFactory(kind BackendKind, f AdapterFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[kind] = f
}

// RegisteredKinds lists the kinds with a registered factory, sorted.
func RegisteredKinds() []BackendKind {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	kinds := make([]BackendKind, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// NewAdapter builds the adapter for kind using its registered factory.
func NewAdapter(kind BackendKind, cfg Config, backendCfg any, log *logger.Logger) (Adapter, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}

	factoriesMu.RLock()
	f, ok := factories[kind]
	factoriesMu.RUnlock()
	if !ok {
		return nil, errors.UnsupportedBackend(string(kind))
	}

	l := log.WithComponent("workload." + string(kind))
	l.Info("initializing workload adapter", logger.Fields(logger.FieldKind, string(kind)))
	a, err := f(cfg, backendCfg, l)
	if err != nil {
		return nil, fmt.Errorf("workload: build %s adapter: %w", kind, err)
	}
	return a, nil
}
