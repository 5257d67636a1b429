package relational

import (
	"context"
	"log/slog"
	"sync"
)

// Registry caches live engines keyed by connection URI so repeated requests
// for the same database share one pool. An explicit, injectable object owned
// by the composition root. Safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	engines map[string]*Engine
	logger  *slog.Logger
}

// NewRegistry creates an empty engine registry.
func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]*Engine),
		logger:  slog.Default().With("context", "PGSQL Registry"),
	}
}

// Engine returns the cached engine for the given parameters, creating it on
// first use. Creation and insertion happen under the registry lock so two
// concurrent callers never race a duplicate pool into the cache.
func (r *Registry) Engine(ctx context.Context, params ConnParams, opts EngineOptions) (*Engine, error) {
	key := params.URI()

	r.mu.Lock()
	defer r.mu.Unlock()

	if eng, ok := r.engines[key]; ok {
		return eng, nil
	}

	eng, err := NewEngine(ctx, params, opts)
	if err != nil {
		return nil, err
	}
	r.engines[key] = eng
	r.logger.Info("engine registered", "host", params.Host, "database", params.Database)
	return eng, nil
}

// Len reports the number of cached engines.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.engines)
}

// CloseAll disposes every cached engine and clears the registry.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, eng := range r.engines {
		eng.Close()
		delete(r.engines, key)
	}
	r.logger.Info("all engines closed")
}
