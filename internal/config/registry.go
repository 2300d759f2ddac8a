package config

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/qirat-ai/qirat/internal/store"
	"github.com/qirat-ai/qirat/pkg/speech"
)

// ErrNotRegistered is returned by Create* methods when no factory has been
// registered under the requested name.
var ErrNotRegistered = errors.New("config: factory not registered")

// Registry maps speech provider and storage backend names to their
// constructor functions. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	speech map[string]func(ProviderEntry) (speech.Provider, error)
	stores map[StorageBackend]func(context.Context, StorageConfig) (store.Store, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		speech: make(map[string]func(ProviderEntry) (speech.Provider, error)),
		stores: make(map[StorageBackend]func(context.Context, StorageConfig) (store.Store, error)),
	}
}

// RegisterSpeech registers a speech provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSpeech(name string, factory func(ProviderEntry) (speech.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.speech[name] = factory
}

// RegisterStore registers a storage backend factory under backend.
func (r *Registry) RegisterStore(backend StorageBackend, factory func(context.Context, StorageConfig) (store.Store, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[backend] = factory
}

// CreateSpeech instantiates a speech provider using the factory registered
// under entry.Name. Returns [ErrNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateSpeech(entry ProviderEntry) (speech.Provider, error) {
	r.mu.RLock()
	factory, ok := r.speech[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: speech/%q", ErrNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateStore instantiates a storage backend using the factory registered
// under cfg.Backend. An empty backend resolves to [StorageMemory].
func (r *Registry) CreateStore(ctx context.Context, cfg StorageConfig) (store.Store, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = StorageMemory
	}
	r.mu.RLock()
	factory, ok := r.stores[backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: storage/%q", ErrNotRegistered, backend)
	}
	return factory(ctx, cfg)
}
