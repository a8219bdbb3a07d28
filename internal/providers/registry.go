package providers

import (
	"sync"

	"github.com/ramiqadoumi/leadflow/internal/domain"
)

// Registry maps provider names and task types to adapters.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	routes    map[domain.TaskType]string
	enrichers []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		routes:    make(map[domain.TaskType]string),
	}
}

// Register adds a provider under its Name. Safe to call concurrently.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Route sends tasks of type tt to the provider called name.
func (r *Registry) Route(tt domain.TaskType, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[tt] = name
}

// SetEnrichers sets the order in which enrichment providers are tried.
func (r *Registry) SetEnrichers(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enrichers = append([]string(nil), names...)
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, &domain.UnknownProviderError{Key: name}
	}
	return p, nil
}

// ForTask returns the provider routed for tt.
func (r *Registry) ForTask(tt domain.TaskType) (Provider, error) {
	r.mu.RLock()
	name, ok := r.routes[tt]
	r.mu.RUnlock()
	if !ok {
		return nil, &domain.UnknownProviderError{Key: string(tt)}
	}
	return r.Get(name)
}

// Enrichers returns the registered enrichment providers in configured order.
// Names with no registered provider are skipped.
func (r *Registry) Enrichers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.enrichers))
	for _, name := range r.enrichers {
		if p, ok := r.providers[name]; ok {
			out = append(out, p)
		}
	}
	return out
}
