package credentials

import (
	"fmt"
	"sync"
	"time"
)

// Integration is the type-erased view of a Manager held by the Registry.
type Integration interface {
	Name() string
	Keys() []Key
	Invalidate()
	Snapshot() Snapshot
}

// Snapshot is the cache state of one integration.
type Snapshot struct {
	Integration string    `json:"integration"`
	Cached      bool      `json:"cached"`
	Source      Source    `json:"source,omitempty"`
	ResolvedAt  time.Time `json:"resolved_at,omitzero"`
	ClientBuilt bool      `json:"client_built"`
}

// Registry indexes integrations by name. It answers which settings keys are
// secret and who owns them, so it doubles as the settings service catalog.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Integration
	order  []string
	owner  map[string]string // setting key -> integration
	secret map[string]bool
}

// NewRegistry creates a Registry holding items. It panics on duplicate names,
// which only happens through a wiring mistake.
func NewRegistry(items ...Integration) *Registry {
	r := &Registry{
		byName: make(map[string]Integration),
		owner:  make(map[string]string),
		secret: make(map[string]bool),
	}
	for _, it := range items {
		if err := r.Register(it); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds an integration.
func (r *Registry) Register(it Integration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := it.Name()
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("integration %q already registered", name)
	}
	r.byName[name] = it
	r.order = append(r.order, name)
	for _, k := range it.Keys() {
		r.owner[k.Setting] = name
		if k.Secret {
			r.secret[k.Setting] = true
		}
	}
	return nil
}

// Get returns the integration registered under name.
func (r *Registry) Get(name string) (Integration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.byName[name]
	return it, ok
}

// Names returns integration names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Invalidate drops the cached credentials and client of one integration.
func (r *Registry) Invalidate(name string) error {
	it, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownIntegration, name)
	}
	it.Invalidate()
	return nil
}

// InvalidateAll invalidates every integration.
func (r *Registry) InvalidateAll() {
	for _, name := range r.Names() {
		_ = r.Invalidate(name)
	}
}

// IsSecret reports whether setting key is stored encrypted.
func (r *Registry) IsSecret(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.secret[key]
}

// Owner returns the integration that reads setting key.
func (r *Registry) Owner(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.owner[key]
	return name, ok
}

// Snapshots returns the cache state of every integration.
func (r *Registry) Snapshots() []Snapshot {
	names := r.Names()
	out := make([]Snapshot, 0, len(names))
	for _, n := range names {
		if it, ok := r.Get(n); ok {
			out = append(out, it.Snapshot())
		}
	}
	return out
}
