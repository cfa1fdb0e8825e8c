package version

import (
	"context"
	"sync"
)

// Registry resolves per-entity-type policy and loaders. It is populated at
// setup and read on every lifecycle event.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]Policy
	loaders  map[string]Loader
	fallback *Policy
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDefault applies p to entity types that were never registered.
func WithDefault(p Policy) RegistryOption {
	return func(r *Registry) {
		policy := p
		r.fallback = &policy
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		policies: map[string]Policy{},
		loaders:  map[string]Loader{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register sets the policy for an entity type.
func (r *Registry) Register(entityType string, p Policy) error {
	if entityType == "" {
		return &InvalidConfigurationError{Property: "type", Reason: "empty entity type"}
	}
	if p.Strategy == "" {
		p.Strategy = StrategyDiff
	}
	if !p.Strategy.Valid() {
		return &InvalidConfigurationError{EntityType: entityType, Property: "strategy", Reason: string(p.Strategy)}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[entityType] = p
	return nil
}

// RegisterLoader sets the loader used to fetch entities of entityType.
func (r *Registry) RegisterLoader(entityType string, loader Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[entityType] = loader
}

// Policy returns the policy for entityType.
func (r *Registry) Policy(entityType string) (Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.policies[entityType]; ok {
		return p, nil
	}
	if r.fallback != nil {
		return *r.fallback, nil
	}
	return Policy{}, &InvalidConfigurationError{EntityType: entityType, Property: "policy", Reason: "entity type is not registered"}
}

func (r *Registry) Registered(entityType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.policies[entityType]
	return ok
}

// Types lists registered entity types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.policies))
	for t := range r.policies {
		out = append(out, t)
	}
	return out
}

func (r *Registry) Filter(entityType string) (FieldFilter, error) {
	p, err := r.Policy(entityType)
	if err != nil {
		return FieldFilter{}, err
	}
	return p.Filter, nil
}

func (r *Registry) SetFilter(entityType string, f FieldFilter) error {
	return r.update(entityType, func(p *Policy) error {
		p.Filter = f
		return nil
	})
}

func (r *Registry) SetStrategy(entityType string, s Strategy) error {
	return r.update(entityType, func(p *Policy) error {
		if !s.Valid() {
			return &InvalidConfigurationError{EntityType: entityType, Property: "strategy", Reason: string(s)}
		}
		p.Strategy = s
		return nil
	})
}

func (r *Registry) SetKeepVersions(entityType string, keep int) error {
	return r.update(entityType, func(p *Policy) error {
		p.KeepVersions = keep
		return nil
	})
}

// Load fetches the entity identified by ref using its type's loader.
func (r *Registry) Load(ctx context.Context, ref EntityRef) (Entity, error) {
	r.mu.RLock()
	loader, ok := r.loaders[ref.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, &InvalidConfigurationError{EntityType: ref.Type, Property: "loader", Reason: "no loader registered"}
	}
	return loader.Load(ctx, ref)
}

func (r *Registry) update(entityType string, fn func(*Policy) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.policies[entityType]
	if !ok {
		return &InvalidConfigurationError{EntityType: entityType, Property: "policy", Reason: "entity type is not registered"}
	}
	if err := fn(&p); err != nil {
		return err
	}
	r.policies[entityType] = p
	return nil
}
