package provider

import "fmt"

// Registry is an explicit, constructed mapping of named providers. It is
// built once at startup and injected into the components that need it;
// registration order is preserved and used as the router's tie-break order.
type Registry struct {
	order  []string
	byName map[string]Provider
}

// NewRegistry builds a registry from providers in registration order.
// Duplicate names are rejected.
func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{byName: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		name := p.Name()
		if _, exists := r.byName[name]; exists {
			return nil, fmt.Errorf("duplicate provider %q", name)
		}
		r.order = append(r.order, name)
		r.byName[name] = p
	}
	return r, nil
}

// Get returns the named provider.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// Names returns provider names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// All returns providers in registration order.
func (r *Registry) All() []Provider {
	out := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	return len(r.order)
}
