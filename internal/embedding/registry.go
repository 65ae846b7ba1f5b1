package embedding

import (
	"fmt"
	"sort"
)

type Key struct {
	Model    string
	Provider string
}

// Registry resolves providers by (model, provider). It is built once at
// startup and read-only afterwards.
type Registry struct {
	providers map[Key]Provider
}

func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{providers: make(map[Key]Provider, len(providers))}
	for _, p := range providers {
		spec := p.Spec()
		key := Key{Model: spec.Model, Provider: spec.Provider}
		if _, dup := r.providers[key]; dup {
			return nil, fmt.Errorf("duplicate embedding provider %s", spec)
		}
		r.providers[key] = p
	}
	return r, nil
}

func (r *Registry) Lookup(model, provider string) (Provider, error) {
	p, ok := r.providers[Key{Model: model, Provider: provider}]
	if !ok {
		return nil, fmt.Errorf("%w: model %q provider %q", ErrUnsupportedConfiguration, model, provider)
	}
	return p, nil
}

// Specs lists registered variants sorted by provider then model.
func (r *Registry) Specs() []Spec {
	specs := make([]Spec, 0, len(r.providers))
	for _, p := range r.providers {
		specs = append(specs, p.Spec())
	}
	sort.Slice(specs, func(i, j int) bool {
		if specs[i].Provider != specs[j].Provider {
			return specs[i].Provider < specs[j].Provider
		}
		return specs[i].Model < specs[j].Model
	})
	return specs
}
