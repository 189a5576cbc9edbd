// Package distribution fits continuous distributions to elicited quantiles.
package distribution

import (
	"fmt"

	"gocalib/domain/core"
	"gocalib/domain/elicitation"
	"gocalib/domain/scoring"
	"gocalib/ports"
)

// Registry resolves distribution families by kind
type Registry struct {
	families map[scoring.Distribution]ports.DistributionFamily
}

// NewRegistry creates a registry with the Metalog and PWL families
func NewRegistry() *Registry {
	return NewRegistryWith(MetalogFamily{}, PWLFamily{})
}

// NewRegistryWith creates a registry from explicit families
func NewRegistryWith(families ...ports.DistributionFamily) *Registry {
	r := &Registry{families: make(map[scoring.Distribution]ports.DistributionFamily, len(families))}
	for _, f := range families {
		r.families[f.Kind()] = f
	}
	return r
}

// Family returns the family for a kind
func (r *Registry) Family(kind scoring.Distribution) (ports.DistributionFamily, error) {
	f, ok := r.families[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown distribution %q", core.ErrInvalidSettings, kind)
	}
	return f, nil
}

// FitEstimate fits an expert's estimate for an item. Values are mapped into
// fitted space with the item scale; bounds must already be in fitted space.
func FitEstimate(family ports.DistributionFamily, levels elicitation.Levels, item elicitation.Item, est elicitation.Estimate, bounds ports.Bounds) (ports.Distribution, error) {
	if err := est.Check(len(levels), item.Scale); err != nil {
		return nil, fmt.Errorf("%w: item %s: %v", core.ErrMalformedEstimate, item.ID, err)
	}
	values := make([]float64, len(est.Values))
	for i, v := range est.Values {
		values[i] = item.Scale.Forward(v)
	}
	return family.Fit(levels, values, bounds)
}
