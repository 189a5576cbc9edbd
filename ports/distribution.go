package ports

import (
	"gocalib/domain/elicitation"
	"gocalib/domain/scoring"
)

// Distribution is the continuous distribution fitted to one expert's quantiles
// for one item. Values are in fitted space (log space for log-scale items).
type Distribution interface {
	CDF(x float64) float64
	PPF(p float64) float64
}

// Bounds is the intrinsic range of an item in fitted space
type Bounds struct {
	Lower float64
	Upper float64
}

// DistributionFamily fits a Distribution from quantile pairs
type DistributionFamily interface {
	Kind() scoring.Distribution
	Fit(levels elicitation.Levels, values []float64, bounds Bounds) (Distribution, error)
}

// FamilyRegistry resolves the family for a configured distribution
type FamilyRegistry interface {
	Family(kind scoring.Distribution) (DistributionFamily, error)
}
