package aggregation

import (
	"fmt"
	"math"

	"gocalib/domain/core"
	"gocalib/domain/elicitation"
	"gocalib/ports"
)

const (
	poolBisectSteps = 200
	poolMaxExpand   = 60
)

// Mixture is the weighted linear pool of expert distributions for one item
type Mixture struct {
	dists   []ports.Distribution
	weights []float64
}

// NewMixture pools dists with weights. Weights must be normalized and aligned
// with dists; zero-weight members are dropped.
func NewMixture(dists []ports.Distribution, weights []float64) (*Mixture, error) {
	if len(dists) != len(weights) {
		return nil, fmt.Errorf("%w: %d distributions for %d weights", core.ErrInvalidState, len(dists), len(weights))
	}
	m := &Mixture{}
	for i, d := range dists {
		if weights[i] > 0 {
			m.dists = append(m.dists, d)
			m.weights = append(m.weights, weights[i])
		}
	}
	if len(m.dists) == 0 {
		return nil, core.ErrDegenerateWeights
	}
	return m, nil
}

// CDF is the weighted sum of member CDFs
func (m *Mixture) CDF(x float64) float64 {
	c := 0.0
	for i, d := range m.dists {
		c += m.weights[i] * d.CDF(x)
	}
	return c
}

// PPF inverts the pooled CDF by bracket expansion and bisection, starting
// from the given bracket.
func (m *Mixture) PPF(p float64, bracket ports.Bounds) (float64, error) {
	lo, hi := bracket.Lower, bracket.Upper
	width := math.Max(hi-lo, 1e-9)
	for i := 0; m.CDF(lo) > p; i++ {
		if i == poolMaxExpand {
			return math.NaN(), fmt.Errorf("%w: pooled quantile %.3f below %v", core.ErrInfeasibleFit, p, lo)
		}
		lo -= width
		width *= 2
	}
	width = math.Max(hi-lo, 1e-9)
	for i := 0; m.CDF(hi) < p; i++ {
		if i == poolMaxExpand {
			return math.NaN(), fmt.Errorf("%w: pooled quantile %.3f above %v", core.ErrInfeasibleFit, p, hi)
		}
		hi += width
		width *= 2
	}
	for i := 0; i < poolBisectSteps && hi-lo > 1e-12*math.Max(1, math.Abs(lo)); i++ {
		mid := 0.5 * (lo + hi)
		if m.CDF(mid) < p {
			lo = mid
		} else {
			hi = mid
		}
	}
	return 0.5 * (lo + hi), nil
}

// Quantiles returns the pooled quantiles at every level
func (m *Mixture) Quantiles(levels elicitation.Levels, bracket ports.Bounds) ([]float64, error) {
	out := make([]float64, len(levels))
	for i, p := range levels {
		q, err := m.PPF(p, bracket)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}
