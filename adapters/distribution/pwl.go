package distribution

import (
	"fmt"
	"sort"

	"gocalib/domain/core"
	"gocalib/domain/elicitation"
	"gocalib/domain/scoring"
	"gocalib/ports"
)

// PWLFamily fits piecewise-linear CDFs, uniform within each inter-quantile
// interval and anchored to the item bounds at probabilities 0 and 1.
type PWLFamily struct{}

// Kind returns the distribution kind
func (PWLFamily) Kind() scoring.Distribution {
	return scoring.DistributionPWL
}

// Fit builds the CDF through (lower,0), (q_i,p_i), (upper,1)
func (PWLFamily) Fit(levels elicitation.Levels, values []float64, bounds ports.Bounds) (ports.Distribution, error) {
	if err := checkInput(levels, values); err != nil {
		return nil, err
	}
	if bounds.Lower > values[0] || bounds.Upper < values[len(values)-1] || bounds.Lower >= bounds.Upper {
		return nil, fmt.Errorf("%w: bounds [%v, %v] do not enclose quantiles %v", core.ErrInfeasibleFit, bounds.Lower, bounds.Upper, values)
	}

	d := &PWL{
		xs: make([]float64, 0, len(values)+2),
		ps: make([]float64, 0, len(values)+2),
	}
	d.xs = append(append(append(d.xs, bounds.Lower), values...), bounds.Upper)
	d.ps = append(append(append(d.ps, 0), levels...), 1)
	return d, nil
}

// PWL is a piecewise-linear distribution
type PWL struct {
	xs []float64
	ps []float64
}

// CDF interpolates linearly between the knots
func (d *PWL) CDF(x float64) float64 {
	return interpolate(d.xs, d.ps, x)
}

// PPF interpolates the inverse
func (d *PWL) PPF(p float64) float64 {
	return interpolate(d.ps, d.xs, p)
}

// interpolate evaluates the polyline through (xs, ys) at x, clamping outside
// the knot range. xs must be non-decreasing.
func interpolate(xs, ys []float64, x float64) float64 {
	n := len(xs)
	if x <= xs[0] {
		return ys[0]
	}
	if x >= xs[n-1] {
		return ys[n-1]
	}
	i := sort.SearchFloat64s(xs, x)
	if xs[i] == x {
		return ys[i]
	}
	x0, x1 := xs[i-1], xs[i]
	return ys[i-1] + (ys[i]-ys[i-1])*(x-x0)/(x1-x0)
}

func checkInput(levels elicitation.Levels, values []float64) error {
	if err := levels.Validate(); err != nil {
		return err
	}
	if len(values) != len(levels) {
		return fmt.Errorf("%w: %d values for %d levels", core.ErrMalformedEstimate, len(values), len(levels))
	}
	for i := 1; i < len(values); i++ {
		if !(values[i] > values[i-1]) {
			return fmt.Errorf("%w: values not strictly increasing: %v", core.ErrMalformedEstimate, values)
		}
	}
	return nil
}
