package distribution

import (
	"fmt"
	"math"

	"gocalib/domain/core"
	"gocalib/domain/elicitation"
	"gocalib/domain/scoring"
	"gocalib/ports"

	"gonum.org/v1/gonum/mat"
)

const (
	// logit range searched when inverting the quantile function
	logitSpan = 40.0
	// bisection steps for the CDF
	bisectSteps = 100
	// grid used to check that a fitted quantile function increases
	feasibilityGrid = 400
)

// MetalogFamily fits metalog distributions. When the item bounds strictly
// enclose the quantiles the log-bounded metalog is used so the support equals
// the intrinsic range; otherwise the unbounded form is fitted.
type MetalogFamily struct{}

// Kind returns the distribution kind
func (MetalogFamily) Kind() scoring.Distribution {
	return scoring.DistributionMetalog
}

// Fit solves for k = len(levels) coefficients, dropping terms (least squares)
// until the quantile function is strictly increasing.
func (MetalogFamily) Fit(levels elicitation.Levels, values []float64, bounds ports.Bounds) (ports.Distribution, error) {
	if err := checkInput(levels, values); err != nil {
		return nil, err
	}

	d := &Metalog{lower: bounds.Lower, upper: bounds.Upper}
	d.bounded = bounds.Lower < values[0] && bounds.Upper > values[len(values)-1]

	z := make([]float64, len(values))
	for i, v := range values {
		z[i] = d.toUnbounded(v)
	}

	for terms := len(levels); terms >= 2; terms-- {
		coef, err := solveMetalog(levels, z, terms)
		if err != nil {
			continue
		}
		d.coef = coef
		if d.increasing() {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: metalog for quantiles %v", core.ErrInfeasibleFit, values)
}

// Metalog is a fitted metalog distribution
type Metalog struct {
	coef    []float64
	lower   float64
	upper   float64
	bounded bool
}

// Terms returns the number of metalog terms kept
func (d *Metalog) Terms() int {
	return len(d.coef)
}

// PPF evaluates the quantile function
func (d *Metalog) PPF(p float64) float64 {
	switch {
	case p <= 0:
		if d.bounded {
			return d.lower
		}
		return math.Inf(-1)
	case p >= 1:
		if d.bounded {
			return d.upper
		}
		return math.Inf(1)
	}
	return d.fromUnbounded(quantileAt(d.coef, math.Log(p/(1-p))))
}

// CDF inverts the quantile function by bisection on the logit of p
func (d *Metalog) CDF(x float64) float64 {
	if math.IsNaN(x) {
		return math.NaN()
	}
	if d.bounded {
		if x <= d.lower {
			return 0
		}
		if x >= d.upper {
			return 1
		}
	}
	z := d.toUnbounded(x)
	lo, hi := -logitSpan, logitSpan
	if quantileAt(d.coef, lo) >= z {
		return 0
	}
	if quantileAt(d.coef, hi) <= z {
		return 1
	}
	for i := 0; i < bisectSteps; i++ {
		mid := 0.5 * (lo + hi)
		if quantileAt(d.coef, mid) < z {
			lo = mid
		} else {
			hi = mid
		}
	}
	return logistic(0.5 * (lo + hi))
}

func (d *Metalog) toUnbounded(x float64) float64 {
	if !d.bounded {
		return x
	}
	return math.Log((x - d.lower) / (d.upper - x))
}

func (d *Metalog) fromUnbounded(z float64) float64 {
	if !d.bounded {
		return z
	}
	if z > 0 {
		e := math.Exp(-z)
		return (d.lower*e + d.upper) / (1 + e)
	}
	e := math.Exp(z)
	return (d.lower + d.upper*e) / (1 + e)
}

func (d *Metalog) increasing() bool {
	prev := math.Inf(-1)
	for i := 0; i <= feasibilityGrid; i++ {
		t := -15 + 30*float64(i)/feasibilityGrid
		q := quantileAt(d.coef, t)
		if math.IsNaN(q) || q <= prev {
			return false
		}
		prev = q
	}
	return true
}

// solveMetalog fits the first `terms` basis functions to (levels, z) by least
// squares (exact when terms == len(levels)).
func solveMetalog(levels elicitation.Levels, z []float64, terms int) ([]float64, error) {
	Y := mat.NewDense(len(levels), terms, nil)
	for i, p := range levels {
		for j := 0; j < terms; j++ {
			Y.Set(i, j, basis(j, p, math.Log(p/(1-p))))
		}
	}
	var a mat.VecDense
	if err := a.SolveVec(Y, mat.NewVecDense(len(z), append([]float64(nil), z...))); err != nil {
		return nil, err
	}
	return append([]float64(nil), a.RawVector().Data...), nil
}

// basis returns the j-th (0-based) metalog basis function at y, given its logit
func basis(j int, y, logit float64) float64 {
	c := y - 0.5
	switch j {
	case 0:
		return 1
	case 1:
		return logit
	case 2:
		return c * logit
	case 3:
		return c
	}
	if j%2 == 0 {
		return math.Pow(c, float64(j/2))
	}
	return math.Pow(c, float64(j/2)) * logit
}

// quantileAt evaluates the unbounded quantile function at logit t
func quantileAt(coef []float64, t float64) float64 {
	y := logistic(t)
	q := 0.0
	for j, a := range coef {
		q += a * basis(j, y, t)
	}
	return q
}

func logistic(t float64) float64 {
	return 1 / (1 + math.Exp(-t))
}
