// Package special holds the few special functions the calibration scores need.
// They are evaluated directly so that scoring does not depend on a full
// numerical library for its hot path.
package special

import "math"

// DefaultIterations is the continued-fraction depth used by Chi2CDF callers.
const DefaultIterations = 100

// UpperIncompleteGamma evaluates Γ(a, x) with a fixed-depth continued fraction,
// folded backwards from val = 1. There is no convergence check: accuracy is
// governed by iterations alone and degrades for x much smaller than a.
func UpperIncompleteGamma(a, x float64, iterations int) float64 {
	val := 1.0
	for d := iterations - 1; d >= 1; d-- {
		fd := float64(d)
		val = fd*2 - 1 - a + x + (fd*(a-fd))/val
	}
	return math.Pow(x, a) * math.Exp(-x) / val
}

// Chi2CDF is the chi-squared CDF built on UpperIncompleteGamma.
//
// Chi2CDF(0, df) is 1, not 0. Cooke's score is 1 - Chi2CDF, so a statistic of
// exactly zero scores 0.
func Chi2CDF(x, df float64, iterations int) float64 {
	if x == 0.0 {
		return 1.0
	}
	return 1 - UpperIncompleteGamma(0.5*df, 0.5*x, iterations)/math.Gamma(0.5*df)
}
