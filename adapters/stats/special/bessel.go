package special

import "math"

const besselStep = 0.01

// BesselK evaluates the modified Bessel function of the second kind K_nu(z)
// for z > 0 from K_nu(z) = ∫_0^∞ exp(-z cosh t) cosh(nu t) dt. The integrand
// decays doubly exponentially, so the trapezoid rule converges fast.
func BesselK(nu, z float64) float64 {
	if z <= 0 {
		return math.Inf(1)
	}
	sum := 0.5 * math.Exp(-z)
	for t := besselStep; ; t += besselStep {
		f := math.Exp(-z*math.Cosh(t)) * math.Cosh(nu*t)
		sum += f
		if t > 1 && f <= 1e-17*sum {
			break
		}
	}
	return sum * besselStep
}
