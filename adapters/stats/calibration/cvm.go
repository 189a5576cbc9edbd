package calibration

import (
	"math"

	"gocalib/adapters/stats/special"
	"gocalib/domain/elicitation"
	"gocalib/domain/scoring"
)

// CVMScorer tests the PIT sample against Uniform(0,1) with the Cramér–von
// Mises criterion; the score is the p-value.
type CVMScorer struct{}

// NewCVMScorer creates a Cramér–von Mises scorer
func NewCVMScorer() *CVMScorer {
	return &CVMScorer{}
}

// Method returns the calibration method
func (s *CVMScorer) Method() scoring.CalibrationMethod {
	return scoring.MethodCVM
}

// Score computes W² and its p-value under the finite-n distribution
func (s *CVMScorer) Score(pit []float64, _ elicitation.Levels) (scoring.CalibrationResult, error) {
	if err := checkSample(s.Method(), pit); err != nil {
		return scoring.CalibrationResult{}, err
	}

	u := sortedCopy(pit)
	n := float64(len(u))
	w2 := 1 / (12 * n)
	for i, v := range u {
		d := (2*float64(i)+1)/(2*n) - v
		w2 += d * d
	}

	return finalize(scoring.CalibrationResult{
		Method:     s.Method(),
		Score:      clamp01(1 - CVMCDF(len(u), w2)),
		Statistic:  w2,
		SampleSize: len(u),
	})
}

// CVMCDF returns P(W²_n < x) with the first-order finite-n correction of
// Csörgő & Faraway (1996). The support of W²_n is [1/(12n), n/3].
func CVMCDF(n int, x float64) float64 {
	nf := float64(n)
	switch {
	case x <= 1/(12*nf):
		return 0
	case x >= nf/3:
		return 1
	}
	return CVMAsymptoticCDF(x)*(1+1/(12*nf)) + cvmPsi1(x)/nf
}

// CVMAsymptoticCDF is the limiting distribution of W² (Anderson & Darling, 1952).
func CVMAsymptoticCDF(x float64) float64 {
	if x <= 0 {
		return 0
	}
	total := 0.0
	for k := 0; k < 1000; k++ {
		kf := float64(k)
		lg1, _ := math.Lgamma(kf + 0.5)
		lg2, _ := math.Lgamma(kf + 1)
		u := math.Exp(lg1-lg2) / (math.Pow(math.Pi, 1.5) * math.Sqrt(x))
		y := 4*kf + 1
		q := y * y / (16 * x)
		term := u * math.Sqrt(y) * math.Exp(-q) * special.BesselK(0.25, q)
		total += term
		if math.Abs(term) < 1e-7 {
			break
		}
	}
	return total
}

// cvmPsi1 is the 1/n term of the finite-n expansion without its V(x)/12 part,
// which CVMCDF adds from the asymptotic value.
func cvmPsi1(x float64) float64 {
	sx := 2 * math.Sqrt(x)
	y1 := math.Pow(x, 0.75)
	y2 := math.Pow(x, 1.25)
	total := 0.0
	for k := 0; k < 1000; k++ {
		kf := float64(k)
		m := 2*kf + 1
		g := math.Gamma(kf + 0.5)
		a := m*g*cvmEd2((4*kf+3)/sx)/(9*y1) +
			g*cvmEd3((4*kf+1)/sx)/(72*y2) +
			2*(m+2)*math.Gamma(kf+1.5)*cvmEd3((4*kf+5)/sx)/(12*y2) +
			7*m*g*cvmEd2((4*kf+1)/sx)/(144*y1) +
			7*m*g*cvmEd2((4*kf+5)/sx)/(144*y1)
		term := -a / (math.Pi * math.Gamma(kf+1))
		total += term
		if math.Abs(term) < 1e-7 {
			break
		}
	}
	return total
}

func cvmEd2(y float64) float64 {
	z := y * y / 4
	b := special.BesselK(0.25, z) + special.BesselK(0.75, z)
	return math.Exp(-z) * math.Pow(y/2, 1.5) * b / math.Sqrt(math.Pi)
}

func cvmEd3(y float64) float64 {
	z := y * y / 4
	b := 2*special.BesselK(0.25, z) + 3*special.BesselK(0.75, z) - special.BesselK(1.25, z)
	return math.Exp(-z) / math.Sqrt(math.Pi) * math.Pow(y/2, 2.5) * b
}
