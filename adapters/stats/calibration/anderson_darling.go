package calibration

import (
	"math"

	"gocalib/domain/elicitation"
	"gocalib/domain/scoring"
	"gocalib/internal"
)

// pitFloor keeps log(u) and log(1-u) finite for PIT values at the support edges.
const pitFloor = 1e-15

// ADScorer tests the PIT sample against Uniform(0,1) with the Anderson–Darling
// statistic; the score is the p-value.
type ADScorer struct {
	logger *internal.Logger
}

// NewADScorer creates an Anderson–Darling scorer
func NewADScorer(logger *internal.Logger) *ADScorer {
	return &ADScorer{logger: logger}
}

// Method returns the calibration method
func (s *ADScorer) Method() scoring.CalibrationMethod {
	return scoring.MethodAD
}

// Score computes A² and its p-value from Marsaglia & Marsaglia (2004)
func (s *ADScorer) Score(pit []float64, _ elicitation.Levels) (scoring.CalibrationResult, error) {
	if err := checkSample(s.Method(), pit); err != nil {
		return scoring.CalibrationResult{}, err
	}

	u := sortedCopy(pit)
	clipped := 0
	for i, v := range u {
		switch {
		case v < pitFloor:
			u[i] = pitFloor
			clipped++
		case v > 1-pitFloor:
			u[i] = 1 - pitFloor
			clipped++
		}
	}
	if clipped > 0 {
		s.logger.Warn("anderson-darling clipped %d PIT values at the support edge", clipped)
	}

	n := len(u)
	nf := float64(n)
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += (2*float64(i) + 1) * (math.Log(u[i]) + math.Log1p(-u[n-1-i]))
	}
	a2 := -nf - sum/nf

	return finalize(scoring.CalibrationResult{
		Method:     s.Method(),
		Score:      clamp01(1 - ADCDF(n, a2)),
		Statistic:  a2,
		SampleSize: n,
	})
}

// ADCDF returns P(A²_n < z)
func ADCDF(n int, z float64) float64 {
	if z <= 0 {
		return 0
	}
	x := adInf(z)
	return x + adErrFix(n, x)
}

// adInf is the asymptotic CDF of A²
func adInf(z float64) float64 {
	if z < 2 {
		return math.Exp(-1.2337141/z) / math.Sqrt(z) *
			(2.00012 + (0.247105-(0.0649821-(0.0347962-(0.011672-0.00168691*z)*z)*z)*z)*z)
	}
	return math.Exp(-math.Exp(1.0776 - (2.30695-(0.43424-(0.082433-(0.008056-0.0003146*z)*z)*z)*z)*z))
}

// adErrFix corrects the asymptotic CDF value x for finite n
func adErrFix(n int, x float64) float64 {
	nf := float64(n)
	if x > 0.8 {
		return (-130.2137 + (745.2337-(1705.091-(1950.646-(1116.360-255.7844*x)*x)*x)*x)*x) / nf
	}
	c := 0.01265 + 0.1757/nf
	if x < c {
		t := x / c
		t = math.Sqrt(t) * (1 - t) * (49*t - 102)
		return t * (0.0037/(nf*nf) + 0.00078/nf + 0.00006)
	}
	t := (x - c) / (0.8 - c)
	t = -0.00022633 + (6.54034-(14.6538-(14.458-(8.259-1.91864*t)*t)*t)*t)*t
	return t * (0.04213/nf + 0.01365/(nf*nf))
}
