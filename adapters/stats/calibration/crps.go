package calibration

import (
	"math"

	"gocalib/domain/elicitation"
	"gocalib/domain/scoring"

	"gonum.org/v1/gonum/stat/distuv"
)

// Moments of the uniform-forecast CRPS c(U) for U ~ Uniform(0,1).
const (
	crpsMean     = 1.0 / 6.0
	crpsVariance = 1.0 / 180.0
)

// CRPSScorer scores the PIT sample by the continuous ranked probability score
// of the Uniform(0,1) forecast. The mean CRPS over the sample is compared with
// its value under calibration and the score is the two-sided normal p-value.
type CRPSScorer struct{}

// NewCRPSScorer creates a CRPS scorer
func NewCRPSScorer() *CRPSScorer {
	return &CRPSScorer{}
}

// Method returns the calibration method
func (s *CRPSScorer) Method() scoring.CalibrationMethod {
	return scoring.MethodCRPS
}

// Score computes the mean CRPS and its p-value. Diagnostics carry the mean and
// the z statistic; Score is the only value the aggregation consumes.
func (s *CRPSScorer) Score(pit []float64, _ elicitation.Levels) (scoring.CalibrationResult, error) {
	if err := checkSample(s.Method(), pit); err != nil {
		return scoring.CalibrationResult{}, err
	}

	total := 0.0
	for _, u := range pit {
		total += UniformCRPS(u)
	}
	n := float64(len(pit))
	mean := total / n
	z := (mean - crpsMean) / math.Sqrt(crpsVariance/n)

	return finalize(scoring.CalibrationResult{
		Method:     s.Method(),
		Score:      clamp01(2 * distuv.UnitNormal.Survival(math.Abs(z))),
		Statistic:  mean,
		SampleSize: len(pit),
		Diagnostics: map[string]float64{
			"mean_crps": mean,
			"z":         z,
		},
	})
}

// UniformCRPS is the CRPS of the Uniform(0,1) forecast at outcome u in [0,1]
func UniformCRPS(u float64) float64 {
	return (u*u*u + (1-u)*(1-u)*(1-u)) / 3
}
