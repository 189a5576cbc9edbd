package calibration

import (
	"math"
	"sort"

	"gocalib/adapters/stats/special"
	"gocalib/domain/elicitation"
	"gocalib/domain/scoring"
	"gocalib/internal"
)

// CookeScorer implements Cooke's classical statistical accuracy: the p-value
// of the likelihood-ratio test that the PIT values fall into the inter-quantile
// bins with the nominal probabilities.
type CookeScorer struct {
	iterations int
	logger     *internal.Logger
}

// NewCookeScorer creates a Cooke scorer using the default continued-fraction depth
func NewCookeScorer(logger *internal.Logger) *CookeScorer {
	return &CookeScorer{iterations: special.DefaultIterations, logger: logger}
}

// Method returns the calibration method
func (s *CookeScorer) Method() scoring.CalibrationMethod {
	return scoring.MethodChi2
}

// Score computes 1 - chi2cdf(2 n MI, #bins - 1)
func (s *CookeScorer) Score(pit []float64, levels elicitation.Levels) (scoring.CalibrationResult, error) {
	if err := checkSample(s.Method(), pit); err != nil {
		return scoring.CalibrationResult{}, err
	}
	if err := levels.Validate(); err != nil {
		return scoring.CalibrationResult{}, err
	}

	freq := BinFrequencies(pit, levels)
	widths := levels.Widths()

	mi := 0.0
	for i, si := range freq {
		if si > 0 {
			mi += si * math.Log(si/widths[i])
		}
	}

	n := float64(len(pit))
	stat := 2 * n * mi
	df := float64(len(freq) - 1)
	tail := 1 - special.Chi2CDF(stat, df, s.iterations)
	if stat > 0 && tail == 0 {
		s.logger.Warn("chi2 tail underflowed to zero (statistic %.4g, df %.0f, n %d)", stat, df, len(pit))
	}

	// The fixed-depth fraction can overshoot [0,1] for tiny statistics.
	return finalize(scoring.CalibrationResult{
		Method:     s.Method(),
		Score:      clamp01(tail),
		Statistic:  stat,
		SampleSize: len(pit),
		Diagnostics: map[string]float64{
			"relative_information": mi,
			"degrees_freedom":      df,
		},
	})
}

// BinFrequencies returns the relative frequency of PIT values in each of the
// len(levels)+1 bins, where bin i holds levels[i-1] <= u < levels[i].
func BinFrequencies(pit []float64, levels elicitation.Levels) []float64 {
	counts := make([]float64, len(levels)+1)
	for _, u := range pit {
		idx := sort.Search(len(levels), func(i int) bool { return levels[i] > u })
		counts[idx]++
	}
	n := float64(len(pit))
	for i := range counts {
		counts[i] /= n
	}
	return counts
}
