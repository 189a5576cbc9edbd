package montecarlo

import (
	"fmt"

	"gocalib/domain/core"
	"gocalib/domain/scoring"

	"github.com/montanaflynn/stats"
)

// PrefixSummary summarises the scores of all trials at one prefix length
type PrefixSummary struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Median float64 `json:"median"`
	P05    float64 `json:"p05"`
	P95    float64 `json:"p95"`
}

// Summarize returns one summary per prefix for a method and archetype
func (r *Result) Summarize(method scoring.CalibrationMethod, archetype string) ([]PrefixSummary, error) {
	trials, ok := r.Scores[method][archetype]
	if !ok {
		return nil, fmt.Errorf("%w: no scores for %s / %s", core.ErrNotFound, method, archetype)
	}

	prefixes := r.Prefixes()
	out := make([]PrefixSummary, len(prefixes))
	column := make(stats.Float64Data, len(trials))
	for j, n := range prefixes {
		for t, traj := range trials {
			column[t] = traj[j]
		}
		s, err := summarize(n, column)
		if err != nil {
			return nil, fmt.Errorf("%s / %s prefix %d: %w", method, archetype, n, err)
		}
		out[j] = s
	}
	return out, nil
}

// Summaries summarises every method and archetype
func (r *Result) Summaries() (map[scoring.CalibrationMethod]map[string][]PrefixSummary, error) {
	out := make(map[scoring.CalibrationMethod]map[string][]PrefixSummary, len(r.Scores))
	for method, byArch := range r.Scores {
		out[method] = make(map[string][]PrefixSummary, len(byArch))
		for arch := range byArch {
			s, err := r.Summarize(method, arch)
			if err != nil {
				return nil, err
			}
			out[method][arch] = s
		}
	}
	return out, nil
}

// TrendDecreasing reports whether the mean score falls as the prefix grows:
// the last mean is below the first and means correlate negatively with the
// prefix length.
func (r *Result) TrendDecreasing(method scoring.CalibrationMethod, archetype string) (bool, error) {
	summ, err := r.Summarize(method, archetype)
	if err != nil {
		return false, err
	}
	if len(summ) < 2 {
		return false, fmt.Errorf("%w: need at least two prefixes", core.ErrInsufficientData)
	}
	ns := make(stats.Float64Data, len(summ))
	means := make(stats.Float64Data, len(summ))
	for i, s := range summ {
		ns[i] = float64(s.N)
		means[i] = s.Mean
	}
	corr, err := stats.Correlation(ns, means)
	if err != nil {
		return false, err
	}
	return summ[len(summ)-1].Mean < summ[0].Mean && corr < 0, nil
}

func summarize(n int, data stats.Float64Data) (PrefixSummary, error) {
	s := PrefixSummary{N: n}
	var err error
	if s.Mean, err = stats.Mean(data); err != nil {
		return s, err
	}
	if s.StdDev, err = stats.StandardDeviation(data); err != nil {
		return s, err
	}
	if s.Median, err = stats.Median(data); err != nil {
		return s, err
	}
	if s.P05, err = stats.PercentileNearestRank(data, 5); err != nil {
		return s, err
	}
	if s.P95, err = stats.PercentileNearestRank(data, 95); err != nil {
		return s, err
	}
	return s, nil
}
