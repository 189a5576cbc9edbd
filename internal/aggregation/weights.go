package aggregation

import (
	"fmt"
	"math"

	"gocalib/domain/core"
	"gocalib/domain/scoring"

	"gonum.org/v1/gonum/floats"
)

// NormalizeWeights scales non-negative raw weights to sum to one. Zero entries
// stay zero. An all-zero vector yields core.ErrDegenerateWeights and any
// negative or non-finite entry core.ErrNonFiniteWeight; neither case ever
// returns NaN weights.
func NormalizeWeights(raw []float64) ([]float64, error) {
	for i, w := range raw {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, fmt.Errorf("%w: raw weight %d = %v", core.ErrNonFiniteWeight, i, w)
		}
	}
	total := floats.Sum(raw)
	if total <= 0 {
		return nil, fmt.Errorf("%w: %d experts", core.ErrDegenerateWeights, len(raw))
	}
	out := append([]float64(nil), raw...)
	floats.Scale(1/total, out)
	for i, w := range out {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: normalized weight %d = %v", core.ErrNonFiniteWeight, i, w)
		}
	}
	return out, nil
}

// applyCutoff zeroes the weight of every expert whose calibration is below alpha
func applyCutoff(raw []float64, scores []scoring.ExpertScore, alpha float64) []float64 {
	out := append([]float64(nil), raw...)
	for i, s := range scores {
		if s.Calibration < alpha {
			out[i] = 0
		}
	}
	return out
}

// rawWeights returns the unnormalised weight of every expert for one item.
// For global, equal and user weights the item is irrelevant.
func rawWeights(settings scoring.Settings, scores []scoring.ExpertScore, item core.ItemID, user map[core.ExpertID]float64) ([]float64, error) {
	raw := make([]float64, len(scores))
	for i, s := range scores {
		switch settings.WeightType {
		case scoring.WeightGlobal:
			raw[i] = s.Combination
		case scoring.WeightItem:
			raw[i] = s.Calibration * itemInformation(s, item)
		case scoring.WeightEqual:
			raw[i] = 1
		case scoring.WeightUser:
			w, ok := user[s.ExpertID]
			if !ok {
				return nil, fmt.Errorf("%w: no user weight for expert %s", core.ErrInvalidSettings, s.ExpertID)
			}
			raw[i] = w
		default:
			return nil, fmt.Errorf("%w: unknown weight type %q", core.ErrInvalidSettings, settings.WeightType)
		}
	}
	return raw, nil
}

// itemInformation falls back to the mean seed information for items the
// expert was not scored on (targets).
func itemInformation(s scoring.ExpertScore, item core.ItemID) float64 {
	if v, ok := s.ItemInformation[item]; ok {
		return v
	}
	return s.Information
}
