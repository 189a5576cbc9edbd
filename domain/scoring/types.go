package scoring

import (
	"gocalib/domain/core"
)

// ExpertScore is the outcome of scoring one expert (real or synthetic) under one Settings.
type ExpertScore struct {
	ExpertID    core.ExpertID `json:"expert_id"`
	Calibration float64       `json:"calibration"`
	Information float64       `json:"information"`
	Combination float64       `json:"combination"`
	// PIT holds the realization percentiles in seed-item order for the items that were scored.
	PIT     []float64     `json:"pit"`
	Items   []core.ItemID `json:"items"`
	Skipped int           `json:"skipped"`
	// ItemInformation is the relative information per scored seed item.
	ItemInformation map[core.ItemID]float64 `json:"item_information,omitempty"`
}

// Percentiles returns the realization percentile per scored item
func (s ExpertScore) Percentiles() map[core.ItemID]float64 {
	out := make(map[core.ItemID]float64, len(s.Items))
	for i, id := range s.Items {
		out[id] = s.PIT[i]
	}
	return out
}

// CalibrationResult is the output of one calibration scorer on one PIT sample
type CalibrationResult struct {
	Method      CalibrationMethod  `json:"method"`
	Score       float64            `json:"score"`
	Statistic   float64            `json:"statistic"`
	SampleSize  int                `json:"sample_size"`
	Diagnostics map[string]float64 `json:"diagnostics,omitempty"`
}
