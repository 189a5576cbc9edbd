// Package interpolation measures how well a distribution fitted to three
// percentiles recovers the two percentiles left out of a five-percentile
// assessment.
package interpolation

import (
	"context"
	"fmt"
	"math"

	"gocalib/adapters/distribution"
	"gocalib/domain/elicitation"
	"gocalib/domain/scoring"
	"gocalib/internal"
	"gocalib/ports"
)

// Dropped are the level indices removed from five-level projects
var Dropped = []int{1, 3}

// Differences maps a key such as "25p_pwl" to CDF(original value) - level for
// every assessed (expert, item) pair, in roster then item order.
type Differences map[string][]float64

// Study runs the missing-percentile comparison
type Study struct {
	families  ports.FamilyRegistry
	kinds     []scoring.Distribution
	logger    *internal.Logger
	overshoot float64
}

// NewStudy creates a study comparing PWL and Metalog
func NewStudy(families ports.FamilyRegistry, logger *internal.Logger) *Study {
	return &Study{
		families:  families,
		kinds:     []scoring.Distribution{scoring.DistributionPWL, scoring.DistributionMetalog},
		logger:    logger.With("interpolation"),
		overshoot: elicitation.DefaultOvershoot,
	}
}

// Run evaluates every five-level project; three-level projects are skipped
func (s *Study) Run(ctx context.Context, projects []*elicitation.Project) (Differences, error) {
	out := Differences{}
	for _, p := range projects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(p.Levels) != 5 {
			s.logger.Debug("skipping %s: %d levels", p.Name, len(p.Levels))
			continue
		}
		if err := s.project(p, out); err != nil {
			return nil, fmt.Errorf("project %s: %w", p.Name, err)
		}
	}
	return out, nil
}

// Key names the series for a dropped level and a distribution kind
func Key(level float64, kind scoring.Distribution) string {
	suffix := "ml"
	if kind == scoring.DistributionPWL {
		suffix = "pwl"
	}
	return fmt.Sprintf("%gp_%s", math.Round(level*1000)/10, suffix)
}

func (s *Study) project(full *elicitation.Project, out Differences) error {
	reduced, err := full.ReduceLevels(Dropped...)
	if err != nil {
		return err
	}
	families := make([]ports.DistributionFamily, len(s.kinds))
	for i, k := range s.kinds {
		if families[i], err = s.families.Family(k); err != nil {
			return err
		}
	}

	for ei, expert := range full.Experts {
		for _, item := range full.Items {
			if item.Scale == elicitation.ScaleLog {
				continue
			}
			est5, ok := expert.Estimate(item.ID)
			if !ok || est5.Check(len(full.Levels), item.Scale) != nil {
				continue
			}
			est3, _ := reduced.Experts[ei].Estimate(item.ID)
			lo, hi, err := full.Bounds(item, s.overshoot)
			if err != nil {
				continue
			}
			bounds := ports.Bounds{Lower: lo, Upper: hi}

			for fi, family := range families {
				dist, err := distribution.FitEstimate(family, reduced.Levels, item, est3, bounds)
				if err != nil {
					s.logger.Debug("%s expert %s item %s: %v", full.Name, expert.ID, item.ID, err)
					continue
				}
				for _, d := range Dropped {
					level := full.Levels[d]
					key := Key(level, s.kinds[fi])
					out[key] = append(out[key], dist.CDF(est5.Values[d])-level)
				}
			}
		}
	}
	return nil
}
