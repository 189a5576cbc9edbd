// Package sweep drives the decision-maker sensitivity experiments: every
// (distribution, method) pair gets a native decision maker whose weights are
// then transplanted to every other method and distribution.
package sweep

import (
	"context"
	"fmt"

	"gocalib/domain/core"
	"gocalib/domain/elicitation"
	"gocalib/domain/scoring"
	"gocalib/internal"
	"gocalib/internal/aggregation"
)

// Case is one elicitation study to sweep
type Case struct {
	Name    string
	Project *elicitation.Project
	// Exclude lists experts removed before the sweep.
	Exclude []core.ExpertID
}

// Runner executes sweeps over cases
type Runner struct {
	evaluator     *aggregation.Evaluator
	logger        *internal.Logger
	distributions []scoring.Distribution
	methods       []scoring.CalibrationMethod
}

// NewRunner creates a runner over all distributions and methods
func NewRunner(evaluator *aggregation.Evaluator, logger *internal.Logger) *Runner {
	return &Runner{
		evaluator:     evaluator,
		logger:        logger.With("sweep"),
		distributions: []scoring.Distribution{scoring.DistributionMetalog, scoring.DistributionPWL},
		methods:       append([]scoring.CalibrationMethod(nil), scoring.Methods...),
	}
}

// WithMethods restricts the calibration methods swept
func (r *Runner) WithMethods(methods ...scoring.CalibrationMethod) *Runner {
	out := *r
	out.methods = methods
	return &out
}

// WithDistributions restricts the distributions swept
func (r *Runner) WithDistributions(dists ...scoring.Distribution) *Runner {
	out := *r
	out.distributions = dists
	return &out
}

// nativeKey identifies a native decision maker within one preset
type nativeKey struct {
	dist   scoring.Distribution
	method scoring.CalibrationMethod
}

// RunCase sweeps one case: seed items only, for every preset a native pass
// over all (distribution, method) pairs followed by the method and
// distribution transplants using user settings.
func (r *Runner) RunCase(ctx context.Context, c Case, presets []scoring.Settings, user scoring.Settings) (*Accumulator, error) {
	project, err := prepare(c, true)
	if err != nil {
		return nil, err
	}
	session, err := aggregation.NewSession(r.evaluator, project)
	if err != nil {
		return nil, err
	}
	acc := NewAccumulator()

	for _, preset := range presets {
		r.logger.Info("case %s: preset %s", c.Name, preset.ID)
		weights := make(map[nativeKey]map[core.ExpertID]float64)

		for _, dist := range r.distributions {
			for _, method := range r.methods {
				ev, err := r.cycle(ctx, session, func() (*aggregation.Evaluation, error) {
					if err := session.Configure(preset.With(dist, method)); err != nil {
						return nil, err
					}
					return session.ComputeDecisionMaker(ctx)
				})
				if err != nil {
					return nil, fmt.Errorf("case %s %s %s/%s: %w", c.Name, preset.ID, dist, method, err)
				}
				weights[nativeKey{dist, method}] = ev.Weights

				acc.ByMethod.Set(Key{c.Name, string(dist), preset.Name, string(method), string(method)}, ev.DMScore.Calibration)
				acc.ByMethodInfo.Set(Key{c.Name, string(dist), preset.Name, string(method), string(method)}, ev.DMScore.Combination)
				acc.ByDistribution.Set(Key{c.Name, string(method), preset.Name, string(dist), string(dist)}, ev.DMScore.Calibration)
			}
		}

		for _, dist := range r.distributions {
			for _, method := range r.methods {
				for _, other := range r.methods {
					if other == method {
						continue
					}
					ev, err := r.transplant(ctx, session, weights[nativeKey{dist, method}], user.With(dist, other))
					if err != nil {
						return nil, fmt.Errorf("case %s %s %s/%s scored by %s: %w", c.Name, preset.ID, dist, method, other, err)
					}
					acc.ByMethod.Set(Key{c.Name, string(dist), preset.Name, string(method), string(other)}, ev.DMScore.Calibration)
					acc.ByMethodInfo.Set(Key{c.Name, string(dist), preset.Name, string(method), string(other)}, ev.DMScore.Combination)
				}
			}
		}

		for _, dist := range r.distributions {
			for _, method := range r.methods {
				for _, other := range r.distributions {
					if other == dist {
						continue
					}
					ev, err := r.transplant(ctx, session, weights[nativeKey{dist, method}], user.With(other, method))
					if err != nil {
						return nil, fmt.Errorf("case %s %s %s/%s pooled as %s: %w", c.Name, preset.ID, dist, method, other, err)
					}
					acc.ByDistribution.Set(Key{c.Name, string(method), preset.Name, string(dist), string(other)}, ev.DMScore.Calibration)
				}
			}
		}
	}
	return acc, nil
}

// transplant pools with fixed weights under other settings
func (r *Runner) transplant(ctx context.Context, session *aggregation.Session, weights map[core.ExpertID]float64, settings scoring.Settings) (*aggregation.Evaluation, error) {
	return r.cycle(ctx, session, func() (*aggregation.Evaluation, error) {
		if err := session.InjectExternalWeights(weights); err != nil {
			return nil, err
		}
		return session.ComputeWithUserWeights(ctx, settings)
	})
}

// cycle runs one compute and removes the decision maker again, checking
// that the roster is back to its real experts.
func (r *Runner) cycle(ctx context.Context, session *aggregation.Session, compute func() (*aggregation.Evaluation, error)) (*aggregation.Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ev, err := compute()
	if err != nil {
		return nil, err
	}
	if n := len(session.RosterIDs()); n != session.RealCount()+1 {
		return nil, core.NewRosterError(n, session.RealCount(), 1)
	}
	if err := session.RemoveSyntheticExpert(ev.DecisionMaker.ID); err != nil {
		return nil, err
	}
	return ev, nil
}

// prepare clones the case project and drops excluded experts and, when
// seedsOnly is set, target items.
func prepare(c Case, seedsOnly bool) (*elicitation.Project, error) {
	project := c.Project.Clone()
	for _, id := range c.Exclude {
		if err := project.RemoveExpert(id); err != nil {
			return nil, fmt.Errorf("case %s: exclude: %w", c.Name, err)
		}
	}
	if seedsOnly {
		project.RemoveTargets()
	}
	return project, nil
}
