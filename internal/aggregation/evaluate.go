// Package aggregation scores experts and pools them into a decision maker.
package aggregation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"gocalib/adapters/distribution"
	"gocalib/domain/core"
	"gocalib/domain/elicitation"
	"gocalib/domain/scoring"
	"gocalib/internal"
	"gocalib/ports"
)

// Evaluator scores experts and builds decision makers. It holds no per-case
// state and is safe for concurrent use.
type Evaluator struct {
	scorers   ports.ScorerRegistry
	families  ports.FamilyRegistry
	logger    *internal.Logger
	overshoot float64
}

// NewEvaluator creates an evaluator using the default 10% range overshoot
func NewEvaluator(scorers ports.ScorerRegistry, families ports.FamilyRegistry, logger *internal.Logger) *Evaluator {
	return &Evaluator{
		scorers:   scorers,
		families:  families,
		logger:    logger.With("aggregation"),
		overshoot: elicitation.DefaultOvershoot,
	}
}

// Options adjust a single evaluation
type Options struct {
	// UserWeights are the raw weights used when the weight type is user.
	UserWeights map[core.ExpertID]float64
	// DMID names the decision maker; defaults to the settings id.
	DMID core.ExpertID
}

// Evaluation is the result of one pass over a roster of real experts
type Evaluation struct {
	Settings scoring.Settings
	Experts  []scoring.ExpertScore
	// Weights are the normalized weights the pool used. For item weights
	// this is the mean over pooled items.
	Weights       map[core.ExpertID]float64
	AlphaOpt      float64
	DecisionMaker *elicitation.Expert
	DMScore       scoring.ExpertScore
}

// WeightVector returns the weights in roster order
func (e *Evaluation) WeightVector() []float64 {
	out := make([]float64, len(e.Experts))
	for i, s := range e.Experts {
		out[i] = e.Weights[s.ExpertID]
	}
	return out
}

// pass carries everything fixed for one evaluation
type pass struct {
	project  *elicitation.Project
	settings scoring.Settings
	family   ports.DistributionFamily
	scorer   ports.CalibrationScorer
	bounds   map[core.ItemID]ports.Bounds
	user     map[core.ExpertID]float64
}

// Evaluate scores every expert of the project under settings, derives the
// weights and scores the pooled decision maker. The project is not modified.
func (ev *Evaluator) Evaluate(ctx context.Context, project *elicitation.Project, settings scoring.Settings, opts Options) (*Evaluation, error) {
	p, err := ev.prepare(project, settings, opts)
	if err != nil {
		return nil, err
	}

	fits := make([]map[core.ItemID]ports.Distribution, len(project.Experts))
	scores := make([]scoring.ExpertScore, len(project.Experts))
	for i, e := range project.Experts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fits[i], scores[i], err = ev.score(p, e)
		if err != nil {
			return nil, err
		}
	}

	alpha := 0.0
	var result *Evaluation
	switch {
	case !settings.Optimisation:
		result, err = ev.decisionMaker(ctx, p, fits, scores, alpha, opts.DMID)
	case settings.AlphaOpt != nil:
		alpha = *settings.AlphaOpt
		result, err = ev.decisionMaker(ctx, p, fits, scores, alpha, opts.DMID)
	default:
		alpha, result, err = ev.searchAlpha(ctx, p, fits, scores, opts.DMID)
	}
	if err != nil {
		return nil, err
	}
	result.AlphaOpt = alpha
	return result, nil
}

// ScoreExperts scores the given experts under settings without pooling. The
// item ranges come from the project's own roster.
func (ev *Evaluator) ScoreExperts(ctx context.Context, project *elicitation.Project, experts []*elicitation.Expert, settings scoring.Settings) ([]scoring.ExpertScore, error) {
	p, err := ev.prepare(project, settings, Options{})
	if err != nil {
		return nil, err
	}
	out := make([]scoring.ExpertScore, len(experts))
	for i, e := range experts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, out[i], err = ev.score(p, e); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (ev *Evaluator) prepare(project *elicitation.Project, settings scoring.Settings, opts Options) (*pass, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if err := project.Levels.Validate(); err != nil {
		return nil, err
	}
	if len(project.Experts) == 0 {
		return nil, fmt.Errorf("%w: project %s has no experts", core.ErrInsufficientData, project.Name)
	}
	family, err := ev.families.Family(settings.Distribution)
	if err != nil {
		return nil, err
	}
	scorer, err := ev.scorers.Scorer(settings.CalibrationMethod)
	if err != nil {
		return nil, err
	}

	p := &pass{
		project:  project,
		settings: settings,
		family:   family,
		scorer:   scorer,
		bounds:   make(map[core.ItemID]ports.Bounds, len(project.Items)),
		user:     opts.UserWeights,
	}
	for _, item := range project.Items {
		lo, hi, err := project.Bounds(item, ev.overshoot)
		if err != nil {
			ev.logger.Warn("project %s: item %s has no usable estimates", project.Name, item.ID)
			continue
		}
		p.bounds[item.ID] = ports.Bounds{Lower: lo, Upper: hi}
	}
	return p, nil
}

// score fits every usable estimate of one expert and computes its calibration,
// information and combination scores.
func (ev *Evaluator) score(p *pass, e *elicitation.Expert) (map[core.ItemID]ports.Distribution, scoring.ExpertScore, error) {
	res := scoring.ExpertScore{
		ExpertID:        e.ID,
		ItemInformation: make(map[core.ItemID]float64),
	}
	fits := make(map[core.ItemID]ports.Distribution, len(p.project.Items))
	levels := p.project.Levels

	infoSum := 0.0
	for _, item := range p.project.Items {
		bounds, hasRange := p.bounds[item.ID]
		if !hasRange {
			continue
		}
		est, ok := e.Estimate(item.ID)
		if !ok {
			if item.IsSeed() {
				res.Skipped++
			}
			continue
		}
		dist, err := distribution.FitEstimate(p.family, levels, item, est, bounds)
		if err != nil {
			if errors.Is(err, core.ErrMalformedEstimate) || errors.Is(err, core.ErrInfeasibleFit) {
				ev.logger.Debug("skipping expert %s item %s: %v", e.ID, item.ID, err)
				if item.IsSeed() {
					res.Skipped++
				}
				continue
			}
			return nil, res, err
		}
		fits[item.ID] = dist
		info := Information(dist, levels, bounds)
		res.ItemInformation[item.ID] = info

		if item.IsSeed() {
			x := item.Scale.Forward(*item.Realization)
			u := dist.CDF(x)
			if math.IsNaN(u) {
				return nil, res, core.NewNonFiniteScoreError("pit", u)
			}
			res.PIT = append(res.PIT, math.Max(0, math.Min(1, u)))
			res.Items = append(res.Items, item.ID)
			infoSum += info
		}
	}

	if len(res.PIT) == 0 {
		return nil, res, fmt.Errorf("%w: expert %s has no usable seed answers", core.ErrInsufficientData, e.ID)
	}
	cal, err := p.scorer.Score(res.PIT, levels)
	if err != nil {
		return nil, res, fmt.Errorf("expert %s: %w", e.ID, err)
	}
	res.Calibration = cal.Score
	res.Information = infoSum / float64(len(res.PIT))
	res.Combination = res.Calibration * res.Information
	return fits, res, nil
}

// decisionMaker pools the experts with the weights implied by the settings
// and the cutoff alpha, then scores the pooled expert.
func (ev *Evaluator) decisionMaker(ctx context.Context, p *pass, fits []map[core.ItemID]ports.Distribution, scores []scoring.ExpertScore, alpha float64, id core.ExpertID) (*Evaluation, error) {
	if id == "" {
		id = core.ExpertID(p.settings.ID)
	}
	dm := &elicitation.Expert{ID: id, Name: p.settings.Name, Estimates: make(map[core.ItemID]elicitation.Estimate)}
	weightSum := make(map[core.ExpertID]float64, len(scores))
	pooled := 0

	for _, item := range p.project.Items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bounds, ok := p.bounds[item.ID]
		if !ok {
			continue
		}
		raw, err := rawWeights(p.settings, scores, item.ID, p.user)
		if err != nil {
			return nil, err
		}
		if p.settings.Optimisation {
			raw = applyCutoff(raw, scores, alpha)
		}
		if _, err := NormalizeWeights(raw); err != nil {
			return nil, fmt.Errorf("project %s item %s: %w", p.project.Name, item.ID, err)
		}

		dists := make([]ports.Distribution, len(scores))
		for i := range scores {
			if d, ok := fits[i][item.ID]; ok {
				dists[i] = d
			} else {
				raw[i] = 0
			}
		}
		w, err := NormalizeWeights(raw)
		if errors.Is(err, core.ErrDegenerateWeights) {
			ev.logger.Warn("project %s item %s: no weighted expert answered, item left out of %s", p.project.Name, item.ID, id)
			continue
		}
		if err != nil {
			return nil, err
		}

		mix, err := NewMixture(dists, w)
		if err != nil {
			return nil, err
		}
		q, err := mix.Quantiles(p.project.Levels, bounds)
		if err != nil {
			return nil, fmt.Errorf("project %s item %s: %w", p.project.Name, item.ID, err)
		}
		values := make([]float64, len(q))
		for i, v := range q {
			values[i] = item.Scale.Inverse(v)
		}
		dm.Estimates[item.ID] = elicitation.Estimate{Values: values}

		for i, s := range scores {
			weightSum[s.ExpertID] += w[i]
		}
		pooled++
	}

	if pooled == 0 {
		return nil, fmt.Errorf("%w: no item could be pooled for %s", core.ErrDegenerateWeights, id)
	}
	weights := make(map[core.ExpertID]float64, len(weightSum))
	for eid, v := range weightSum {
		weights[eid] = v / float64(pooled)
	}

	_, dmScore, err := ev.score(p, dm)
	if err != nil {
		return nil, fmt.Errorf("decision maker %s: %w", id, err)
	}
	return &Evaluation{
		Settings:      p.settings,
		Experts:       scores,
		Weights:       weights,
		DecisionMaker: dm,
		DMScore:       dmScore,
	}, nil
}

// searchAlpha tries every distinct expert calibration score as cutoff and
// keeps the decision maker with the highest combination score.
func (ev *Evaluator) searchAlpha(ctx context.Context, p *pass, fits []map[core.ItemID]ports.Distribution, scores []scoring.ExpertScore, id core.ExpertID) (float64, *Evaluation, error) {
	candidates := make([]float64, 0, len(scores))
	seen := make(map[float64]bool, len(scores))
	for _, s := range scores {
		if !seen[s.Calibration] {
			seen[s.Calibration] = true
			candidates = append(candidates, s.Calibration)
		}
	}
	sort.Float64s(candidates)

	var (
		best      *Evaluation
		bestAlpha float64
	)
	for _, alpha := range candidates {
		res, err := ev.decisionMaker(ctx, p, fits, scores, alpha, id)
		if errors.Is(err, core.ErrDegenerateWeights) {
			continue
		}
		if err != nil {
			return 0, nil, err
		}
		if best == nil || res.DMScore.Combination > best.DMScore.Combination {
			best, bestAlpha = res, alpha
		}
	}
	if best == nil {
		return 0, nil, fmt.Errorf("%w: no calibration cutoff leaves a weighted expert", core.ErrDegenerateWeights)
	}
	ev.logger.Debug("project %s: %s alpha %.4g gives combination %.4g", p.project.Name, p.settings.ID, bestAlpha, best.DMScore.Combination)
	return bestAlpha, best, nil
}
