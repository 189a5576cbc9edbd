package aggregation

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"gocalib/adapters/distribution"
	"gocalib/adapters/stats/calibration"
	"gocalib/domain/core"
	"gocalib/domain/elicitation"
	"gocalib/domain/scoring"
	"gocalib/internal"
	"gocalib/internal/testkit"
	"gocalib/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEvaluator() *Evaluator {
	logger := internal.NewLogger(internal.LogLevelError)
	return NewEvaluator(calibration.NewEngine(logger), distribution.NewRegistry(), logger)
}

func preset(key string, dist scoring.Distribution, method scoring.CalibrationMethod) scoring.Settings {
	return scoring.DefaultPresets()[key].With(dist, method)
}

func syntheticProject(t *testing.T) *elicitation.Project {
	t.Helper()
	p, err := testkit.GenerateProject(testkit.DefaultProjectConfig())
	require.NoError(t, err)
	return p
}

func TestNormalizeWeights(t *testing.T) {
	w, err := NormalizeWeights([]float64{0.2, 0, 0.6})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.25, 0, 0.75}, w, 1e-12)
	assert.Equal(t, 0.0, w[1])

	rng := rand.New(rand.NewPCG(1, 1))
	for trial := 0; trial < 100; trial++ {
		raw := make([]float64, 1+rng.IntN(10))
		for i := range raw {
			if rng.Float64() < 0.3 {
				continue
			}
			raw[i] = rng.ExpFloat64()
		}
		raw[0] += 1e-3
		w, err := NormalizeWeights(raw)
		require.NoError(t, err)
		sum := 0.0
		for i, v := range w {
			assert.GreaterOrEqual(t, v, 0.0)
			if raw[i] == 0 {
				assert.Equal(t, 0.0, v)
			}
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestNormalizeWeightsFailures(t *testing.T) {
	_, err := NormalizeWeights([]float64{0, 0, 0})
	assert.ErrorIs(t, err, core.ErrDegenerateWeights)
	assert.True(t, core.IsFatal(err))

	_, err = NormalizeWeights(nil)
	assert.ErrorIs(t, err, core.ErrDegenerateWeights)

	_, err = NormalizeWeights([]float64{0.5, math.NaN()})
	assert.ErrorIs(t, err, core.ErrNonFiniteWeight)

	_, err = NormalizeWeights([]float64{0.5, -0.1})
	assert.ErrorIs(t, err, core.ErrNonFiniteWeight)
}

func TestInformationMatchesQuantileFormula(t *testing.T) {
	levels := elicitation.Levels{0.05, 0.5, 0.95}
	bounds := ports.Bounds{Lower: 0, Upper: 10}
	d, err := distribution.PWLFamily{}.Fit(levels, []float64{2, 5, 8}, bounds)
	require.NoError(t, err)

	// Σ p_i ln(p_i / r_i) with r_i the share of the range in bin i.
	want := 2*0.05*math.Log(0.05/0.2) + 2*0.45*math.Log(0.45/0.3)
	assert.InDelta(t, want, Information(d, levels, bounds), 1e-9)

	flat, err := distribution.PWLFamily{}.Fit(levels, []float64{0.5, 5, 9.5}, bounds)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, Information(flat, levels, bounds), 1e-9)
}

func TestMixtureQuantiles(t *testing.T) {
	levels := elicitation.Levels{0.05, 0.5, 0.95}
	bounds := ports.Bounds{Lower: 0, Upper: 20}
	a, err := distribution.PWLFamily{}.Fit(levels, []float64{2, 5, 8}, bounds)
	require.NoError(t, err)
	b, err := distribution.PWLFamily{}.Fit(levels, []float64{12, 15, 18}, bounds)
	require.NoError(t, err)

	single, err := NewMixture([]ports.Distribution{a, b}, []float64{1, 0})
	require.NoError(t, err)
	q, err := single.Quantiles(levels, bounds)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 5, 8}, q, 1e-9)

	even, err := NewMixture([]ports.Distribution{a, b}, []float64{0.5, 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, even.CDF(10), 1e-12)
	med, err := even.PPF(0.5, bounds)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, med, 8.0)
	assert.LessOrEqual(t, med, 12.0)

	_, err = NewMixture([]ports.Distribution{a}, []float64{0})
	assert.ErrorIs(t, err, core.ErrDegenerateWeights)
}

func TestEvaluateGlobalWeights(t *testing.T) {
	project := syntheticProject(t)
	before := project.Clone()

	for _, dist := range scoring.Distributions {
		settings := preset(scoring.PresetGlobal, dist, scoring.MethodChi2)
		res, err := newEvaluator().Evaluate(context.Background(), project, settings, Options{})
		require.NoError(t, err, dist)

		require.Len(t, res.Experts, 3)
		sum := 0.0
		for _, s := range res.Experts {
			assert.Len(t, s.PIT, 10)
			assert.GreaterOrEqual(t, s.Calibration, 0.0)
			assert.LessOrEqual(t, s.Calibration, 1.0)
			assert.Greater(t, s.Information, 0.0)
			assert.InDelta(t, s.Calibration*s.Information, s.Combination, 1e-12)
			sum += res.Weights[s.ExpertID]
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
		assert.Greater(t, res.Experts[0].Calibration, res.Experts[1].Calibration, "calibrated vs overconfident")

		assert.Equal(t, core.ExpertID("DM_GL"), res.DecisionMaker.ID)
		assert.Len(t, res.DecisionMaker.Estimates, len(project.Items))
		for id, est := range res.DecisionMaker.Estimates {
			item, err := project.Item(id)
			require.NoError(t, err)
			assert.NoError(t, est.Check(3, item.Scale), id)
		}
		assert.Len(t, res.DMScore.PIT, 10)
		assert.GreaterOrEqual(t, res.DMScore.Calibration, 0.0)
		assert.LessOrEqual(t, res.DMScore.Calibration, 1.0)
	}
	assert.Equal(t, before, project)
}

func TestEvaluateEqualWeights(t *testing.T) {
	res, err := newEvaluator().Evaluate(context.Background(), syntheticProject(t),
		preset(scoring.PresetEqual, scoring.DistributionPWL, scoring.MethodKS), Options{})
	require.NoError(t, err)
	for _, w := range res.Weights {
		assert.InDelta(t, 1.0/3.0, w, 1e-12)
	}
}

func TestEvaluateItemWeights(t *testing.T) {
	res, err := newEvaluator().Evaluate(context.Background(), syntheticProject(t),
		preset(scoring.PresetItem, scoring.DistributionPWL, scoring.MethodChi2), Options{})
	require.NoError(t, err)
	sum := 0.0
	for _, w := range res.Weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Len(t, res.DecisionMaker.Estimates, 12)
}

func TestEvaluateFailsWhenAllWeightsVanish(t *testing.T) {
	project := syntheticProject(t)
	ev := newEvaluator()

	alpha := 1.0
	settings := preset(scoring.PresetGlobalOptimised, scoring.DistributionPWL, scoring.MethodKS)
	settings.AlphaOpt = &alpha
	_, err := ev.Evaluate(context.Background(), project, settings, Options{})
	assert.ErrorIs(t, err, core.ErrDegenerateWeights)

	user := preset(scoring.PresetUser, scoring.DistributionPWL, scoring.MethodChi2)
	_, err = ev.Evaluate(context.Background(), project, user, Options{
		UserWeights: map[core.ExpertID]float64{"calibrated": 0, "overconfident": 0, "underconfident": 0},
	})
	assert.ErrorIs(t, err, core.ErrDegenerateWeights)

	_, err = ev.Evaluate(context.Background(), project, user, Options{})
	assert.ErrorIs(t, err, core.ErrInvalidSettings)
}

func TestEvaluateAlphaSearch(t *testing.T) {
	project := syntheticProject(t)
	ev := newEvaluator()

	plain, err := ev.Evaluate(context.Background(), project, preset(scoring.PresetGlobal, scoring.DistributionPWL, scoring.MethodChi2), Options{})
	require.NoError(t, err)
	opt, err := ev.Evaluate(context.Background(), project, preset(scoring.PresetGlobalOptimised, scoring.DistributionPWL, scoring.MethodChi2), Options{})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, opt.DMScore.Combination, plain.DMScore.Combination-1e-12)
	found := false
	for _, s := range opt.Experts {
		if s.Calibration == opt.AlphaOpt {
			found = true
		}
		if s.Calibration < opt.AlphaOpt {
			assert.Equal(t, 0.0, opt.Weights[s.ExpertID], s.ExpertID)
		}
	}
	assert.True(t, found, "alpha %v is an expert calibration score", opt.AlphaOpt)
}

func TestEvaluateSkipsMalformedEstimates(t *testing.T) {
	project := syntheticProject(t)
	project.Experts[2].Estimates["S1"] = elicitation.Estimate{Values: []float64{5, 4, 6}}
	delete(project.Experts[2].Estimates, "S2")

	res, err := newEvaluator().Evaluate(context.Background(), project,
		preset(scoring.PresetGlobal, scoring.DistributionPWL, scoring.MethodChi2), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Experts[2].Skipped)
	assert.Len(t, res.Experts[2].PIT, 8)
	assert.NotContains(t, res.Experts[2].Items, core.ItemID("S1"))
}
