package montecarlo

import (
	"context"
	"testing"

	"gocalib/adapters/stats/calibration"
	"gocalib/domain/core"
	"gocalib/domain/scoring"
	"gocalib/internal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHarness() *Harness {
	logger := internal.NewLogger(internal.LogLevelError)
	return NewHarness(calibration.NewEngine(logger), nil, logger)
}

func TestCalibratedCookeMeanNearHalf(t *testing.T) {
	if testing.Short() {
		t.Skip("slow: 2000 trials")
	}
	cfg := DefaultConfig()
	cfg.Trials = 2000
	cfg.Methods = []scoring.CalibrationMethod{scoring.MethodChi2}
	cfg.Archetypes = DefaultArchetypes()[:2]

	res, err := newHarness().Run(context.Background(), cfg)
	require.NoError(t, err)

	summ, err := res.Summarize(scoring.MethodChi2, "Perfectly calibrated")
	require.NoError(t, err)
	last := summ[len(summ)-1]
	assert.Equal(t, 50, last.N)
	t.Logf("calibrated Cooke at N=50: mean %.3f, median %.3f", last.Mean, last.Median)
	assert.GreaterOrEqual(t, last.Mean, 0.42)
	assert.LessOrEqual(t, last.Mean, 0.58)

	down, err := res.TrendDecreasing(scoring.MethodChi2, "Overconfident")
	require.NoError(t, err)
	assert.True(t, down, "overconfidence gets easier to detect with more data")

	over, err := res.Summarize(scoring.MethodChi2, "Overconfident")
	require.NoError(t, err)
	assert.Less(t, over[len(over)-1].Mean, 0.05)
	assert.Greater(t, over[0].Mean, over[len(over)-1].Mean)
}

func TestRunShapeAndDeterminism(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Trials = 6
	cfg.N = 12
	cfg.Workers = 3

	h := newHarness()
	a, err := h.Run(context.Background(), cfg)
	require.NoError(t, err)
	cfg.Workers = 1
	b, err := h.Run(context.Background(), cfg)
	require.NoError(t, err)

	require.Len(t, a.Scores, len(scoring.Methods))
	for _, m := range scoring.Methods {
		require.Len(t, a.Scores[m], 4)
		for _, arch := range DefaultArchetypes() {
			trials := a.Scores[m][arch.Name]
			require.Len(t, trials, 6)
			for _, traj := range trials {
				require.Len(t, traj, 10)
				for _, v := range traj {
					assert.GreaterOrEqual(t, v, 0.0)
					assert.LessOrEqual(t, v, 1.0)
				}
			}
		}
	}
	assert.Equal(t, a.Scores, b.Scores)
	assert.Equal(t, []int{3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, a.Prefixes())

	summaries, err := a.Summaries()
	require.NoError(t, err)
	assert.Len(t, summaries[scoring.MethodKS]["Biased"], 10)
}

func TestRunRejectsBadConfig(t *testing.T) {
	h := newHarness()
	cfg := DefaultConfig()
	cfg.MinPrefix = 60
	_, err := h.Run(context.Background(), cfg)
	assert.ErrorIs(t, err, core.ErrInvalidSettings)

	cfg = DefaultConfig()
	cfg.Archetypes = []Archetype{{Name: "flat", A: 0, B: 1}}
	_, err = h.Run(context.Background(), cfg)
	assert.ErrorIs(t, err, core.ErrInvalidSettings)

	cfg = DefaultConfig()
	cfg.Methods = []scoring.CalibrationMethod{"Brier"}
	_, err = h.Run(context.Background(), cfg)
	assert.ErrorIs(t, err, core.ErrInvalidSettings)
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newHarness().Run(ctx, DefaultConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStreamsAreDistinct(t *testing.T) {
	s := PCGStreams{Seed: 7}
	a := s.Stream("Overconfident", 0).Uint64()
	assert.Equal(t, a, s.Stream("Overconfident", 0).Uint64())
	assert.NotEqual(t, a, s.Stream("Overconfident", 1).Uint64())
	assert.NotEqual(t, a, s.Stream("Biased", 0).Uint64())
}
