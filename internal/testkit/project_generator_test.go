package testkit

import (
	"math/rand/v2"
	"testing"

	"gocalib/domain/core"
	"gocalib/domain/elicitation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateProjectShape(t *testing.T) {
	cfg := DefaultProjectConfig()
	cfg.LogEvery = 3

	p, err := GenerateProject(cfg)
	require.NoError(t, err)

	assert.Equal(t, "synthetic", p.Name)
	assert.Len(t, p.Experts, 3)
	assert.Len(t, p.Items, cfg.SeedItems+cfg.TargetItems)
	assert.Len(t, p.SeedItems(), cfg.SeedItems)

	for j, item := range p.Items {
		if j < cfg.SeedItems {
			assert.True(t, item.IsSeed(), item.ID)
		} else {
			assert.False(t, item.IsSeed(), item.ID)
		}
		if (j+1)%3 == 0 {
			assert.Equal(t, elicitation.ScaleLog, item.Scale, item.ID)
		} else {
			assert.Equal(t, elicitation.ScaleUniform, item.Scale, item.ID)
		}
		for _, e := range p.Experts {
			est, ok := e.Estimate(item.ID)
			require.True(t, ok)
			require.Len(t, est.Values, 3)
			assert.Less(t, est.Values[0], est.Values[1])
			assert.Less(t, est.Values[1], est.Values[2])
		}
	}
	assert.Equal(t, core.ItemID("S1"), p.Items[0].ID)
	assert.Equal(t, core.ItemID("T1"), p.Items[cfg.SeedItems].ID)
}

func TestGenerateProjectIsSeeded(t *testing.T) {
	a, err := GenerateProject(DefaultProjectConfig())
	require.NoError(t, err)
	b, err := GenerateProject(DefaultProjectConfig())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	cfg := DefaultProjectConfig()
	cfg.Seed = 7
	c, err := GenerateProject(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, *a.Items[0].Realization, *c.Items[0].Realization)
}

func TestOverconfidentExpertStatesNarrowerRanges(t *testing.T) {
	p, err := GenerateProject(DefaultProjectConfig())
	require.NoError(t, err)

	width := func(id core.ExpertID) float64 {
		e, err := p.Expert(id)
		require.NoError(t, err)
		var sum float64
		for _, item := range p.Items {
			est, _ := e.Estimate(item.ID)
			sum += est.Values[2] - est.Values[0]
		}
		return sum
	}
	assert.Less(t, width("overconfident"), width("calibrated"))
	assert.Less(t, width("calibrated"), width("underconfident"))
}

func TestGenerateProjectRejectsBadConfig(t *testing.T) {
	cfg := DefaultProjectConfig()
	cfg.Experts = nil
	_, err := GenerateProject(cfg)
	assert.ErrorIs(t, err, core.ErrInsufficientData)

	cfg = DefaultProjectConfig()
	cfg.Levels = elicitation.Levels{0.5, 0.05, 0.95}
	_, err = GenerateProject(cfg)
	assert.ErrorIs(t, err, core.ErrInvalidLevels)
}

func TestUniform(t *testing.T) {
	u := Uniform(rand.New(rand.NewPCG(1, 2)), 100)
	require.Len(t, u, 100)
	for _, v := range u {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
}
