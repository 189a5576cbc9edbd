package distribution

import (
	"math"
	"testing"

	"gocalib/domain/core"
	"gocalib/domain/elicitation"
	"gocalib/domain/scoring"
	"gocalib/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	three = elicitation.Levels{0.05, 0.5, 0.95}
	five  = elicitation.Levels{0.05, 0.25, 0.5, 0.75, 0.95}
)

func TestPWLInterpolation(t *testing.T) {
	d, err := PWLFamily{}.Fit(three, []float64{2, 5, 8}, ports.Bounds{Lower: 0, Upper: 10})
	require.NoError(t, err)

	assert.Equal(t, 0.0, d.CDF(-1))
	assert.Equal(t, 1.0, d.CDF(11))
	assert.InDelta(t, 0.05, d.CDF(2), 1e-12)
	assert.InDelta(t, 0.025, d.CDF(1), 1e-12)
	assert.InDelta(t, 0.275, d.CDF(3.5), 1e-12)
	assert.InDelta(t, 0.975, d.CDF(9), 1e-12)

	assert.InDelta(t, 5.0, d.PPF(0.5), 1e-12)
	assert.InDelta(t, 0.0, d.PPF(0), 1e-12)
	assert.InDelta(t, 10.0, d.PPF(1), 1e-12)
	for _, p := range []float64{0.01, 0.2, 0.6, 0.99} {
		assert.InDelta(t, p, d.CDF(d.PPF(p)), 1e-12)
	}
}

func TestPWLRejectsBoundsInsideQuantiles(t *testing.T) {
	_, err := PWLFamily{}.Fit(three, []float64{2, 5, 8}, ports.Bounds{Lower: 3, Upper: 10})
	assert.ErrorIs(t, err, core.ErrInfeasibleFit)
}

func TestMetalogReproducesQuantiles(t *testing.T) {
	cases := []struct {
		levels elicitation.Levels
		values []float64
		bounds ports.Bounds
	}{
		{three, []float64{2, 5, 8}, ports.Bounds{Lower: 0, Upper: 10}},
		{three, []float64{1, 2, 9}, ports.Bounds{Lower: 0, Upper: 10}},
		{five, []float64{1, 3, 4, 6, 9}, ports.Bounds{Lower: 0, Upper: 10}},
		{five, []float64{1, 3, 4, 6, 9}, ports.Bounds{Lower: 1, Upper: 9}},
	}
	for _, tc := range cases {
		d, err := MetalogFamily{}.Fit(tc.levels, tc.values, tc.bounds)
		require.NoError(t, err)
		m := d.(*Metalog)
		if m.Terms() != len(tc.levels) {
			continue
		}
		for i, p := range tc.levels {
			assert.InDelta(t, tc.values[i], d.PPF(p), 1e-8)
			assert.InDelta(t, p, d.CDF(tc.values[i]), 1e-8)
		}
	}
}

func TestMetalogCDFIsMonotone(t *testing.T) {
	d, err := MetalogFamily{}.Fit(five, []float64{1, 3, 4, 6, 9}, ports.Bounds{Lower: 0, Upper: 10})
	require.NoError(t, err)
	assert.Equal(t, 0.0, d.CDF(0))
	assert.Equal(t, 1.0, d.CDF(10))
	prev := 0.0
	for x := 0.1; x < 10; x += 0.1 {
		c := d.CDF(x)
		assert.GreaterOrEqual(t, c, prev)
		prev = c
	}
}

func TestMetalogFallsBackToFewerTerms(t *testing.T) {
	// Strongly skewed quantiles make the exact five-term fit non-monotone.
	d, err := MetalogFamily{}.Fit(five, []float64{1, 1.1, 1.2, 1.3, 9.5}, ports.Bounds{Lower: 0.9, Upper: 9.6})
	require.NoError(t, err)
	m := d.(*Metalog)
	assert.GreaterOrEqual(t, m.Terms(), 2)
	assert.True(t, m.increasing())
}

func TestUnboundedMetalogTails(t *testing.T) {
	d, err := MetalogFamily{}.Fit(three, []float64{2, 5, 8}, ports.Bounds{Lower: 2, Upper: 8})
	require.NoError(t, err)
	assert.True(t, math.IsInf(d.PPF(0), -1))
	assert.True(t, math.IsInf(d.PPF(1), 1))
	assert.InDelta(t, 0.5, d.CDF(5), 1e-8)
}

func TestRegistryAndFitEstimate(t *testing.T) {
	r := NewRegistry()
	f, err := r.Family(scoring.DistributionPWL)
	require.NoError(t, err)
	assert.Equal(t, scoring.DistributionPWL, f.Kind())

	_, err = r.Family("Normal")
	assert.ErrorIs(t, err, core.ErrInvalidSettings)

	item := elicitation.Item{ID: "q", Scale: elicitation.ScaleLog}
	bounds := ports.Bounds{Lower: math.Log(1), Upper: math.Log(1000)}
	d, err := FitEstimate(f, three, item, elicitation.Estimate{Values: []float64{10, 100, 500}}, bounds)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, d.CDF(math.Log(100)), 1e-12)

	_, err = FitEstimate(f, three, item, elicitation.Estimate{Values: []float64{10, 5, 500}}, bounds)
	assert.ErrorIs(t, err, core.ErrMalformedEstimate)
}
