package elicitation

import (
	"math"
	"testing"

	"gocalib/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func realization(v float64) *float64 { return &v }

func sampleProject() *Project {
	return &Project{
		Name:   "sample",
		Levels: Levels{0.05, 0.5, 0.95},
		Items: []Item{
			{ID: "q1", Scale: ScaleUniform, Realization: realization(4)},
			{ID: "q2", Scale: ScaleLog, Realization: realization(100)},
			{ID: "t1", Scale: ScaleUniform},
		},
		Experts: []*Expert{
			{ID: "1", Estimates: map[core.ItemID]Estimate{
				"q1": {Values: []float64{1, 3, 6}},
				"q2": {Values: []float64{10, 50, 200}},
				"t1": {Values: []float64{0, 1, 2}},
			}},
			{ID: "2", Estimates: map[core.ItemID]Estimate{
				"q1": {Values: []float64{2, 5, 9}},
				"q2": {Values: []float64{20, 80, 1000}},
				"t1": {Values: []float64{1, 2, 3}},
			}},
		},
	}
}

func TestLevelsValidate(t *testing.T) {
	assert.NoError(t, Levels{0.05, 0.5, 0.95}.Validate())
	assert.NoError(t, Levels{0.05, 0.25, 0.5, 0.75, 0.95}.Validate())
	assert.ErrorIs(t, Levels{0.05, 0.95}.Validate(), core.ErrInvalidLevels)
	assert.ErrorIs(t, Levels{0.05, 0.05, 0.95}.Validate(), core.ErrInvalidLevels)
	assert.ErrorIs(t, Levels{0.5, 0.25, 0.95}.Validate(), core.ErrInvalidLevels)
	assert.ErrorIs(t, Levels{0, 0.5, 1}.Validate(), core.ErrInvalidLevels)
}

func TestLevelsWidths(t *testing.T) {
	w := Levels{0.05, 0.5, 0.95}.Widths()
	require.Len(t, w, 4)
	assert.InDelta(t, 0.05, w[0], 1e-12)
	assert.InDelta(t, 0.45, w[1], 1e-12)
	assert.InDelta(t, 0.45, w[2], 1e-12)
	assert.InDelta(t, 0.05, w[3], 1e-12)
}

func TestEstimateCheck(t *testing.T) {
	assert.NoError(t, Estimate{Values: []float64{1, 2, 3}}.Check(3, ScaleUniform))
	assert.Error(t, Estimate{Values: []float64{1, 2}}.Check(3, ScaleUniform))
	assert.Error(t, Estimate{Values: []float64{1, 1, 3}}.Check(3, ScaleUniform))
	assert.Error(t, Estimate{Values: []float64{1, math.NaN(), 3}}.Check(3, ScaleUniform))
	assert.Error(t, Estimate{Values: []float64{-1, 2, 3}}.Check(3, ScaleLog))
}

func TestProjectRemoveTargetsAndExperts(t *testing.T) {
	p := sampleProject()
	require.NoError(t, p.Validate())

	assert.Equal(t, 1, p.RemoveTargets())
	assert.Len(t, p.Items, 2)
	_, ok := p.Experts[0].Estimate("t1")
	assert.False(t, ok, "target estimates should be dropped with the item")

	require.NoError(t, p.RemoveExpert("2"))
	assert.Equal(t, []core.ExpertID{"1"}, p.ExpertIDs())
	assert.True(t, core.IsNotFoundError(p.RemoveExpert("2")))
}

func TestProjectCloneIsIndependent(t *testing.T) {
	p := sampleProject()
	c := p.Clone()
	c.Experts[0].Estimates["q1"].Values[0] = -100
	*c.Items[0].Realization = 99
	require.NoError(t, c.RemoveExpert("1"))

	assert.Equal(t, 1.0, p.Experts[0].Estimates["q1"].Values[0])
	assert.Equal(t, 4.0, *p.Items[0].Realization)
	assert.Len(t, p.Experts, 2)
}

func TestProjectReduceLevels(t *testing.T) {
	p := &Project{
		Name:   "five",
		Levels: Levels{0.05, 0.25, 0.5, 0.75, 0.95},
		Items:  []Item{{ID: "q1", Realization: realization(3)}},
		Experts: []*Expert{{ID: "1", Estimates: map[core.ItemID]Estimate{
			"q1": {Values: []float64{1, 2, 3, 4, 5}},
		}}},
	}
	reduced, err := p.ReduceLevels(1, 3)
	require.NoError(t, err)
	assert.Equal(t, Levels{0.05, 0.5, 0.95}, reduced.Levels)
	assert.Equal(t, []float64{1, 3, 5}, reduced.Experts[0].Estimates["q1"].Values)
	assert.Len(t, p.Experts[0].Estimates["q1"].Values, 5, "original must be untouched")

	_, err = p.ReduceLevels(1)
	assert.ErrorIs(t, err, core.ErrInvalidLevels)
}

func TestProjectBounds(t *testing.T) {
	p := sampleProject()

	lo, hi, err := p.Bounds(p.Items[0], DefaultOvershoot)
	require.NoError(t, err)
	// span of estimates and realization is [1, 9]
	assert.InDelta(t, 1-0.8, lo, 1e-12)
	assert.InDelta(t, 9+0.8, hi, 1e-12)

	lo, hi, err = p.Bounds(p.Items[1], 0)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(10), lo, 1e-12)
	assert.InDelta(t, math.Log(1000), hi, 1e-12)
}
