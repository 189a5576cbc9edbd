package aggregation

import (
	"math"
	"sort"

	"gocalib/domain/elicitation"
	"gocalib/ports"
)

// informationCells is the number of equal cells the intrinsic range is split
// into before the distribution's own quantiles are merged in as extra knots.
const informationCells = 200

// Information is the relative information of a fitted distribution with
// respect to the uniform background over the item's intrinsic range:
// ∫ f ln(f/u). The distribution's quantiles at the elicited levels are used as
// knots, so the value is exact for piecewise-linear fits.
func Information(dist ports.Distribution, levels elicitation.Levels, bounds ports.Bounds) float64 {
	span := bounds.Upper - bounds.Lower
	if !(span > 0) {
		return 0
	}

	knots := make([]float64, 0, informationCells+1+len(levels))
	for i := 0; i <= informationCells; i++ {
		knots = append(knots, bounds.Lower+span*float64(i)/informationCells)
	}
	for _, p := range levels {
		q := dist.PPF(p)
		if q > bounds.Lower && q < bounds.Upper {
			knots = append(knots, q)
		}
	}
	sort.Float64s(knots)

	// Mass outside the range (unbounded fits) is ignored and the rest renormalised.
	lo, hi := dist.CDF(bounds.Lower), dist.CDF(bounds.Upper)
	mass := hi - lo
	if !(mass > 0) {
		return 0
	}

	info := 0.0
	prev := lo
	for i := 1; i < len(knots); i++ {
		width := knots[i] - knots[i-1]
		if width <= 0 {
			continue
		}
		c := dist.CDF(knots[i])
		pi := (c - prev) / mass
		prev = c
		if pi > 0 {
			info += pi * math.Log(pi*span/width)
		}
	}
	return math.Max(info, 0)
}
