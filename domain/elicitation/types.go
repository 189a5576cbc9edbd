package elicitation

import (
	"fmt"
	"math"

	"gocalib/domain/core"
)

// Levels are the probability levels at which every expert states a quantile,
// e.g. {0.05, 0.5, 0.95}. Only 3 or 5 strictly increasing levels are supported.
type Levels []float64

// Validate checks the level count and ordering
func (l Levels) Validate() error {
	if len(l) != 3 && len(l) != 5 {
		return fmt.Errorf("%w: got %d levels", core.ErrInvalidLevels, len(l))
	}
	prev := 0.0
	for i, p := range l {
		if math.IsNaN(p) || p <= prev || p >= 1 {
			return fmt.Errorf("%w: level %d = %v", core.ErrInvalidLevels, i, p)
		}
		prev = p
	}
	return nil
}

// Widths returns the nominal probability mass of the len(l)+1 inter-quantile bins.
func (l Levels) Widths() []float64 {
	widths := make([]float64, len(l)+1)
	prev := 0.0
	for i, p := range l {
		widths[i] = p - prev
		prev = p
	}
	widths[len(l)] = 1 - prev
	return widths
}

// Without returns a copy of the levels with the given indices removed.
func (l Levels) Without(drop ...int) Levels {
	skip := make(map[int]bool, len(drop))
	for _, d := range drop {
		skip[d] = true
	}
	out := make(Levels, 0, len(l))
	for i, p := range l {
		if !skip[i] {
			out = append(out, p)
		}
	}
	return out
}

// Scale is the measurement scale an item is elicited on
type Scale string

const (
	ScaleUniform Scale = "uni"
	ScaleLog     Scale = "log"
)

// Forward maps a value into the space distributions are fitted in.
func (s Scale) Forward(x float64) float64 {
	if s == ScaleLog {
		return math.Log(x)
	}
	return x
}

// Inverse maps a fitted-space value back to the item's scale.
func (s Scale) Inverse(x float64) float64 {
	if s == ScaleLog {
		return math.Exp(x)
	}
	return x
}

// Item is one elicited question. Seed items carry a realization.
type Item struct {
	ID          core.ItemID `json:"id"`
	Description string      `json:"description,omitempty"`
	Scale       Scale       `json:"scale,omitempty"`
	Realization *float64    `json:"realization,omitempty"`
}

// IsSeed reports whether the item has a realized outcome
func (i Item) IsSeed() bool {
	return i.Realization != nil && !math.IsNaN(*i.Realization)
}

// Estimate holds one value per level for an (expert, item) pair. Missing
// answers are NaN.
type Estimate struct {
	Values []float64 `json:"values"`
}

// Check returns nil when the estimate is usable for n levels on the given scale.
func (e Estimate) Check(n int, scale Scale) error {
	if len(e.Values) != n {
		return fmt.Errorf("expected %d values, got %d", n, len(e.Values))
	}
	for i, v := range e.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("value %d is missing or non-finite", i)
		}
		if scale == ScaleLog && v <= 0 {
			return fmt.Errorf("value %d is not positive on a log-scale item", i)
		}
		if i > 0 && v <= e.Values[i-1] {
			return fmt.Errorf("values are not strictly increasing at %d", i)
		}
	}
	return nil
}

// Expert is a forecaster with one estimate per answered item
type Expert struct {
	ID        core.ExpertID            `json:"id"`
	Name      string                   `json:"name,omitempty"`
	Estimates map[core.ItemID]Estimate `json:"estimates"`
}

// Estimate returns the expert's estimate for an item
func (e *Expert) Estimate(item core.ItemID) (Estimate, bool) {
	est, ok := e.Estimates[item]
	return est, ok
}

// Clone returns a deep copy
func (e *Expert) Clone() *Expert {
	out := &Expert{ID: e.ID, Name: e.Name, Estimates: make(map[core.ItemID]Estimate, len(e.Estimates))}
	for id, est := range e.Estimates {
		out.Estimates[id] = Estimate{Values: append([]float64(nil), est.Values...)}
	}
	return out
}
