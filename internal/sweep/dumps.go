package sweep

import (
	"context"
	"fmt"
	"sync"

	"gocalib/domain/core"
	"gocalib/domain/scoring"
	"gocalib/internal/aggregation"
)

// Nested is case → distribution → method → expert → value
type Nested map[string]map[string]map[string]map[string]float64

// PercentileDump is case → distribution → method → expert → item → percentile
type PercentileDump map[string]map[string]map[string]map[string]map[string]float64

// Dumps are the per-expert results with both global decision makers present
type Dumps struct {
	mu          sync.Mutex
	Calibration Nested
	Combination Nested
	Percentiles PercentileDump
}

// NewDumps creates empty dumps
func NewDumps() *Dumps {
	return &Dumps{Calibration: Nested{}, Combination: Nested{}, Percentiles: PercentileDump{}}
}

// Merge copies other's cases into d
func (d *Dumps) Merge(other *Dumps) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, v := range other.Calibration {
		d.Calibration[k] = v
	}
	for k, v := range other.Combination {
		d.Combination[k] = v
	}
	for k, v := range other.Percentiles {
		d.Percentiles[k] = v
	}
}

// ExpertDumps computes, for every (method, distribution), the non-optimised
// and optimised global decision makers side by side and records calibration,
// combination and realization percentiles of every roster member.
func (r *Runner) ExpertDumps(ctx context.Context, c Case, global, globalOpt scoring.Settings) (*Dumps, error) {
	project, err := prepare(c, false)
	if err != nil {
		return nil, err
	}
	session, err := aggregation.NewSession(r.evaluator, project)
	if err != nil {
		return nil, err
	}

	out := NewDumps()
	out.Calibration[c.Name] = map[string]map[string]map[string]float64{}
	out.Combination[c.Name] = map[string]map[string]map[string]float64{}
	out.Percentiles[c.Name] = map[string]map[string]map[string]map[string]float64{}

	for _, method := range r.methods {
		for _, dist := range r.distributions {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			var last scoring.Settings
			for _, s := range []scoring.Settings{global, globalOpt} {
				last = s.With(dist, method)
				if err := session.Configure(last); err != nil {
					return nil, err
				}
				if _, err := session.ComputeDecisionMaker(ctx); err != nil {
					return nil, fmt.Errorf("case %s %s %s/%s: %w", c.Name, s.ID, dist, method, err)
				}
			}
			if n := len(session.RosterIDs()); n != session.RealCount()+2 {
				return nil, fmt.Errorf("case %s: roster has %d experts, want %d", c.Name, n, session.RealCount()+2)
			}

			scores, err := session.Scores(ctx, last)
			if err != nil {
				return nil, err
			}
			cal := make(map[string]float64, len(scores))
			comb := make(map[string]float64, len(scores))
			pct := make(map[string]map[string]float64, len(scores))
			for _, s := range scores {
				cal[s.ExpertID.String()] = s.Calibration
				comb[s.ExpertID.String()] = s.Combination
				items := make(map[string]float64, len(s.Items))
				for id, v := range s.Percentiles() {
					items[id.String()] = v
				}
				pct[s.ExpertID.String()] = items
			}
			set(out.Calibration[c.Name], string(dist), string(method), cal)
			set(out.Combination[c.Name], string(dist), string(method), comb)
			if out.Percentiles[c.Name][string(dist)] == nil {
				out.Percentiles[c.Name][string(dist)] = map[string]map[string]map[string]float64{}
			}
			out.Percentiles[c.Name][string(dist)][string(method)] = pct

			for _, s := range []scoring.Settings{global, globalOpt} {
				if err := session.RemoveSyntheticExpert(core.ExpertID(s.ID)); err != nil {
					return nil, err
				}
			}
		}
	}
	return out, nil
}

func set(m map[string]map[string]map[string]float64, dist, method string, v map[string]float64) {
	if m[dist] == nil {
		m[dist] = map[string]map[string]float64{}
	}
	m[dist][method] = v
}
