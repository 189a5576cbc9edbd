// Package montecarlo characterises the calibration scores on synthetic
// forecasters whose PIT values follow a Beta distribution.
package montecarlo

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync"

	"gocalib/domain/core"
	"gocalib/domain/elicitation"
	"gocalib/domain/scoring"
	"gocalib/internal"
	"gocalib/ports"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"
)

// Archetype is a synthetic forecaster whose PIT values are Beta(A, B).
// A = B = 1 is perfectly calibrated, A = B < 1 overconfident, A = B > 1
// underconfident and A != B biased.
type Archetype struct {
	Name string  `json:"name" yaml:"name"`
	A    float64 `json:"a" yaml:"a"`
	B    float64 `json:"b" yaml:"b"`
}

// DefaultArchetypes returns the four archetypes of the bias study
func DefaultArchetypes() []Archetype {
	return []Archetype{
		{Name: "Perfectly calibrated", A: 1, B: 1},
		{Name: "Overconfident", A: 0.35, B: 0.35},
		{Name: "Underconfident", A: 2, B: 2},
		{Name: "Biased", A: 1, B: 2},
	}
}

// Config configures a harness run
type Config struct {
	Trials     int                         `json:"trials"`
	N          int                         `json:"n"`
	MinPrefix  int                         `json:"min_prefix"`
	Levels     elicitation.Levels          `json:"levels"`
	Archetypes []Archetype                 `json:"archetypes"`
	Methods    []scoring.CalibrationMethod `json:"methods"`
	Workers    int                         `json:"workers"`
	Seed       uint64                      `json:"seed"`
}

// DefaultConfig mirrors the published bias study: 1000 trials of 50 draws
func DefaultConfig() Config {
	return Config{
		Trials:     1000,
		N:          50,
		MinPrefix:  3,
		Levels:     elicitation.Levels{0.05, 0.5, 0.95},
		Archetypes: DefaultArchetypes(),
		Methods:    append([]scoring.CalibrationMethod(nil), scoring.Methods...),
		Seed:       1,
	}
}

// Result holds every score trajectory:
// Scores[method][archetype][trial][prefix - MinPrefix].
type Result struct {
	Config Config                                               `json:"config"`
	Scores map[scoring.CalibrationMethod]map[string][][]float64 `json:"scores"`
}

// Prefixes returns the prefix lengths in trajectory order
func (r *Result) Prefixes() []int {
	out := make([]int, 0, r.Config.N-r.Config.MinPrefix+1)
	for n := r.Config.MinPrefix; n <= r.Config.N; n++ {
		out = append(out, n)
	}
	return out
}

// Harness drives synthetic forecasters through the calibration scorers
type Harness struct {
	scorers ports.ScorerRegistry
	streams ports.RNGPort
	logger  *internal.Logger
}

// NewHarness creates a harness. A nil streams uses PCG streams seeded from
// the run config.
func NewHarness(scorers ports.ScorerRegistry, streams ports.RNGPort, logger *internal.Logger) *Harness {
	return &Harness{scorers: scorers, streams: streams, logger: logger.With("montecarlo")}
}

// Run draws Trials samples of N PIT values per archetype and scores every
// prefix of each sample with every method. Trials run in parallel; each uses
// its own stream, so results do not depend on scheduling.
func (h *Harness) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	streams := h.streams
	if streams == nil {
		streams = PCGStreams{Seed: cfg.Seed}
	}
	scorers := make([]ports.CalibrationScorer, len(cfg.Methods))
	for i, m := range cfg.Methods {
		s, err := h.scorers.Scorer(m)
		if err != nil {
			return nil, err
		}
		scorers[i] = s
	}

	res := &Result{Config: cfg, Scores: make(map[scoring.CalibrationMethod]map[string][][]float64, len(cfg.Methods))}
	for _, m := range cfg.Methods {
		res.Scores[m] = make(map[string][][]float64, len(cfg.Archetypes))
		for _, a := range cfg.Archetypes {
			res.Scores[m][a.Name] = make([][]float64, cfg.Trials)
		}
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, arch := range cfg.Archetypes {
		h.logger.Info("simulating %s (a=%.2f, b=%.2f): %d trials of %d", arch.Name, arch.A, arch.B, cfg.Trials, cfg.N)
		for trial := 0; trial < cfg.Trials; trial++ {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				traj, err := runTrial(cfg, arch, scorers, streams.Stream(arch.Name, trial))
				if err != nil {
					return fmt.Errorf("%s trial %d: %w", arch.Name, trial, err)
				}
				mu.Lock()
				for i, m := range cfg.Methods {
					res.Scores[m][arch.Name][trial] = traj[i]
				}
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

// runTrial draws one sample and scores its growing prefixes
func runTrial(cfg Config, arch Archetype, scorers []ports.CalibrationScorer, src rand.Source) ([][]float64, error) {
	beta := distuv.Beta{Alpha: arch.A, Beta: arch.B, Src: src}
	sample := make([]float64, cfg.N)
	for i := range sample {
		sample[i] = beta.Rand()
	}

	out := make([][]float64, len(scorers))
	for i, s := range scorers {
		traj := make([]float64, 0, cfg.N-cfg.MinPrefix+1)
		for n := cfg.MinPrefix; n <= cfg.N; n++ {
			r, err := s.Score(sample[:n], cfg.Levels)
			if err != nil {
				return nil, err
			}
			traj = append(traj, r.Score)
		}
		out[i] = traj
	}
	return out, nil
}

func validate(cfg Config) error {
	if cfg.Trials <= 0 || cfg.N <= 0 {
		return fmt.Errorf("%w: trials and n must be positive", core.ErrInvalidSettings)
	}
	if cfg.MinPrefix < 1 || cfg.MinPrefix > cfg.N {
		return fmt.Errorf("%w: min prefix %d outside [1, %d]", core.ErrInvalidSettings, cfg.MinPrefix, cfg.N)
	}
	if len(cfg.Methods) == 0 || len(cfg.Archetypes) == 0 {
		return fmt.Errorf("%w: no methods or archetypes", core.ErrInvalidSettings)
	}
	seen := make(map[string]bool, len(cfg.Archetypes))
	for _, a := range cfg.Archetypes {
		if !(a.A > 0) || !(a.B > 0) {
			return fmt.Errorf("%w: archetype %q needs positive shape parameters", core.ErrInvalidSettings, a.Name)
		}
		if seen[a.Name] {
			return fmt.Errorf("%w: duplicate archetype %q", core.ErrInvalidSettings, a.Name)
		}
		seen[a.Name] = true
	}
	return cfg.Levels.Validate()
}
