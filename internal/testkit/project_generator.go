package testkit

import (
	"fmt"
	"math/rand/v2"

	"gocalib/domain/core"
	"gocalib/domain/elicitation"

	"gonum.org/v1/gonum/stat/distuv"
)

// ExpertProfile describes how a synthetic expert states its uncertainty.
// Spread is the ratio of the stated to the actual error scale: 1 is well
// calibrated, below 1 overconfident, above 1 underconfident. Bias shifts the
// stated median in units of the actual error scale.
type ExpertProfile struct {
	ID     string  `json:"id"`
	Spread float64 `json:"spread"`
	Bias   float64 `json:"bias"`
}

// ProjectGeneratorConfig configures the synthetic elicitation generator
type ProjectGeneratorConfig struct {
	Name        string             `json:"name"`
	Experts     []ExpertProfile    `json:"experts"`
	SeedItems   int                `json:"seed_items"`
	TargetItems int                `json:"target_items"`
	Levels      elicitation.Levels `json:"levels"`
	// LogEvery puts every n-th item on a log scale; 0 disables log items.
	LogEvery int    `json:"log_every"`
	Seed     uint64 `json:"seed"`
}

// DefaultProjectConfig returns a small three-percentile study with one
// calibrated, one overconfident and one underconfident expert.
func DefaultProjectConfig() ProjectGeneratorConfig {
	return ProjectGeneratorConfig{
		Name: "synthetic",
		Experts: []ExpertProfile{
			{ID: "calibrated", Spread: 1},
			{ID: "overconfident", Spread: 0.3},
			{ID: "underconfident", Spread: 3},
		},
		SeedItems:   10,
		TargetItems: 2,
		Levels:      elicitation.Levels{0.05, 0.5, 0.95},
		Seed:        42,
	}
}

// ProjectGenerator generates synthetic elicitation projects with known
// expert calibration.
type ProjectGenerator struct {
	config ProjectGeneratorConfig
	rng    *rand.Rand
}

// NewProjectGenerator creates a generator seeded from the config
func NewProjectGenerator(config ProjectGeneratorConfig) *ProjectGenerator {
	return &ProjectGenerator{
		config: config,
		rng:    rand.New(rand.NewPCG(config.Seed, 0x9e3779b97f4a7c15)),
	}
}

// Generate builds the project. Items are named S1.. and T1.., realizations
// are drawn around 50 (or e^4 on log items) with unit error scale 10 (0.5 on
// log items).
func (g *ProjectGenerator) Generate() (*elicitation.Project, error) {
	cfg := g.config
	if err := cfg.Levels.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Experts) == 0 || cfg.SeedItems <= 0 {
		return nil, fmt.Errorf("%w: generator needs experts and seed items", core.ErrInsufficientData)
	}

	p := &elicitation.Project{
		Name:   cfg.Name,
		Levels: append(elicitation.Levels(nil), cfg.Levels...),
	}
	for _, prof := range cfg.Experts {
		p.Experts = append(p.Experts, &elicitation.Expert{
			ID:        core.ExpertID(prof.ID),
			Name:      prof.ID,
			Estimates: make(map[core.ItemID]elicitation.Estimate),
		})
	}

	total := cfg.SeedItems + cfg.TargetItems
	for j := 0; j < total; j++ {
		item := elicitation.Item{Scale: elicitation.ScaleUniform}
		if cfg.LogEvery > 0 && (j+1)%cfg.LogEvery == 0 {
			item.Scale = elicitation.ScaleLog
		}
		center, sigma := 50.0, 10.0
		if item.Scale == elicitation.ScaleLog {
			center, sigma = 4.0, 0.5
		}
		truth := center + sigma*g.rng.NormFloat64()

		if j < cfg.SeedItems {
			item.ID = core.ItemID(fmt.Sprintf("S%d", j+1))
			r := item.Scale.Inverse(truth)
			item.Realization = &r
		} else {
			item.ID = core.ItemID(fmt.Sprintf("T%d", j-cfg.SeedItems+1))
		}
		p.Items = append(p.Items, item)

		for i, prof := range cfg.Experts {
			median := truth + sigma*(g.rng.NormFloat64()+prof.Bias)
			stated := distuv.Normal{Mu: median, Sigma: sigma * prof.Spread}
			values := make([]float64, len(cfg.Levels))
			for k, lvl := range cfg.Levels {
				values[k] = item.Scale.Inverse(stated.Quantile(lvl))
			}
			p.Experts[i].Estimates[item.ID] = elicitation.Estimate{Values: values}
		}
	}
	return p, p.Validate()
}

// GenerateProject is a shorthand for NewProjectGenerator(cfg).Generate()
func GenerateProject(cfg ProjectGeneratorConfig) (*elicitation.Project, error) {
	return NewProjectGenerator(cfg).Generate()
}

// Realization returns a pointer to v, for building items by hand
func Realization(v float64) *float64 {
	return &v
}

// Uniform returns the PIT sample of a perfectly calibrated forecaster
func Uniform(rng *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.Float64()
	}
	return out
}
