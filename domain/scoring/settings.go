package scoring

import (
	"fmt"
	"strings"

	"gocalib/domain/core"
)

// Distribution selects how sparse quantiles are turned into a continuous distribution
type Distribution string

const (
	DistributionMetalog Distribution = "Metalog"
	DistributionPWL     Distribution = "PWL"
)

// Distributions lists the supported families in sweep order
var Distributions = []Distribution{DistributionMetalog, DistributionPWL}

// CalibrationMethod selects the statistical-accuracy score
type CalibrationMethod string

const (
	MethodChi2 CalibrationMethod = "Chi2"
	MethodCRPS CalibrationMethod = "CRPS"
	MethodKS   CalibrationMethod = "KS"
	MethodCVM  CalibrationMethod = "CVM"
	MethodAD   CalibrationMethod = "AD"
)

// Methods lists the supported scores in sweep order
var Methods = []CalibrationMethod{MethodChi2, MethodCRPS, MethodKS, MethodCVM, MethodAD}

// WeightType selects where raw DM weights come from
type WeightType string

const (
	WeightGlobal WeightType = "global"
	WeightItem   WeightType = "item"
	WeightEqual  WeightType = "equal"
	WeightUser   WeightType = "user"
)

// ParseDistribution accepts the canonical names case-insensitively
func ParseDistribution(s string) (Distribution, error) {
	for _, d := range Distributions {
		if strings.EqualFold(s, string(d)) {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: unknown distribution %q", core.ErrInvalidSettings, s)
}

// ParseMethod accepts the canonical names case-insensitively
func ParseMethod(s string) (CalibrationMethod, error) {
	for _, m := range Methods {
		if strings.EqualFold(s, string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: unknown calibration method %q", core.ErrInvalidSettings, s)
}

// Settings configure one evaluation pass. A pass never mutates its settings;
// sweeps derive variants with With.
type Settings struct {
	ID                string            `json:"id" yaml:"id"`
	Name              string            `json:"name" yaml:"name"`
	Distribution      Distribution      `json:"distribution" yaml:"distribution"`
	CalibrationMethod CalibrationMethod `json:"calibration_method" yaml:"calibration_method"`
	WeightType        WeightType        `json:"weight_type" yaml:"weight_type"`
	Optimisation      bool              `json:"optimisation" yaml:"optimisation"`
	// AlphaOpt is the calibration cutoff used when Optimisation is set. When
	// nil the cutoff that maximises the DM combination score is searched.
	AlphaOpt *float64 `json:"alpha_opt,omitempty" yaml:"alpha_opt,omitempty"`
}

// Validate checks that every enum field holds a known value
func (s Settings) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("%w: settings id is required", core.ErrInvalidSettings)
	}
	if _, err := ParseDistribution(string(s.Distribution)); err != nil {
		return err
	}
	if _, err := ParseMethod(string(s.CalibrationMethod)); err != nil {
		return err
	}
	switch s.WeightType {
	case WeightGlobal, WeightItem, WeightEqual, WeightUser:
	default:
		return fmt.Errorf("%w: unknown weight type %q", core.ErrInvalidSettings, s.WeightType)
	}
	if s.AlphaOpt != nil && (*s.AlphaOpt < 0 || *s.AlphaOpt > 1) {
		return fmt.Errorf("%w: alpha_opt %v outside [0,1]", core.ErrInvalidSettings, *s.AlphaOpt)
	}
	return nil
}

// With returns a copy using the given distribution and calibration method
func (s Settings) With(dist Distribution, method CalibrationMethod) Settings {
	out := s
	out.Distribution = dist
	out.CalibrationMethod = method
	if s.AlphaOpt != nil {
		a := *s.AlphaOpt
		out.AlphaOpt = &a
	}
	return out
}

// Normalize canonicalises enum spellings read from settings files
func (s Settings) Normalize() (Settings, error) {
	out := s
	d, err := ParseDistribution(string(s.Distribution))
	if err != nil {
		return s, err
	}
	m, err := ParseMethod(string(s.CalibrationMethod))
	if err != nil {
		return s, err
	}
	out.Distribution = d
	out.CalibrationMethod = m
	out.WeightType = WeightType(strings.ToLower(string(s.WeightType)))
	if out.WeightType == "" {
		out.WeightType = WeightGlobal
	}
	if out.Name == "" {
		out.Name = out.ID
	}
	return out, out.Validate()
}

// Preset keys used in settings documents
const (
	PresetItemOptimised   = "ITopt"
	PresetItem            = "IT"
	PresetGlobalOptimised = "GLopt"
	PresetGlobal          = "GL"
	PresetEqual           = "EQ"
	PresetUser            = "US"
)

// DefaultPresets returns the named configurations the batch evaluators use.
// They differ only in name, weight type and optimisation.
func DefaultPresets() map[string]Settings {
	base := Settings{Distribution: DistributionMetalog, CalibrationMethod: MethodChi2}
	mk := func(id, name string, wt WeightType, opt bool) Settings {
		s := base
		s.ID, s.Name, s.WeightType, s.Optimisation = id, name, wt, opt
		return s
	}
	return map[string]Settings{
		PresetItemOptimised:   mk("DM_ITopt", "Item weights optimised", WeightItem, true),
		PresetItem:            mk("DM_IT", "Item weights", WeightItem, false),
		PresetGlobalOptimised: mk("DM_GLopt", "Global weights optimised", WeightGlobal, true),
		PresetGlobal:          mk("DM_GL", "Global weights", WeightGlobal, false),
		PresetEqual:           mk("DM_EQ", "Equal weights", WeightEqual, false),
		PresetUser:            mk("DM_US", "User weights", WeightUser, false),
	}
}
