package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gocalib/domain/core"
	"gocalib/domain/scoring"
	"gocalib/internal/errors"

	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Paths PathConfig
	Run   RunConfig
	Store StoreConfig
	Log   LogConfig
}

// PathConfig holds file system paths
type PathConfig struct {
	SettingsFile string
	CasesDir     string
	ResultsDir   string
}

// RunConfig holds batch execution settings
type RunConfig struct {
	Workers int
	Seed    uint64
}

// StoreConfig holds the results store connection. An empty DSN disables persistence.
type StoreConfig struct {
	DSN string
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Paths: *loadPathConfig(),
		Run:   *loadRunConfig(),
		Store: StoreConfig{DSN: getEnvOrDefault("CALIB_STORE_DSN", "")},
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "INFO"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadPathConfig() *PathConfig {
	return &PathConfig{
		SettingsFile: getEnvOrDefault("CALIB_SETTINGS_FILE", "settings.yaml"),
		CasesDir:     getEnvOrDefault("CALIB_CASES_DIR", filepath.Join("data", "cases")),
		ResultsDir:   getEnvOrDefault("CALIB_RESULTS_DIR", filepath.Join("data", "results")),
	}
}

func loadRunConfig() *RunConfig {
	return &RunConfig{
		Workers: getEnvIntOrDefault("CALIB_WORKERS", 4),
		Seed:    getEnvUintOrDefault("CALIB_SEED", 42),
	}
}

func validateConfig(config *Config) error {
	if config.Run.Workers < 1 {
		return errors.ConfigInvalid("CALIB_WORKERS must be at least 1")
	}
	if config.Paths.CasesDir == "" {
		return errors.ConfigInvalid("cases directory is required")
	}
	return nil
}

// SettingsDocument is the settings file: the case list, the named presets
// and case-specific expert exclusions.
type SettingsDocument struct {
	Files          []string                    `json:"files" yaml:"files"`
	Settings       map[string]scoring.Settings `json:"settings" yaml:"settings"`
	ExcludeExperts map[string][]string         `json:"exclude_experts,omitempty" yaml:"exclude_experts,omitempty"`
}

// LoadSettingsFile parses a YAML or JSON settings document. Presets missing
// from the file fall back to the defaults; presets present are normalised
// and validated.
func LoadSettingsFile(path string) (*SettingsDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read settings file %s", path)
	}
	return ParseSettings(data, filepath.Ext(path))
}

// ParseSettings decodes a settings document. ext selects JSON for ".json" and
// YAML otherwise.
func ParseSettings(data []byte, ext string) (*SettingsDocument, error) {
	doc := &SettingsDocument{}
	var err error
	if strings.EqualFold(ext, ".json") {
		err = json.Unmarshal(data, doc)
	} else {
		err = yaml.Unmarshal(data, doc)
	}
	if err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, errors.Wrap(err, "failed to decode settings"))
	}

	presets := scoring.DefaultPresets()
	for key, s := range doc.Settings {
		if s.ID == "" {
			s.ID = "DM_" + key
		}
		normalized, err := s.Normalize()
		if err != nil {
			return nil, errors.Wrapf(err, "preset %s", key)
		}
		presets[key] = normalized
	}
	doc.Settings = presets
	return doc, nil
}

// Preset returns a named preset
func (d *SettingsDocument) Preset(key string) (scoring.Settings, error) {
	s, ok := d.Settings[key]
	if !ok {
		return scoring.Settings{}, errors.Wrapf(core.ErrInvalidSettings, "unknown preset %q", key)
	}
	return s, nil
}

// Presets returns the named presets in the given order
func (d *SettingsDocument) Presets(keys ...string) ([]scoring.Settings, error) {
	out := make([]scoring.Settings, 0, len(keys))
	for _, k := range keys {
		s, err := d.Preset(k)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Exclusions returns the experts removed from a case before evaluation.
// Case names match case-insensitively on substring, so "erie" covers every
// Erie study.
func (d *SettingsDocument) Exclusions(caseName string) []core.ExpertID {
	keys := make([]string, 0, len(d.ExcludeExperts))
	for k := range d.ExcludeExperts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []core.ExpertID
	lower := strings.ToLower(caseName)
	for _, k := range keys {
		if !strings.Contains(lower, strings.ToLower(k)) {
			continue
		}
		for _, id := range d.ExcludeExperts[k] {
			out = append(out, core.ExpertID(id))
		}
	}
	return out
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvUintOrDefault(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseUint(value, 10, 64); err == nil {
			return v
		}
	}
	return defaultValue
}
