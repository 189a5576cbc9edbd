package config

import (
	"os"
	"path/filepath"
	"testing"

	"gocalib/domain/core"
	"gocalib/domain/scoring"
	"gocalib/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const settingsYAML = `
files:
  - Arkansas
  - Erie Carps
settings:
  GLopt:
    name: Global weights optimised
    distribution: metalog
    calibration_method: chi2
    weight_type: Global
    optimisation: true
    alpha_opt: 0.05
  EQ:
    id: DM_EQ
    distribution: PWL
    calibration_method: KS
    weight_type: equal
exclude_experts:
  erie: ["8"]
`

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"CALIB_SETTINGS_FILE", "CALIB_CASES_DIR", "CALIB_RESULTS_DIR", "CALIB_WORKERS", "CALIB_SEED", "CALIB_STORE_DSN"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "settings.yaml", cfg.Paths.SettingsFile)
	assert.Equal(t, 4, cfg.Run.Workers)
	assert.Equal(t, uint64(42), cfg.Run.Seed)
	assert.Empty(t, cfg.Store.DSN)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CALIB_WORKERS", "8")
	t.Setenv("CALIB_SEED", "7")
	t.Setenv("CALIB_STORE_DSN", "file:results.db")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Run.Workers)
	assert.Equal(t, uint64(7), cfg.Run.Seed)
	assert.Equal(t, "file:results.db", cfg.Store.DSN)
}

func TestLoadRejectsZeroWorkers(t *testing.T) {
	t.Setenv("CALIB_WORKERS", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestLoadSettingsFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(settingsYAML), 0o644))

	doc, err := LoadSettingsFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Arkansas", "Erie Carps"}, doc.Files)

	glopt, err := doc.Preset(scoring.PresetGlobalOptimised)
	require.NoError(t, err)
	assert.Equal(t, "DM_GLopt", glopt.ID)
	assert.Equal(t, scoring.DistributionMetalog, glopt.Distribution)
	assert.Equal(t, scoring.MethodChi2, glopt.CalibrationMethod)
	assert.Equal(t, scoring.WeightGlobal, glopt.WeightType)
	require.NotNil(t, glopt.AlphaOpt)
	assert.InDelta(t, 0.05, *glopt.AlphaOpt, 1e-12)

	eq, err := doc.Preset(scoring.PresetEqual)
	require.NoError(t, err)
	assert.Equal(t, scoring.MethodKS, eq.CalibrationMethod)
	assert.Equal(t, "DM_EQ", eq.Name)

	// Presets absent from the file come from the defaults.
	gl, err := doc.Preset(scoring.PresetGlobal)
	require.NoError(t, err)
	assert.Equal(t, "DM_GL", gl.ID)

	assert.Equal(t, []core.ExpertID{"8"}, doc.Exclusions("Erie Carps"))
	assert.Empty(t, doc.Exclusions("Arkansas"))
}

func TestParseSettingsJSON(t *testing.T) {
	doc, err := ParseSettings([]byte(`{"files":["a"],"settings":{"US":{"distribution":"PWL","calibration_method":"AD","weight_type":"user"}}}`), ".json")
	require.NoError(t, err)
	us, err := doc.Preset(scoring.PresetUser)
	require.NoError(t, err)
	assert.Equal(t, scoring.WeightUser, us.WeightType)
	assert.Equal(t, scoring.MethodAD, us.CalibrationMethod)
}

func TestParseSettingsRejectsUnknownMethod(t *testing.T) {
	_, err := ParseSettings([]byte("settings:\n  GL:\n    distribution: PWL\n    calibration_method: brier\n"), ".yaml")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidSettings)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestPresetsOrderAndUnknown(t *testing.T) {
	doc, err := ParseSettings([]byte("files: []\n"), ".yaml")
	require.NoError(t, err)
	ps, err := doc.Presets(scoring.PresetGlobalOptimised, scoring.PresetGlobal, scoring.PresetEqual)
	require.NoError(t, err)
	require.Len(t, ps, 3)
	assert.Equal(t, "DM_GLopt", ps[0].ID)
	assert.Equal(t, "DM_EQ", ps[2].ID)

	_, err = doc.Presets("nope")
	assert.ErrorIs(t, err, core.ErrInvalidSettings)
}
