package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"gocalib/adapters/stats/calibration"
	"gocalib/adapters/store"
	"gocalib/domain/core"
	"gocalib/domain/elicitation"
	"gocalib/domain/scoring"
	"gocalib/internal"
	"gocalib/internal/config"
	"gocalib/internal/container"
	"gocalib/internal/montecarlo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevels(t *testing.T) {
	lv, err := parseLevels("0.05, 0.5,0.95")
	require.NoError(t, err)
	assert.Equal(t, elicitation.Levels{0.05, 0.5, 0.95}, lv)

	_, err = parseLevels("0.05,0.95")
	assert.ErrorIs(t, err, core.ErrInvalidLevels)
	_, err = parseLevels("a,b,c")
	assert.Error(t, err)
}

func TestParseMethods(t *testing.T) {
	ms, err := parseMethods("chi2,ks, AD")
	require.NoError(t, err)
	assert.Equal(t, []scoring.CalibrationMethod{scoring.MethodChi2, scoring.MethodKS, scoring.MethodAD}, ms)

	_, err = parseMethods("brier")
	assert.ErrorIs(t, err, core.ErrInvalidSettings)
}

func TestSimulationRows(t *testing.T) {
	logger := internal.NewLogger(internal.LogLevelError)
	cfg := montecarlo.DefaultConfig()
	cfg.Trials, cfg.N = 5, 6
	cfg.Methods = []scoring.CalibrationMethod{scoring.MethodKS}
	cfg.Archetypes = montecarlo.DefaultArchetypes()[:2]
	res, err := montecarlo.NewHarness(calibration.NewEngine(logger), nil, logger).Run(context.Background(), cfg)
	require.NoError(t, err)

	rows, err := simulationRows(res)
	require.NoError(t, err)
	// 2 archetypes x prefixes 3..6
	assert.Len(t, rows, 8)
	for _, r := range rows {
		assert.Equal(t, "KS", r.Axis)
		assert.GreaterOrEqual(t, r.Value, 0.0)
		assert.LessOrEqual(t, r.Value, 1.0)
	}
}

func TestPrintMigrations(t *testing.T) {
	var buf bytes.Buffer
	printMigrations(&buf, []store.MigrationStatus{
		{Version: "001", Name: "runs", Applied: true},
		{Version: "002", Name: "run_scores"},
	})
	out := buf.String()
	assert.Contains(t, out, "migration 001  runs          applied\n")
	assert.Contains(t, out, "migration 002  run_scores    pending\n")
}

func TestShutdownClosesStore(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, (&app{}).shutdown(ctx))

	cfg := &config.Config{
		Paths: config.PathConfig{CasesDir: t.TempDir(), ResultsDir: t.TempDir()},
		Run:   config.RunConfig{Workers: 1},
		Store: config.StoreConfig{DSN: filepath.Join(t.TempDir(), "runs.db")},
	}
	logger := internal.NewLogger(internal.LogLevelError)
	deps, err := container.New(cfg, logger)
	require.NoError(t, err)
	require.NoError(t, deps.InitWithDatabase(ctx))

	a := &app{cfg: cfg, logger: logger, deps: deps}
	require.NoError(t, a.shutdown(ctx))
	assert.Nil(t, deps.DB)
}
