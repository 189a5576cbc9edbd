package store

import (
	"context"
	"path/filepath"
	"testing"

	"gocalib/domain/core"
	"gocalib/internal"
	"gocalib/internal/sweep"
	"gocalib/ports"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newRepo(t *testing.T) *Repository {
	t.Helper()
	repo := NewRepository(openTestDB(t), internal.NewLogger(internal.LogLevelError))
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func sampleAccumulator() *sweep.Accumulator {
	acc := sweep.NewAccumulator()
	acc.ByMethod.Set(sweep.Key{Case: "a", Axis: "PWL", DM: "Global weights", WeightSource: "Chi2", ScoreSource: "KS"}, 0.31)
	acc.ByMethod.Set(sweep.Key{Case: "a", Axis: "PWL", DM: "Global weights", WeightSource: "Chi2", ScoreSource: "Chi2"}, 0.42)
	acc.ByDistribution.Set(sweep.Key{Case: "a", Axis: "KS", DM: "Equal weights", WeightSource: "PWL", ScoreSource: "Metalog"}, 0.07)
	return acc
}

func TestDriverFor(t *testing.T) {
	assert.Equal(t, "postgres", DriverFor("postgres://user@localhost/calib"))
	assert.Equal(t, "postgres", DriverFor("postgresql://localhost/calib"))
	assert.Equal(t, "sqlite", DriverFor("results.db"))
	assert.Equal(t, "sqlite", DriverFor("file:results.db?cache=shared"))
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrator(db)
	require.NoError(t, m.Up(context.Background()))
	require.NoError(t, m.Up(context.Background()))

	status, err := m.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, status, 2)
	for _, s := range status {
		assert.True(t, s.Applied, s.Version)
	}
	assert.Equal(t, "runs", status[0].Name)
}

func TestRepositoryMigrationStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t), internal.NewLogger(internal.LogLevelError))

	status, err := repo.MigrationStatus(ctx)
	require.NoError(t, err)
	require.Len(t, status, 2)
	assert.False(t, status[0].Applied)

	require.NoError(t, repo.Migrate(ctx))
	status, err = repo.MigrationStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status[0].Applied)
	assert.True(t, status[1].Applied)
	assert.Equal(t, "run_scores", status[1].Name)
}

func TestSaveAndReloadRun(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	run, err := NewRun("sweep", map[string]interface{}{"cases": []string{"a"}, "seed": 42})
	require.NoError(t, err)
	acc := sampleAccumulator()
	require.NoError(t, repo.SaveRun(ctx, run, acc.Rows()))

	runs, err := repo.ListRuns(ctx, "sweep")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, run.Fingerprint, runs[0].Fingerprint)

	rows, err := repo.GetRunScores(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	back := sweep.FromRows(rows)
	for i, tbl := range acc.Tables() {
		assert.Equal(t, tbl.Values, back.Tables()[i].Values, tbl.Name)
	}
}

func TestListRunsFiltersByKind(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	for _, kind := range []string{"sweep", "simulate", "sweep"} {
		run, err := NewRun(kind, map[string]interface{}{"kind": kind})
		require.NoError(t, err)
		require.NoError(t, repo.SaveRun(ctx, run, nil))
	}

	sweeps, err := repo.ListRuns(ctx, "sweep")
	require.NoError(t, err)
	assert.Len(t, sweeps, 2)

	all, err := repo.ListRuns(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSameInputsShareFingerprint(t *testing.T) {
	a, err := NewRun("sweep", map[string]interface{}{"seed": 1, "cases": []string{"x"}})
	require.NoError(t, err)
	b, err := NewRun("sweep", map[string]interface{}{"cases": []string{"x"}, "seed": 1})
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestGetRunScoresUnknownRun(t *testing.T) {
	_, err := newRepo(t).GetRunScores(context.Background(), core.RunID("missing"))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSaveRunRejectsDuplicateScores(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	run, err := NewRun("sweep", map[string]interface{}{})
	require.NoError(t, err)
	row := ports.ScoreRow{Table: sweep.TableMethod, CaseName: "a", Axis: "PWL", DM: "GL", WeightSource: "KS", ScoreSource: "KS", Value: 1}
	require.Error(t, repo.SaveRun(ctx, run, []ports.ScoreRow{row, row}))

	runs, err := repo.ListRuns(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), " ")
	assert.Error(t, err)
}
