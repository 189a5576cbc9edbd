package ports

import (
	"context"

	"gocalib/domain/core"
)

// RunRecord describes one persisted evaluation run
type RunRecord struct {
	ID          core.RunID `db:"id" json:"id"`
	Kind        string     `db:"kind" json:"kind"`
	Fingerprint string     `db:"fingerprint" json:"fingerprint"`
	CreatedAt   string     `db:"created_at" json:"created_at"`
}

// ScoreRow is one keyed scalar produced by a sweep
type ScoreRow struct {
	Table        string  `db:"table_name" json:"table"`
	CaseName     string  `db:"case_name" json:"case"`
	Axis         string  `db:"axis" json:"axis"`
	DM           string  `db:"dm" json:"dm"`
	WeightSource string  `db:"weight_source" json:"weight_source"`
	ScoreSource  string  `db:"score_source" json:"score_source"`
	Value        float64 `db:"value" json:"value"`
}

// ResultsRepository persists sweep results
type ResultsRepository interface {
	Migrate(ctx context.Context) error
	SaveRun(ctx context.Context, run RunRecord, rows []ScoreRow) error
	ListRuns(ctx context.Context, kind string) ([]RunRecord, error)
	GetRunScores(ctx context.Context, runID core.RunID) ([]ScoreRow, error)
}
