// Package store persists sweep results in SQL: PostgreSQL when the DSN is a
// postgres URL, an embedded SQLite file otherwise.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"gocalib/domain/core"
	"gocalib/internal"
	"gocalib/internal/errors"
	"gocalib/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// DriverFor picks the database/sql driver for a DSN
func DriverFor(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	return "sqlite"
}

// Open connects to the store named by dsn
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.ConfigInvalid("store DSN is empty")
	}
	driver := DriverFor(dsn)
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, errors.StorageError(fmt.Sprintf("failed to connect to %s store", driver), err)
	}
	if driver == "sqlite" {
		// SQLite allows one writer; a single connection also keeps
		// in-memory databases alive across calls.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, errors.StorageError("failed to enable foreign keys", err)
		}
	}
	return db, nil
}

// Repository implements ports.ResultsRepository with sqlx
type Repository struct {
	db     *sqlx.DB
	logger *internal.Logger
}

var _ ports.ResultsRepository = (*Repository)(nil)

// NewRepository creates a repository over an open connection
func NewRepository(db *sqlx.DB, logger *internal.Logger) *Repository {
	return &Repository{db: db, logger: logger.With("store")}
}

// Migrate applies pending schema migrations
func (r *Repository) Migrate(ctx context.Context) error {
	if err := NewMigrator(r.db).Up(ctx); err != nil {
		return errors.StorageError("migration failed", err)
	}
	return nil
}

// MigrationStatus lists the embedded migrations and whether each is applied
func (r *Repository) MigrationStatus(ctx context.Context) ([]MigrationStatus, error) {
	status, err := NewMigrator(r.db).Status(ctx)
	if err != nil {
		return nil, errors.StorageError("failed to read migration status", err)
	}
	return status, nil
}

// NewRun builds a run record for the given kind and inputs
func NewRun(kind string, inputs map[string]interface{}) (ports.RunRecord, error) {
	fp, err := core.Fingerprint(inputs)
	if err != nil {
		return ports.RunRecord{}, err
	}
	return ports.RunRecord{
		ID:          core.NewRunID(),
		Kind:        kind,
		Fingerprint: fp.String(),
		CreatedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	}, nil
}

// SaveRun stores the run and its rows in one transaction
func (r *Repository) SaveRun(ctx context.Context, run ports.RunRecord, rows []ports.ScoreRow) error {
	if run.ID.String() == "" {
		run.ID = core.NewRunID()
	}
	if run.CreatedAt == "" {
		run.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.StorageError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx,
		`INSERT INTO runs (id, kind, fingerprint, created_at) VALUES (:id, :kind, :fingerprint, :created_at)`, run); err != nil {
		return errors.StorageError(fmt.Sprintf("failed to insert run %s", run.ID), err)
	}

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
		INSERT INTO run_scores (run_id, table_name, case_name, axis, dm, weight_source, score_source, value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return errors.StorageError("failed to prepare score insert", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, run.ID.String(), row.Table, row.CaseName, row.Axis, row.DM, row.WeightSource, row.ScoreSource, row.Value); err != nil {
			return errors.StorageError(fmt.Sprintf("failed to insert score %s/%s", row.Table, row.CaseName), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.StorageError("failed to commit run", err)
	}
	r.logger.Info("saved run %s (%s, %d rows, fingerprint %s)", run.ID, run.Kind, len(rows), core.Hash(run.Fingerprint).Short())
	return nil
}

// ListRuns returns runs of a kind, oldest first. An empty kind lists all runs.
func (r *Repository) ListRuns(ctx context.Context, kind string) ([]ports.RunRecord, error) {
	query := `SELECT id, kind, fingerprint, created_at FROM runs`
	var args []interface{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY created_at, id`

	var runs []ports.RunRecord
	if err := r.db.SelectContext(ctx, &runs, r.db.Rebind(query), args...); err != nil {
		return nil, errors.StorageError("failed to list runs", err)
	}
	return runs, nil
}

// GetRunScores returns a run's rows in key order
func (r *Repository) GetRunScores(ctx context.Context, runID core.RunID) ([]ports.ScoreRow, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, r.db.Rebind(`SELECT COUNT(*) FROM runs WHERE id = ?`), runID.String())
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.StorageError("failed to look up run", err)
	}
	if exists == 0 {
		return nil, core.NewNotFoundError("run", runID.String())
	}

	var rows []ports.ScoreRow
	err = r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT table_name, case_name, axis, dm, weight_source, score_source, value
		FROM run_scores
		WHERE run_id = ?
		ORDER BY table_name, case_name, axis, dm, weight_source, score_source`), runID.String())
	if err != nil {
		return nil, errors.StorageError("failed to load run scores", err)
	}
	return rows, nil
}
