package container

import (
	"context"
	"fmt"

	"gocalib/adapters/distribution"
	"gocalib/adapters/project"
	"gocalib/adapters/stats/calibration"
	"gocalib/adapters/store"
	"gocalib/internal"
	"gocalib/internal/aggregation"
	"gocalib/internal/config"
	"gocalib/internal/interpolation"
	"gocalib/internal/montecarlo"
	"gocalib/internal/sweep"
	"gocalib/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB *sqlx.DB

	// Scoring
	Scorers   *calibration.Engine
	Families  *distribution.Registry
	Evaluator *aggregation.Evaluator

	// Inputs and results
	Loader  *project.Loader
	Store   *store.Repository
	Results ports.ResultsRepository
}

// New creates a container with every component that needs no database
func New(cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = internal.NewDefaultLogger()
	}

	c := &Container{
		Config:   cfg,
		Logger:   logger,
		Scorers:  calibration.NewEngine(logger),
		Families: distribution.NewRegistry(),
		Loader:   project.NewLoader(cfg.Paths.CasesDir, logger),
	}
	c.Evaluator = aggregation.NewEvaluator(c.Scorers, c.Families, logger)
	return c, nil
}

// InitWithDatabase opens the configured results store and brings its schema
// up to date. Calling it again is a no-op.
func (c *Container) InitWithDatabase(ctx context.Context) error {
	if c.Results != nil {
		return nil
	}

	db, err := store.Open(ctx, c.Config.Store.DSN)
	if err != nil {
		return fmt.Errorf("failed to open results store: %w", err)
	}

	repo := store.NewRepository(db, c.Logger)
	if err := repo.Migrate(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to migrate results store: %w", err)
	}

	c.DB = db
	c.Store = repo
	c.Results = repo
	c.Logger.Info("container initialized with %s results store", store.DriverFor(c.Config.Store.DSN))
	return nil
}

// HasStore reports whether a results store is configured
func (c *Container) HasStore() bool {
	return c.Config.Store.DSN != ""
}

// Runner returns a sweep runner over the shared evaluator
func (c *Container) Runner() *sweep.Runner {
	return sweep.NewRunner(c.Evaluator, c.Logger)
}

// Harness returns a Monte Carlo harness; streams are seeded from each run's
// config
func (c *Container) Harness() *montecarlo.Harness {
	return montecarlo.NewHarness(c.Scorers, nil, c.Logger)
}

// Study returns the missing-percentile interpolation study
func (c *Container) Study() *interpolation.Study {
	return interpolation.NewStudy(c.Families, c.Logger)
}

// Shutdown releases the results store, if one was opened
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB == nil {
		return nil
	}
	err := c.DB.Close()
	c.DB, c.Store, c.Results = nil, nil, nil
	return err
}
