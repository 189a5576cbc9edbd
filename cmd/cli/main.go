package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gocalib/adapters/report"
	"gocalib/adapters/store"
	"gocalib/internal"
	"gocalib/internal/config"
	"gocalib/internal/container"
	"gocalib/internal/sweep"
	"gocalib/ports"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// app carries the resolved configuration and dependencies shared by every
// command
type app struct {
	cfg    *config.Config
	logger *internal.Logger
	deps   *container.Container
	report bool
}

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	a := &app{}
	rootCmd := &cobra.Command{
		Use:          "gocalib",
		Short:        "Expert calibration scoring and decision-maker aggregation",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("settings", "", "Settings document (YAML or JSON); overrides CALIB_SETTINGS_FILE")
	flags.String("cases-dir", "", "Directory holding the case files; overrides CALIB_CASES_DIR")
	flags.String("results-dir", "", "Directory for result files; overrides CALIB_RESULTS_DIR")
	flags.Int("workers", 0, "Parallel workers; overrides CALIB_WORKERS")
	flags.Uint64("seed", 0, "Random seed; overrides CALIB_SEED")
	flags.String("store", "", "Results store DSN (postgres:// URL or SQLite file); overrides CALIB_STORE_DSN")
	flags.BoolVar(&a.report, "report", false, "Also write a Markdown/HTML summary next to the results")

	rootCmd.AddCommand(
		newSweepCmd(a),
		newScoresCmd(a),
		newSimulateCmd(a),
		newInterpolateCmd(a),
		newGenerateCmd(a),
		newRunsCmd(a),
	)

	err := rootCmd.Execute()
	if cerr := a.shutdown(context.Background()); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if v, _ := flags.GetString("settings"); v != "" {
		cfg.Paths.SettingsFile = v
	}
	if v, _ := flags.GetString("cases-dir"); v != "" {
		cfg.Paths.CasesDir = v
	}
	if v, _ := flags.GetString("results-dir"); v != "" {
		cfg.Paths.ResultsDir = v
	}
	if v, _ := flags.GetInt("workers"); v > 0 {
		cfg.Run.Workers = v
	}
	if flags.Changed("seed") {
		cfg.Run.Seed, _ = flags.GetUint64("seed")
	}
	if v, _ := flags.GetString("store"); v != "" {
		cfg.Store.DSN = v
	}
	a.cfg = cfg
	a.logger = internal.NewConfiguredLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	a.deps, err = container.New(cfg, a.logger)
	return err
}

// shutdown closes whatever the command opened, also after a failed run
func (a *app) shutdown(ctx context.Context) error {
	if a.deps == nil {
		return nil
	}
	return a.deps.Shutdown(ctx)
}

func (a *app) settings() (*config.SettingsDocument, error) {
	return config.LoadSettingsFile(a.cfg.Paths.SettingsFile)
}

// cases loads the settings' case list, or every case in the directory when
// the list is empty, and attaches the configured exclusions
func (a *app) cases(ctx context.Context, doc *config.SettingsDocument) ([]sweep.Case, error) {
	names := doc.Files
	if len(names) == 0 {
		var err error
		if names, err = a.deps.Loader.List(); err != nil {
			return nil, err
		}
	}
	projects, err := a.deps.Loader.LoadAll(ctx, names)
	if err != nil {
		return nil, err
	}
	out := make([]sweep.Case, len(projects))
	for i, p := range projects {
		out[i] = sweep.Case{Name: names[i], Project: p, Exclude: doc.Exclusions(names[i])}
	}
	return out, nil
}

// save persists rows when a store is configured
func (a *app) save(ctx context.Context, kind string, inputs map[string]interface{}, rows []ports.ScoreRow) error {
	if !a.deps.HasStore() {
		return nil
	}
	if err := a.deps.InitWithDatabase(ctx); err != nil {
		return err
	}
	run, err := store.NewRun(kind, inputs)
	if err != nil {
		return err
	}
	if err := a.deps.Results.SaveRun(ctx, run, rows); err != nil {
		return err
	}
	fmt.Printf("💾 Stored run %s (%d rows)\n", run.ID, len(rows))
	return nil
}

func (a *app) writeReport(r *report.Report, base string) error {
	if !a.report {
		return nil
	}
	md, html, err := r.WriteFiles(a.cfg.Paths.ResultsDir, base)
	if err != nil {
		return err
	}
	fmt.Printf("📝 Report written to %s and %s\n", md, html)
	return nil
}

func (a *app) resultPath(name string) (string, error) {
	if err := os.MkdirAll(a.cfg.Paths.ResultsDir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(a.cfg.Paths.ResultsDir, name), nil
}

func (a *app) writeJSON(name string, v interface{}) error {
	path, err := a.resultPath(name)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("💾 %s\n", path)
	return nil
}
