package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gocalib/adapters/excel"
	"gocalib/adapters/project"
	"gocalib/adapters/report"
	"gocalib/adapters/store"
	"gocalib/domain/core"
	"gocalib/domain/elicitation"
	"gocalib/domain/scoring"
	"gocalib/internal/montecarlo"
	"gocalib/internal/sweep"
	"gocalib/internal/testkit"
	"gocalib/ports"

	"github.com/spf13/cobra"
)

func newSweepCmd(a *app) *cobra.Command {
	var methods, dists string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Decision-maker calibration across all methods and distributions",
		Long: `For every case, build the GLopt, GL and EQ decision makers natively for each
(distribution, calibration method) pair, then transplant their weights to every
other method and distribution. Writes DM_results.xlsx with one sheet per table.

Example: gocalib sweep --settings settings.yaml --workers 8 --report`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			doc, err := a.settings()
			if err != nil {
				return err
			}
			presets, err := doc.Presets(scoring.PresetGlobalOptimised, scoring.PresetGlobal, scoring.PresetEqual)
			if err != nil {
				return err
			}
			user, err := doc.Preset(scoring.PresetUser)
			if err != nil {
				return err
			}
			cases, err := a.cases(ctx, doc)
			if err != nil {
				return err
			}
			runner, err := restrict(a.deps.Runner(), methods, dists)
			if err != nil {
				return err
			}

			fmt.Printf("🔬 Sweeping %d case(s) with %d worker(s)...\n", len(cases), a.cfg.Run.Workers)
			start := time.Now()
			acc, runErr := runner.RunBatch(ctx, cases, presets, user, a.cfg.Run.Workers)
			fmt.Printf("Collected %d values in %v\n", acc.Len(), time.Since(start).Round(time.Millisecond))
			if acc.Len() == 0 {
				return runErr
			}

			path, err := a.resultPath("DM_results.xlsx")
			if err != nil {
				return err
			}
			if err := excel.WriteTables(path, acc.Tables()); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			fmt.Printf("💾 %s\n", path)

			inputs := map[string]interface{}{"cases": caseNames(cases), "presets": presets, "user": user}
			if err := a.save(ctx, "sweep", inputs, acc.Rows()); err != nil {
				return err
			}
			r := report.New("Decision-maker sweep")
			if err := r.AddSweep(acc); err != nil {
				return err
			}
			if err := a.writeReport(r, "sweep_summary"); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&methods, "methods", "", "Comma-separated calibration methods (default: all)")
	cmd.Flags().StringVar(&dists, "distributions", "", "Comma-separated distributions (default: Metalog,PWL)")
	return cmd
}

func newScoresCmd(a *app) *cobra.Command {
	var methods, dists string

	cmd := &cobra.Command{
		Use:   "scores",
		Short: "Per-expert calibration, combination scores and realization percentiles",
		Long: `With the GL and GLopt decision makers both on the roster, record every
expert's calibration, combination score and realization percentiles for each
(distribution, method). Writes sa_scores_all.json, comb_scores_all.json and
percentiles_all.json.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			doc, err := a.settings()
			if err != nil {
				return err
			}
			global, err := doc.Preset(scoring.PresetGlobal)
			if err != nil {
				return err
			}
			globalOpt, err := doc.Preset(scoring.PresetGlobalOptimised)
			if err != nil {
				return err
			}
			cases, err := a.cases(ctx, doc)
			if err != nil {
				return err
			}
			runner, err := restrict(a.deps.Runner(), methods, dists)
			if err != nil {
				return err
			}

			dumps, runErr := runner.DumpBatch(ctx, cases, global, globalOpt, a.cfg.Run.Workers)
			for name, v := range map[string]interface{}{
				"sa_scores_all.json":   dumps.Calibration,
				"comb_scores_all.json": dumps.Combination,
				"percentiles_all.json": dumps.Percentiles,
			} {
				if err := a.writeJSON(name, v); err != nil {
					return err
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&methods, "methods", "", "Comma-separated calibration methods (default: all)")
	cmd.Flags().StringVar(&dists, "distributions", "", "Comma-separated distributions (default: Metalog,PWL)")
	return cmd
}

func newSimulateCmd(a *app) *cobra.Command {
	var (
		trials  int
		n       int
		levels  string
		methods string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Monte Carlo behaviour of the calibration scores under synthetic bias",
		Long: `Draw PIT samples from Beta archetypes (perfectly calibrated, overconfident,
underconfident, biased) and score every prefix of each sample with each method.
Writes sampled_sa_scores.json.

Example: gocalib simulate --trials 10000 --n 50 --levels 0.05,0.5,0.95`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := montecarlo.DefaultConfig()
			cfg.Trials, cfg.N, cfg.Workers, cfg.Seed = trials, n, a.cfg.Run.Workers, a.cfg.Run.Seed
			lv, err := parseLevels(levels)
			if err != nil {
				return err
			}
			cfg.Levels = lv
			if methods != "" {
				if cfg.Methods, err = parseMethods(methods); err != nil {
					return err
				}
			}

			fmt.Printf("🎲 Simulating %d trials of %d realizations per archetype...\n", cfg.Trials, cfg.N)
			res, err := a.deps.Harness().Run(ctx, cfg)
			if err != nil {
				return err
			}
			if err := a.writeJSON("sampled_sa_scores.json", res.Scores); err != nil {
				return err
			}

			rows, err := simulationRows(res)
			if err != nil {
				return err
			}
			if err := a.save(ctx, "simulate", map[string]interface{}{"config": cfg}, rows); err != nil {
				return err
			}
			r := report.New("Calibration scores under synthetic bias")
			if err := r.AddSimulation(res); err != nil {
				return err
			}
			return a.writeReport(r, "simulation_summary")
		},
	}

	cmd.Flags().IntVar(&trials, "trials", 1000, "Samples per archetype")
	cmd.Flags().IntVar(&n, "n", 50, "Realizations per sample")
	cmd.Flags().StringVar(&levels, "levels", "0.05,0.5,0.95", "Comma-separated quantile levels (3 or 5)")
	cmd.Flags().StringVar(&methods, "methods", "", "Comma-separated calibration methods (default: all)")
	return cmd
}

func newInterpolateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interpolate",
		Short: "How well PWL and Metalog recover the 25th and 75th percentiles",
		Long: `For every five-percentile case, drop the 2nd and 4th percentiles, refit on the
remaining three and record CDF(original value) minus the nominal level for
linear-scale items. Writes differences_3p_5p.json.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			doc, err := a.settings()
			if err != nil {
				return err
			}
			cases, err := a.cases(ctx, doc)
			if err != nil {
				return err
			}
			projects := make([]*elicitation.Project, len(cases))
			for i, c := range cases {
				projects[i] = c.Project
			}

			diffs, err := a.deps.Study().Run(ctx, projects)
			if err != nil {
				return err
			}
			if err := a.writeJSON("differences_3p_5p.json", diffs); err != nil {
				return err
			}
			r := report.New("Missing-percentile interpolation")
			if err := r.AddInterpolation(diffs); err != nil {
				return err
			}
			return a.writeReport(r, "interpolation_summary")
		},
	}
	return cmd
}

func newGenerateCmd(a *app) *cobra.Command {
	var (
		name    string
		format  string
		seeds   int
		targets int
		levels  string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic case with calibrated, over- and underconfident experts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := testkit.DefaultProjectConfig()
			cfg.Name, cfg.SeedItems, cfg.TargetItems, cfg.Seed = name, seeds, targets, a.cfg.Run.Seed
			lv, err := parseLevels(levels)
			if err != nil {
				return err
			}
			cfg.Levels = lv
			p, err := testkit.GenerateProject(cfg)
			if err != nil {
				return err
			}

			path := filepath.Join(a.cfg.Paths.CasesDir, name+"."+format)
			switch format {
			case "json":
				err = project.WriteFile(path, p)
			case "xlsx":
				err = excel.WriteProject(path, p)
			default:
				return fmt.Errorf("unknown format %q (json or xlsx)", format)
			}
			if err != nil {
				return err
			}
			fmt.Printf("💾 %s (%d experts, %d items)\n", path, len(p.Experts), len(p.Items))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "synthetic", "Case name")
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json|xlsx")
	cmd.Flags().IntVar(&seeds, "seed-items", 10, "Number of seed items")
	cmd.Flags().IntVar(&targets, "target-items", 2, "Number of target items")
	cmd.Flags().StringVar(&levels, "levels", "0.05,0.5,0.95", "Comma-separated quantile levels (3 or 5)")
	return cmd
}

func newRunsCmd(a *app) *cobra.Command {
	var (
		kind       string
		migrations bool
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs persisted in the results store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.deps.InitWithDatabase(ctx); err != nil {
				return err
			}
			if migrations {
				status, err := a.deps.Store.MigrationStatus(ctx)
				if err != nil {
					return err
				}
				printMigrations(cmd.OutOrStdout(), status)
			}
			repo := a.deps.Results
			runs, err := repo.ListRuns(ctx, kind)
			if err != nil {
				return err
			}
			for _, r := range runs {
				rows, err := repo.GetRunScores(ctx, r.ID)
				if err != nil {
					return err
				}
				fmt.Printf("%s  %-8s  %s  %6d rows  %s\n", r.CreatedAt, r.Kind, r.ID, len(rows), core.Hash(r.Fingerprint).Short())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Only runs of this kind (sweep|simulate)")
	cmd.Flags().BoolVar(&migrations, "migrations", false, "Also list the store's schema migrations")
	return cmd
}

func printMigrations(w io.Writer, status []store.MigrationStatus) {
	for _, m := range status {
		state := "pending"
		if m.Applied {
			state = "applied"
		}
		fmt.Fprintf(w, "migration %s  %-12s  %s\n", m.Version, m.Name, state)
	}
}

func restrict(r *sweep.Runner, methods, dists string) (*sweep.Runner, error) {
	if methods != "" {
		ms, err := parseMethods(methods)
		if err != nil {
			return nil, err
		}
		r = r.WithMethods(ms...)
	}
	if dists != "" {
		var ds []scoring.Distribution
		for _, s := range strings.Split(dists, ",") {
			d, err := scoring.ParseDistribution(strings.TrimSpace(s))
			if err != nil {
				return nil, err
			}
			ds = append(ds, d)
		}
		r = r.WithDistributions(ds...)
	}
	return r, nil
}

func parseMethods(s string) ([]scoring.CalibrationMethod, error) {
	var out []scoring.CalibrationMethod
	for _, part := range strings.Split(s, ",") {
		m, err := scoring.ParseMethod(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func parseLevels(s string) (elicitation.Levels, error) {
	var out elicitation.Levels
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid level %q: %w", part, err)
		}
		out = append(out, v)
	}
	return out, out.Validate()
}

func caseNames(cases []sweep.Case) []string {
	out := make([]string, len(cases))
	for i, c := range cases {
		out[i] = c.Name
	}
	return out
}

// simulationRows stores the mean trajectory of each method and archetype
func simulationRows(res *montecarlo.Result) ([]ports.ScoreRow, error) {
	summaries, err := res.Summaries()
	if err != nil {
		return nil, err
	}
	var rows []ports.ScoreRow
	for method, byArch := range summaries {
		for arch, summ := range byArch {
			for _, s := range summ {
				rows = append(rows, ports.ScoreRow{
					Table:        "MC_mean_scores",
					CaseName:     arch,
					Axis:         string(method),
					DM:           "-",
					WeightSource: "-",
					ScoreSource:  fmt.Sprintf("n=%03d", s.N),
					Value:        s.Mean,
				})
			}
		}
	}
	return rows, nil
}
