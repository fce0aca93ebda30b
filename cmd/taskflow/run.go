package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aristath/taskflow/internal/config"
	"github.com/aristath/taskflow/internal/persistence"
	"github.com/aristath/taskflow/internal/report"
	"github.com/aristath/taskflow/internal/scheduler"
)

type runOptions struct {
	tasksPath       string
	policy          string
	mode            string
	concurrency     int
	timeScale       float64
	format          string
	archivePath     string
	strictResources bool
	retry           bool
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a task batch with a scheduling policy and print the report",
		Long: `Run a task batch once and print the execution report.

Without --tasks the built-in university sample batch is used.

Examples:
  # Priority scheduling of the sample batch, no waiting
  taskflow run --time-scale 0

  # Dependency-first ordering of a batch file, as JSON
  taskflow run --tasks batch.yaml --policy dependency --format json

  # Four tasks at a time, archiving the report
  taskflow run --tasks batch.yaml --mode parallel --concurrency 4 --archive runs.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, global, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.tasksPath, "tasks", "t", "", "task batch file (YAML or JSON)")
	cmd.Flags().StringVarP(&opts.policy, "policy", "p", "", "scheduling policy: PRIORITY, SHORTEST or DEPENDENCY")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "single-pass, topological or parallel")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "max concurrent tasks in parallel mode")
	cmd.Flags().Float64Var(&opts.timeScale, "time-scale", 0, "multiplier on task durations (0 skips the wait)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "table", "report format: table, json or yaml")
	cmd.Flags().StringVar(&opts.archivePath, "archive", "", "SQLite archive to store the report in")
	cmd.Flags().BoolVar(&opts.strictResources, "strict-resources", false, "leave out tasks that need resources the pool is not seeded with")
	cmd.Flags().BoolVar(&opts.retry, "retry", false, "retry failed work with backoff and per-category circuit breakers")

	return cmd
}

// applyFlags overlays explicitly set flags on the loaded config.
func (o *runOptions) applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("policy") {
		cfg.Policy = o.policy
	}
	if flags.Changed("mode") {
		cfg.Mode = o.mode
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = o.concurrency
	}
	if flags.Changed("time-scale") {
		cfg.TimeScale = o.timeScale
	}
	if flags.Changed("archive") {
		cfg.ArchivePath = o.archivePath
	}
	if flags.Changed("strict-resources") {
		cfg.StrictResources = o.strictResources
	}
	if flags.Changed("retry") {
		cfg.Resilience.Enabled = o.retry
	}
	return cfg.Validate()
}

func runRun(cmd *cobra.Command, global *globalOptions, opts *runOptions) error {
	ctx := cmd.Context()

	cfg, _, _, err := global.loadConfig()
	if err != nil {
		return err
	}
	if err := opts.applyFlags(cmd, cfg); err != nil {
		return err
	}

	logger, err := global.logger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	policy, err := scheduler.ParsePolicy(cfg.Policy)
	if err != nil {
		return err
	}

	batch, err := loadBatch(opts.tasksPath)
	if err != nil {
		return err
	}
	exec, err := newExecutor(cfg, batch, nil, logger)
	if err != nil {
		return err
	}

	res, runErr := exec.Run(ctx, policy)
	if res == nil {
		return runErr
	}

	rep := report.FromResult(res)
	out, err := rep.Encode(opts.format)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	if opts.format != "table" && opts.format != "" {
		fmt.Fprintln(cmd.OutOrStdout())
	}

	if cfg.ArchivePath != "" {
		if err := archive(cmd, cfg.ArchivePath, rep); err != nil {
			return err
		}
		logger.Info("report archived", zap.String("run_id", rep.RunID), zap.String("archive", cfg.ArchivePath))
	}

	return runErr
}

func archive(cmd *cobra.Command, path string, rep report.Report) error {
	store, err := persistence.NewSQLiteStore(cmd.Context(), path)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer store.Close()

	if err := store.SaveRun(cmd.Context(), rep); err != nil {
		return fmt.Errorf("archiving report: %w", err)
	}
	return nil
}
