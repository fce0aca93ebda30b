package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aristath/taskflow/internal/config"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "taskflow",
		Short: "Priority task scheduler with dependency gating and resource allocation",
		Long: `taskflow orders a batch of tasks with a scheduling policy, runs each task
only once all of its dependencies have completed, allocates the resource
units it needs from a shared pool, and prints a report of what completed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.logLevel == "" {
				return nil
			}
			if err := config.ValidateLogLevel(opts.logLevel); err != nil {
				return fmt.Errorf("--log-level: %w", err)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default: ~/.taskflow/config.json merged with .taskflow/config.json)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	root.AddCommand(
		newRunCmd(opts),
		newValidateCmd(opts),
		newPoliciesCmd(),
		newSampleCmd(),
		newHistoryCmd(opts),
		newInteractiveCmd(opts),
	)
	return root
}

// loadConfig resolves the layered config, or the single file given with --config.
func (o *globalOptions) loadConfig() (*config.Config, string, string, error) {
	if o.configPath != "" {
		cfg, err := config.Load("", o.configPath)
		return cfg, o.configPath, o.configPath, err
	}

	globalPath, projectPath, err := config.DefaultPaths()
	if err != nil {
		return nil, "", "", err
	}
	cfg, err := config.Load(globalPath, projectPath)
	return cfg, globalPath, projectPath, err
}

func (o *globalOptions) logger(cfg *config.Config) (*zap.Logger, error) {
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if err := config.ValidateLogLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	return setupLogger(cfg.LogLevel)
}

// loadBatch reads the task file, or returns the built-in sample batch when path is empty.
func loadBatch(path string) (*config.Batch, error) {
	if path == "" {
		return config.SampleBatch(), nil
	}
	return config.LoadBatch(path)
}

// defaultArchivePath is ~/.taskflow/runs.db next to the global config.
func defaultArchivePath() (string, error) {
	globalPath, _, err := config.DefaultPaths()
	if err != nil {
		return "", fmt.Errorf("resolving archive path: %w", err)
	}
	return filepath.Join(filepath.Dir(globalPath), "runs.db"), nil
}
