package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aristath/taskflow/internal/config"
	"github.com/aristath/taskflow/internal/scheduler"
)

// errBatchNotRunnable is returned when validation finds tasks that can never run.
var errBatchNotRunnable = errors.New("batch has tasks that can never run")

func newValidateCmd(global *globalOptions) *cobra.Command {
	var tasksPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a task batch for malformed tasks, missing dependencies and cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := loadBatch(tasksPath)
			if err != nil {
				return err
			}
			tasks, err := batch.SchedulerTasks()
			if err != nil {
				return fmt.Errorf("invalid batch: %w", err)
			}

			out := cmd.OutOrStdout()
			g := scheduler.NewGraph(tasks)
			diag := g.Diagnose()

			names := make([]string, 0, len(diag.Dangling))
			for name := range diag.Dangling {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "%s depends on tasks not in the batch: %s\n", name, strings.Join(diag.Dangling[name], ", "))
				if deps := g.Dependents(name); len(deps) > 0 {
					fmt.Fprintf(out, "  which also blocks: %s\n", strings.Join(deps, ", "))
				}
			}
			if diag.Cycle != nil {
				fmt.Fprintf(out, "%v\n", diag.Cycle)
			}

			if !diag.OK() {
				return errBatchNotRunnable
			}
			fmt.Fprintf(out, "%d tasks OK\n", len(tasks))
			return nil
		},
	}

	cmd.Flags().StringVarP(&tasksPath, "tasks", "t", "", "task batch file (YAML or JSON); default is the sample batch")
	return cmd
}

func newPoliciesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "List the scheduling policies",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range scheduler.Policies() {
				k := p.Kind()
				fmt.Fprintf(cmd.OutOrStdout(), "%-11s %-28s %s\n", k.String(), k.DisplayName(), k.Description())
			}
		},
	}
}

func newSampleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sample",
		Short: "Print the built-in sample batch as YAML, a starting point for --tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.SampleBatch().Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
