package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/aristath/taskflow/internal/persistence"
	"github.com/aristath/taskflow/internal/report"
)

func newHistoryCmd(global *globalOptions) *cobra.Command {
	var (
		archivePath string
		showID      string
		deleteID    string
		importPath  string
		limit       int
		format      string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived runs, show or delete one, or import a JSON report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			path := archivePath
			if path == "" {
				cfg, _, _, err := global.loadConfig()
				if err != nil {
					return err
				}
				path = cfg.ArchivePath
			}
			if path == "" {
				var err error
				if path, err = defaultArchivePath(); err != nil {
					return err
				}
			}

			store, err := persistence.NewSQLiteStore(ctx, path)
			if err != nil {
				return fmt.Errorf("opening archive: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()

			switch {
			case importPath != "":
				data, err := os.ReadFile(importPath)
				if err != nil {
					return fmt.Errorf("reading report: %w", err)
				}
				rep, err := report.ParseJSON(data)
				if err != nil {
					return err
				}
				if err := store.SaveRun(ctx, rep); err != nil {
					return fmt.Errorf("archiving report: %w", err)
				}
				fmt.Fprintf(out, "imported run %s\n", rep.RunID)
				return nil

			case deleteID != "":
				if err := store.DeleteRun(ctx, deleteID); err != nil {
					return err
				}
				fmt.Fprintf(out, "deleted run %s\n", deleteID)
				return nil

			case showID != "":
				rep, err := store.GetRun(ctx, showID)
				if err != nil {
					return err
				}
				data, err := rep.Encode(format)
				if err != nil {
					return err
				}
				fmt.Fprint(out, string(data))
				return nil
			}

			runs, err := store.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "no archived runs")
				return nil
			}

			t := table.New().
				Border(lipgloss.HiddenBorder()).
				Headers("RUN ID", "POLICY", "MODE", "COMPLETED", "BLOCKED", "FAILED", "ARCHIVED")
			for _, r := range runs {
				t.Row(
					r.RunID,
					r.Policy,
					r.Mode,
					fmt.Sprintf("%d/%d", r.Completed, r.Total),
					fmt.Sprintf("%d", r.Blocked),
					fmt.Sprintf("%d", r.Failed),
					humanize.Time(r.ArchivedAt),
				)
			}
			fmt.Fprintln(out, t.Render())
			return nil
		},
	}

	cmd.Flags().StringVar(&archivePath, "archive", "", "SQLite archive (default: config archive_path or ~/.taskflow/runs.db)")
	cmd.Flags().StringVar(&showID, "show", "", "print the report of this run")
	cmd.Flags().StringVar(&deleteID, "delete", "", "remove this run from the archive")
	cmd.Flags().StringVar(&importPath, "import", "", "archive a report written by run --format json")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list (0 for all)")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "report format for --show: table, json or yaml")
	return cmd
}
