package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/aristath/taskflow/internal/events"
	"github.com/aristath/taskflow/internal/tui"
)

func newInteractiveCmd(global *globalOptions) *cobra.Command {
	var tasksPath string

	cmd := &cobra.Command{
		Use:   "interactive",
		Short: "Pick a policy, watch the run live and read the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, globalPath, projectPath, err := global.loadConfig()
			if err != nil {
				return err
			}

			// Logs would tear the alt screen; keep only errors.
			logger, err := setupLogger("error")
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			batch, err := loadBatch(tasksPath)
			if err != nil {
				return err
			}

			bus := events.NewEventBus()
			defer bus.Close()

			exec, err := newExecutor(cfg, batch, bus, logger)
			if err != nil {
				return err
			}

			model := tui.New(ctx, bus, cfg, globalPath, projectPath, exec.Run)
			p := tea.NewProgram(model, tea.WithAltScreen())

			errChan := make(chan error, 1)
			go func() {
				_, err := p.Run()
				errChan <- err
			}()

			select {
			case err := <-errChan:
				return err
			case <-ctx.Done():
				logger.Warn("shutdown signal received")
				p.Quit()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				select {
				case err := <-errChan:
					return err
				case <-shutdownCtx.Done():
					return fmt.Errorf("interactive session did not exit: %w", shutdownCtx.Err())
				}
			}
		},
	}

	cmd.Flags().StringVarP(&tasksPath, "tasks", "t", "", "task batch file (YAML or JSON); default is the sample batch")
	return cmd
}
