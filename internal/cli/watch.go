package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tagc/internal/service"
)

const watchLongDescription = `Command "watch"

Build once, then rebuild every time the source file is written. With
--schedule (a standard 5-field cron expression) builds also run on that
schedule. Every rebuild is a complete run. Stop with Ctrl+C.
`

// shutdownGrace bounds how long watch waits for a running build on exit.
const shutdownGrace = 10 * time.Second

func watchCommand(root *rootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild the artifacts when the tag table changes",
		Long:  watchLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := service.ValidateSchedule(root.cfg.Watch.Schedule); err != nil {
				return &ExitError{Code: 2, Err: err}
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			root.printer.setLive(true)
			if _, err := root.builds.Build(ctx); err != nil {
				root.logger.Warn("[WATCH] initial build failed", zap.Error(err))
			}

			w := service.NewWatcher(root.builds, root.cfg.Source, root.cfg.Watch.Debounce, root.cfg.Watch.Schedule, root.logger)
			err := w.Run(ctx)

			waitCtx, cancelWait := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancelWait()
			root.builds.WaitRunning(waitCtx)
			return err
		},
	}
	cmd.Flags().Duration("debounce", 0, "delay after the last source write before rebuilding (default 500ms)")
	cmd.Flags().String("schedule", "", "cron expression for scheduled rebuilds")
	return cmd
}
