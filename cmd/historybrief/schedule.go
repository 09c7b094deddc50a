package main

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/pevans/historybrief/logger"
)

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, logger.String("details", fmt.Sprint(keysAndValues...)))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, logger.Error(err), logger.String("details", fmt.Sprint(keysAndValues...)))
}

func newScheduleCmd(opts *options) *cobra.Command {
	var (
		expr     string
		parallel bool
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run on a cron schedule until interrupted",
		Long: `Run the pipeline on a standard 5-field cron schedule. A run still in
progress when the next one is due makes the next one skip.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.log.Sync() }()

			if err := a.cfg.Validate(); err != nil {
				return err
			}
			if expr == "" {
				expr = a.cfg.Schedule
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			clog := cronLogger{log: a.log}
			c := cron.New(cron.WithLogger(clog), cron.WithChain(
				cron.Recover(clog),
				cron.SkipIfStillRunning(clog),
			))

			_, err = c.AddFunc(expr, func() {
				a.log.Info("Scheduled run triggered", logger.String("schedule", expr))
				if _, err := a.runOnce(ctx, runOptions{parallel: parallel, out: cmd.OutOrStdout()}); err != nil {
					a.log.Error("Scheduled run failed", logger.Error(err))
				}
			})
			if err != nil {
				return fmt.Errorf("invalid schedule %q: %w", expr, err)
			}

			c.Start()
			next := c.Entries()[0].Next
			a.log.Info("Scheduler started",
				logger.String("schedule", expr),
				logger.String("next_run", next.Format("2006-01-02 15:04:05")),
			)

			<-ctx.Done()
			a.log.Info("Shutting down gracefully...")
			<-c.Stop().Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&expr, "cron", "", "cron expression (default from config, \"0 7 * * *\")")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "run the sources concurrently")

	return cmd
}
