package main

import (
	"github.com/spf13/cobra"
)

func newRunCmd(opts *options) *cobra.Command {
	var (
		dryRun   bool
		parallel bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Collect, deduplicate and publish once",
		Long: `Run every enabled source once, keep the records not seen before and publish
them to the configured sink. With --dry-run the records are printed instead
and the seen state is left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.log.Sync() }()

			if !dryRun {
				if err := a.cfg.Validate(); err != nil {
					return err
				}
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			_, err = a.runOnce(ctx, runOptions{
				dryRun:   dryRun,
				parallel: parallel,
				out:      cmd.OutOrStdout(),
			})
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print new records instead of publishing them")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "run the sources concurrently")

	return cmd
}
