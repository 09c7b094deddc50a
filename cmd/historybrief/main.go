// Command historybrief collects recent French history publications and
// publishes the new ones.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// options holds the global flags.
type options struct {
	configPath  string
	sourcesPath string
	logLevel    string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "historybrief",
		Short: "Collect recent French history publications",
		Long: `historybrief visits publishers, podcasts and institutions, keeps the items
published recently, drops the ones already reported and publishes the rest.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("HISTORYBRIEF_CONFIG"),
		"config file (default is ~/.historybrief/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.sourcesPath, "sources", "",
		"sources file (default is the built-in list)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"log level: debug, info, warn or error")

	cmd.AddCommand(
		newRunCmd(opts),
		newSourcesCmd(opts),
		newServeCmd(opts),
		newScheduleCmd(opts),
		newDoctorCmd(opts),
	)

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
