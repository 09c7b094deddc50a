package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newSourcesCmd(opts *options) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List the configured sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}

			switch format {
			case "table":
				renderSourcesTable(cmd.OutOrStdout(), a.sources)
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(a.sources); err != nil {
					return fmt.Errorf("failed to encode sources: %w", err)
				}
			default:
				return fmt.Errorf("invalid format %q: must be table or json", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "output format: table or json")

	return cmd
}
