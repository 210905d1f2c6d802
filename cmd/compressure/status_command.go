package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"compressure/internal/preflight"
	"compressure/internal/services"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check configuration, directories, and media tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cfg)
			failed := preflight.Failed(results)

			if ctx.jsonOutput() {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				printer := newStatusPrinter(cmd.OutOrStdout())
				printer.section("Configuration")
				configDetail := ctx.configPath
				if !ctx.configSeen {
					configDetail += " (not found, defaults in use)"
				}
				printer.line("Config", statusInfo, configDetail)
				printer.section("Checks")
				for _, result := range results {
					printer.check(result)
				}
			}

			if len(failed) > 0 {
				return services.Wrap(services.ErrConfiguration, "status", "preflight",
					fmt.Sprintf("%d of %d checks failed", len(failed), len(results)), nil)
			}
			return nil
		},
	}
}
