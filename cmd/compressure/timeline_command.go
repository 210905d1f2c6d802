package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"compressure/internal/timeline"
)

func newTimelineCommand(ctx *commandContext) *cobra.Command {
	var tl timelineFlags
	var length, superframe int

	cmd := &cobra.Command{
		Use:   "timeline --length N",
		Short: "Print the chunk indices a compose run would target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			p, err := tl.params(cmd, cfg)
			if err != nil {
				return err
			}
			p.BufferLength = length
			p.SuperframeSize = cfg.Slicing.SuperframeSize
			if cmd.Flags().Changed("superframe") {
				p.SuperframeSize = superframe
			}

			indices, err := timeline.Generate(p)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, indices)
			}
			parts := make([]string, len(indices))
			for i, idx := range indices {
				parts[i] = strconv.Itoa(idx)
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(parts, " "))
			return nil
		},
	}
	tl.bind(cmd)
	cmd.Flags().IntVarP(&length, "length", "l", 0, "Buffer length in chunks")
	cmd.Flags().IntVarP(&superframe, "superframe", "s", 0, "Frames per chunk (defaults to slicing.superframe_size)")
	_ = cmd.MarkFlagRequired("length")
	return cmd
}
