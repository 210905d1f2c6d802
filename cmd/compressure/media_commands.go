package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "probe FILE",
		Short: "Show ffprobe metadata for a media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			result, err := s.pipeline.Probe(s.ctx, args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeRawJSON(cmd, result.RawJSON())
			}

			fields := [][2]string{
				{"File", args[0]},
				{"Container", result.Format.FormatName},
				{"Duration", fmt.Sprintf("%.3fs", result.DurationSeconds())},
				{"Size", strconv.FormatInt(result.SizeBytes(), 10)},
				{"Bitrate", strconv.FormatInt(result.BitRate(), 10)},
			}
			if video, ok := result.VideoStream(); ok {
				fields = append(fields,
					[2]string{"Codec", video.CodecName},
					[2]string{"Pixel format", video.PixFmt},
					[2]string{"Resolution", fmt.Sprintf("%dx%d", video.Width, video.Height)},
				)
				if fps, err := result.FrameRate(); err == nil {
					fields = append(fields, [2]string{"Frame rate", strconv.FormatFloat(fps, 'f', 3, 64)})
				}
				if frames, err := result.FrameCount(); err == nil {
					fields = append(fields, [2]string{"Frames", strconv.Itoa(frames)})
				}
			} else {
				fields = append(fields, [2]string{"Video", "none"})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderFields(fields))
			return nil
		},
	}
}

func newConcatCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "concat OUTPUT CHUNK...",
		Short: "Join chunks, in order, into one file",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			output, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve output path: %w", err)
			}
			invocation, err := s.pipeline.Concat(s.ctx, args[1:], output)
			if err != nil {
				return err
			}
			return printInvocation(cmd, ctx, output, invocation)
		},
	}
}

func newReverseCommand(ctx *commandContext) *cobra.Command {
	var loop bool

	cmd := &cobra.Command{
		Use:   "reverse INPUT OUTPUT",
		Short: "Write a file played backwards",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			output, err := filepath.Abs(args[1])
			if err != nil {
				return fmt.Errorf("resolve output path: %w", err)
			}
			var invocation string
			if loop {
				invocation, err = s.pipeline.ReverseLoop(s.ctx, args[0], output)
			} else {
				invocation, err = s.pipeline.Reverse(s.ctx, args[0], output)
			}
			if err != nil {
				return err
			}
			return printInvocation(cmd, ctx, output, invocation)
		},
	}
	cmd.Flags().BoolVar(&loop, "loop", false, "Append the reversed copy to the input for a seamless loop")
	return cmd
}

func printInvocation(cmd *cobra.Command, ctx *commandContext, output, invocation string) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, map[string]string{"output": output, "invocation": invocation})
	}
	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}
