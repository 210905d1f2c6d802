package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"compressure/internal/pipeline"
)

type encodeView struct {
	Source     string `json:"source"`
	Name       string `json:"name"`
	Artifact   string `json:"artifact"`
	Invocation string `json:"invocation"`
	Cached     bool   `json:"cached"`
}

type sliceView struct {
	Encode         encodeView `json:"encode"`
	SuperframeSize int        `json:"superframe_size"`
	Dir            string     `json:"dir"`
	Chunks         []string   `json:"chunks"`
	Cached         bool       `json:"cached"`
}

func newEncodeView(r pipeline.EncodeResult) encodeView {
	return encodeView{
		Source:     r.Source,
		Name:       r.Name,
		Artifact:   r.Artifact,
		Invocation: r.Invocation,
		Cached:     r.Cached,
	}
}

func newEncodeCommand(ctx *commandContext) *cobra.Command {
	var flags encodeFlags
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "encode SOURCE",
		Short: "Transcode a source, reusing a cached encode when one exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			set, err := flags.params(s.cfg)
			if err != nil {
				return err
			}
			result, err := s.pipeline.Encode(s.ctx, pipeline.EncodeRequest{
				Source:    args[0],
				Params:    set,
				Overwrite: overwrite,
			})
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, newEncodeView(result))
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Artifact)
			return nil
		},
	}
	flags.bind(cmd, true)
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Re-encode even when a cached encode exists")
	return cmd
}

func newSliceCommand(ctx *commandContext) *cobra.Command {
	var flags encodeFlags
	var superframe int
	var workerCount int

	cmd := &cobra.Command{
		Use:   "slice SOURCE",
		Short: "Partition an encode into superframe chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			set, err := flags.params(s.cfg)
			if err != nil {
				return err
			}
			result, err := s.pipeline.Slice(s.ctx, pipeline.SliceRequest{
				Source:         args[0],
				Params:         set,
				SuperframeSize: superframe,
				Workers:        workerCount,
			})
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, sliceView{
					Encode:         newEncodeView(result.Encode),
					SuperframeSize: result.Slices.SuperframeSize,
					Dir:            result.Slices.Dir,
					Chunks:         result.Slices.Chunks,
					Cached:         result.Cached,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%d chunks)\n", result.Slices.Dir, len(result.Slices.Chunks))
			return nil
		},
	}
	flags.bind(cmd, true)
	cmd.Flags().IntVarP(&superframe, "superframe", "s", 0, "Frames per chunk (defaults to slicing.superframe_size)")
	cmd.Flags().IntVarP(&workerCount, "workers", "w", 0, "Concurrent chunk extractions (defaults to slicing.workers)")
	return cmd
}

type composeView struct {
	Output     string   `json:"output"`
	Seed       uint64   `json:"seed"`
	Timeline   []int    `json:"timeline"`
	Chunks     []string `json:"chunks"`
	Invocation string   `json:"invocation"`
}

func newComposeCommand(ctx *commandContext) *cobra.Command {
	var flags encodeFlags
	var tl timelineFlags
	var sources, backward []string
	var superframe, workerCount int
	var stay float64
	var seed uint64
	var output string

	cmd := &cobra.Command{
		Use:   "compose --source SOURCE [--source SOURCE]... --output OUT",
		Short: "Walk a generated timeline over sliced buffers and concatenate the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(backward) > 0 && len(backward) != len(sources) {
				return fmt.Errorf("--backward given %d times for %d sources; pair every source or none", len(backward), len(sources))
			}
			s, err := ctx.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			set, err := flags.params(s.cfg)
			if err != nil {
				return err
			}
			tp, err := tl.params(cmd, s.cfg)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("stay") {
				stay = s.cfg.Timeline.StayProbability
			}
			if !cmd.Flags().Changed("seed") {
				seed = newSeed()
			}

			buffers := make([]pipeline.BufferSpec, len(sources))
			for i, src := range sources {
				buffers[i] = pipeline.BufferSpec{Source: src}
				if len(backward) > 0 {
					buffers[i].Backward = backward[i]
				}
			}
			outPath, err := filepath.Abs(output)
			if err != nil {
				return fmt.Errorf("resolve output path: %w", err)
			}

			result, err := s.pipeline.Compose(s.ctx, pipeline.ComposeRequest{
				Buffers:         buffers,
				Params:          set,
				SuperframeSize:  superframe,
				Workers:         workerCount,
				Timeline:        tp,
				StayProbability: stay,
				Seed:            seed,
				Output:          outPath,
			})
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, composeView{
					Output:     result.Output,
					Seed:       seed,
					Timeline:   result.Timeline,
					Chunks:     result.Chunks,
					Invocation: result.Invocation,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Concatenated %d chunks (seed %d)\n", len(result.Chunks), seed)
			fmt.Fprintln(out, result.Output)
			return nil
		},
	}
	flags.bind(cmd, false)
	tl.bind(cmd)
	cmd.Flags().StringArrayVar(&sources, "source", nil, "Forward source (repeatable; one buffer per source)")
	cmd.Flags().StringArrayVar(&backward, "backward", nil, "Backward source paired with each --source (default: reversed encode)")
	cmd.Flags().IntVarP(&superframe, "superframe", "s", 0, "Frames per chunk (defaults to slicing.superframe_size)")
	cmd.Flags().IntVarP(&workerCount, "workers", "w", 0, "Concurrent chunk extractions (defaults to slicing.workers)")
	cmd.Flags().Float64Var(&stay, "stay", 0, "Probability of staying on the active buffer per sample (defaults to timeline.stay_probability)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed for buffer switching (default: random, printed)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}
