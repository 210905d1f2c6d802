package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"compressure/internal/manifest"
)

type sourceView struct {
	Name    string       `json:"name"`
	Path    string       `json:"path"`
	AddedAt time.Time    `json:"added_at"`
	Encodes []encodeInfo `json:"encodes"`
}

type encodeInfo struct {
	Name            string            `json:"name"`
	Artifact        string            `json:"artifact"`
	Parameters      map[string]string `json:"parameters"`
	Invocation      string            `json:"invocation"`
	CreatedAt       time.Time         `json:"created_at"`
	SuperframeSizes []int             `json:"superframe_sizes"`
}

func newSourceView(src manifest.Source) sourceView {
	view := sourceView{Name: src.Name, Path: src.Path, AddedAt: src.AddedAt, Encodes: []encodeInfo{}}
	for _, enc := range src.Encodes {
		view.Encodes = append(view.Encodes, encodeInfo{
			Name:            enc.Name,
			Artifact:        enc.Artifact,
			Parameters:      enc.Parameters,
			Invocation:      enc.Invocation,
			CreatedAt:       enc.CreatedAt,
			SuperframeSizes: enc.SuperframeSizes,
		})
	}
	return view
}

func newManifestCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect and prune recorded sources, encodes, and slices",
	}
	cmd.AddCommand(newManifestListCommand(ctx))
	cmd.AddCommand(newManifestShowCommand(ctx))
	cmd.AddCommand(newManifestRemoveCommand(ctx))
	return cmd
}

// openManifest opens the manifest for read-only commands, which need neither
// ffmpeg nor the journal.
func openManifest(ctx *commandContext) (*manifest.Manifest, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return manifest.Open(cfg.Paths.ManifestPath, manifest.Options{})
}

func newManifestListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openManifest(ctx)
			if err != nil {
				return err
			}
			defer m.Close()

			sources := m.Sources()
			if ctx.jsonOutput() {
				views := make([]sourceView, 0, len(sources))
				for _, src := range sources {
					views = append(views, newSourceView(src))
				}
				return writeJSON(cmd, views)
			}

			out := cmd.OutOrStdout()
			if len(sources) == 0 {
				fmt.Fprintln(out, "No sources recorded")
				return nil
			}
			rows := make([][]string, 0, len(sources))
			for _, src := range sources {
				rows = append(rows, []string{
					src.Name,
					strconv.Itoa(len(src.Encodes)),
					src.AddedAt.Local().Format(time.DateTime),
					src.Path,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Source", "Encodes", "Added", "Path"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func newManifestShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show SOURCE",
		Short: "Show the encodes and slice sets of a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openManifest(ctx)
			if err != nil {
				return err
			}
			defer m.Close()

			src, err := m.GetSource(args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, newSourceView(src))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderFields([][2]string{
				{"Source", src.Name},
				{"Path", src.Path},
				{"Added", src.AddedAt.Local().Format(time.DateTime)},
			}))
			if len(src.Encodes) == 0 {
				fmt.Fprintln(out, "No encodes recorded")
				return nil
			}
			rows := make([][]string, 0, len(src.Encodes))
			for _, enc := range src.Encodes {
				rows = append(rows, []string{enc.Name, formatSizes(enc.SuperframeSizes), enc.Artifact})
			}
			sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
			fmt.Fprintln(out, renderTable([]string{"Encode", "Superframes", "Artifact"}, rows, nil))
			return nil
		},
	}
}

func newManifestRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove SOURCE ENCODE",
		Short: "Delete an encode together with its artifact and slices",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.pipeline.RemoveByName(s.ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", args[1], args[0])
			return nil
		},
	}
}

func formatSizes(sizes []int) string {
	if len(sizes) == 0 {
		return "-"
	}
	parts := make([]string, len(sizes))
	for i, size := range sizes {
		parts[i] = strconv.Itoa(size)
	}
	return strings.Join(parts, ", ")
}
