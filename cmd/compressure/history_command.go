package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"compressure/internal/journal"
)

type historyView struct {
	ID             string    `json:"id"`
	RunID          string    `json:"run_id"`
	Operation      string    `json:"operation"`
	Status         string    `json:"status"`
	Source         string    `json:"source,omitempty"`
	Encode         string    `json:"encode,omitempty"`
	SuperframeSize int       `json:"superframe_size,omitempty"`
	Invocation     string    `json:"invocation,omitempty"`
	Artifact       string    `json:"artifact,omitempty"`
	Error          string    `json:"error,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	DurationMS     int64     `json:"duration_ms"`
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var filter journal.Filter

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent operations from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			j, err := journal.Open(cfg.Paths.JournalPath)
			if err != nil {
				return err
			}
			defer j.Close()

			entries, err := j.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				views := make([]historyView, 0, len(entries))
				for _, e := range entries {
					views = append(views, historyView{
						ID:             e.ID,
						RunID:          e.RunID,
						Operation:      e.Operation,
						Status:         string(e.Status),
						Source:         e.Source,
						Encode:         e.Encode,
						SuperframeSize: e.SuperframeSize,
						Invocation:     e.Invocation,
						Artifact:       e.Artifact,
						Error:          e.Error,
						StartedAt:      e.StartedAt,
						DurationMS:     e.Duration.Milliseconds(),
					})
				}
				return writeJSON(cmd, views)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No operations recorded")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				superframe := ""
				if e.SuperframeSize > 0 {
					superframe = strconv.Itoa(e.SuperframeSize)
				}
				rows = append(rows, []string{
					e.StartedAt.Local().Format(time.DateTime),
					shortID(e.RunID),
					e.Operation,
					string(e.Status),
					e.Source,
					e.Encode,
					superframe,
					e.Duration.Round(time.Millisecond).String(),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Started", "Run", "Operation", "Status", "Source", "Encode", "SF", "Duration"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 20, "Maximum number of entries")
	cmd.Flags().StringVar(&filter.Operation, "operation", "", "Only show one operation (encode, slice, compose, ...)")
	cmd.Flags().StringVar(&filter.RunID, "run", "", "Only show entries of one run")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
