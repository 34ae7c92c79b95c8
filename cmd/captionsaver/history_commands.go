package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"captionsaver/internal/export"
	"captionsaver/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"meetings"},
		Short:   "Browse and export saved meetings",
	}

	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryExportCommand(ctx))
	historyCmd.AddCommand(newHistoryDeleteCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))
	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var since time.Duration
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved meetings, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("limit must be non-negative")
			}
			opts := history.ListOptions{Limit: limit}
			if since > 0 {
				opts.Since = time.Now().Add(-since)
			}
			return ctx.withHistory(func(store *history.Store) error {
				meetings, err := store.List(cmd.Context(), opts)
				if err != nil {
					return err
				}
				if jsonOutput {
					if meetings == nil {
						meetings = []history.Meeting{}
					}
					return writeJSON(cmd, meetings)
				}
				out := cmd.OutOrStdout()
				if len(meetings) == 0 {
					fmt.Fprintln(out, "No meetings saved yet")
					return nil
				}
				fmt.Fprint(out, renderTable(meetingColumns, buildMeetingRows(meetings)))
				fmt.Fprintln(out)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum meetings to show (0 for all)")
	cmd.Flags().DurationVar(&since, "since", 0, "Only show meetings started within this duration (e.g. 48h)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

var meetingColumns = []column{
	{header: "ID"},
	{header: "Title", maxWidth: 40},
	{header: "Started"},
	{header: "Duration", align: alignRight},
	{header: "Lines", align: alignRight},
	{header: "State"},
}

func buildMeetingRows(meetings []history.Meeting) [][]string {
	rows := make([][]string, 0, len(meetings))
	for _, m := range meetings {
		state := "saved"
		end := m.UpdatedAt
		if m.InProgress() {
			state = "in progress"
		} else {
			end = *m.EndedAt
		}
		rows = append(rows, []string{
			shortID(m.ID),
			m.DisplayTitle(),
			m.StartedAt.Local().Format("2006-01-02 15:04"),
			formatDuration(end.Sub(m.StartedAt)),
			strconv.Itoa(m.LineCount),
			state,
		})
	}
	return rows
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				meeting, err := resolveMeeting(cmd, store, args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, meeting)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "# %s (%s)\n", meeting.DisplayTitle(), meeting.StartedAt.Local().Format("2006-01-02 15:04"))
				for _, line := range meeting.Lines {
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newHistoryExportCommand(ctx *commandContext) *cobra.Command {
	var dir string
	var toRedis bool

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a saved transcript to the export directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			target := cfg.Paths.ExportDir
			if strings.TrimSpace(dir) != "" {
				target = filepath.Clean(dir)
			}
			return ctx.withHistory(func(store *history.Store) error {
				meeting, err := resolveMeeting(cmd, store, args[0])
				if err != nil {
					return err
				}
				doc := meeting.Document()
				path, err := export.NewFileSink(target).Write(cmd.Context(), doc)
				if err != nil {
					return fmt.Errorf("export transcript: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Exported %d lines to %s\n", len(doc.Lines), path)

				if !toRedis {
					return nil
				}
				sink, err := export.NewRedisSinkFromConfig(cfg)
				if err != nil {
					return err
				}
				if sink == nil {
					return errors.New("redis export requested but redis.addr is not configured")
				}
				defer sink.Close()
				if err := sink.Export(cmd.Context(), doc); err != nil {
					return fmt.Errorf("redis export: %w", err)
				}
				fmt.Fprintf(out, "Published to redis key %s\n", sink.DocumentKey(doc.ID))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Destination directory (defaults to paths.export_dir)")
	cmd.Flags().BoolVar(&toRedis, "redis", false, "Also publish the transcript to the configured redis server")
	return cmd
}

func newHistoryDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one saved meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				meeting, err := resolveMeeting(cmd, store, args[0])
				if err != nil {
					return err
				}
				if _, err := store.Delete(cmd.Context(), meeting.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%s)\n", shortID(meeting.ID), meeting.DisplayTitle())
				return nil
			})
		},
	}
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every saved meeting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("refusing to delete all meetings without --yes")
			}
			return ctx.withHistory(func(store *history.Store) error {
				removed, err := store.DeleteAll(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d meetings\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "Confirm deleting all meetings")
	return cmd
}

func resolveMeeting(cmd *cobra.Command, store *history.Store, ref string) (*history.Meeting, error) {
	meeting, err := store.Resolve(cmd.Context(), strings.TrimSpace(ref))
	if err != nil {
		return nil, err
	}
	if meeting == nil {
		return nil, fmt.Errorf("meeting %q not found", ref)
	}
	return meeting, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d%time.Hour) / int(time.Minute)
	s := int(d%time.Minute) / int(time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
