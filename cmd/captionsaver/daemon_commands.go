package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"captionsaver/internal/daemon"
	"captionsaver/internal/daemonrun"
	"captionsaver/internal/ipc"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run or control the recording daemon",
	}

	daemonCmd.AddCommand(newDaemonRunCommand(ctx))
	daemonCmd.AddCommand(newDaemonStartCommand(ctx))
	daemonCmd.AddCommand(newDaemonStopCommand(ctx))
	daemonCmd.AddCommand(newDaemonRestartCommand(ctx))
	daemonCmd.AddCommand(newDaemonLogsCommand(ctx))
	daemonCmd.AddCommand(newDaemonStatusCommand(ctx))
	daemonCmd.AddCommand(newDaemonFinishCommand(ctx))
	daemonCmd.AddCommand(newDaemonResetCommand(ctx))
	daemonCmd.AddCommand(newDaemonTitleCommand(ctx))
	daemonCmd.AddCommand(newDaemonLinesCommand(ctx))
	daemonCmd.AddCommand(newDaemonNotifyCommand(ctx))
	return daemonCmd
}

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var diagnostic bool
	var capture string
	var logLevel string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if socket := strings.TrimSpace(*ctx.socketFlag); socket != "" {
				cfg.Paths.SocketPath = socket
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Diagnostic:  diagnostic,
				Development: diagnostic,
				CapturePath: capture,
			})
		},
	}
	cmd.Flags().BoolVar(&diagnostic, "diagnostic", false, "Enable diagnostic mode with a separate DEBUG log")
	cmd.Flags().StringVar(&capture, "capture", "", "Record every ingested fragment to this JSONL file")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level for this run")
	return cmd
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and current meeting status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, status)
				}
				out := cmd.OutOrStdout()
				for _, line := range renderDaemonStatus(status, shouldColorize(out)) {
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderDaemonStatus(status *ipc.StatusResponse, colorize bool) []string {
	running := statusLine{label: "Running", kind: statusOK, message: fmt.Sprintf("pid %d", status.PID)}
	if !status.Running {
		running.kind, running.message = statusWarn, "stopped"
	} else if !status.StartedAt.IsZero() {
		running.message += ", up " + formatDuration(time.Since(status.StartedAt))
	}
	ingest := statusLine{label: "Ingest", kind: statusInfo, message: "disabled"}
	if status.IngestAddr != "" {
		ingest.kind, ingest.message = statusOK, "ws://"+status.IngestAddr+"/v1/fragments"
	}
	daemonRows := []statusLine{
		running,
		ingest,
		{label: "Captions", kind: captionsKind(status.Captions), message: string(status.Captions)},
		{label: "Sinks", kind: statusInfo, message: strings.Join(status.Sinks, ", ")},
		{label: "Export directory", kind: statusInfo, message: status.ExportDir},
	}
	if status.CapturePath != "" {
		daemonRows = append(daemonRows, statusLine{label: "Capture", kind: statusInfo, message: status.CapturePath})
	}

	sess := status.Session
	title := sess.Title
	if title == "" {
		title = "(untitled)"
	}
	meetingRows := []statusLine{
		{label: "ID", kind: statusInfo, message: sess.ID},
		{label: "Title", kind: statusInfo, message: title},
		{label: "Lines", kind: statusInfo, message: fmt.Sprintf("%d", sess.Lines)},
		{label: "Checkpointed", kind: checkpointKind(sess.Revision, sess.Saved), message: yesNo(sess.Revision == sess.Saved)},
	}
	if sess.LastLine != "" {
		meetingRows = append(meetingRows, statusLine{label: "Last line", kind: statusInfo, message: truncate(sess.LastLine, 60)})
	}

	lines := renderSection("Daemon", daemonRows, colorize)
	lines = append(lines, "")
	return append(lines, renderSection("Current Meeting", meetingRows, colorize)...)
}

func captionsKind(state daemon.CaptionState) statusKind {
	switch state {
	case daemon.CaptionsEnabled:
		return statusOK
	case daemon.CaptionsUnavailable:
		return statusError
	case daemon.CaptionsPending:
		return statusWarn
	default:
		return statusInfo
	}
}

func checkpointKind(revision, saved uint64) statusKind {
	if revision == saved {
		return statusOK
	}
	return statusWarn
}

func newDaemonFinishCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "finish",
		Short: "Save the current meeting and start a new one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Finish()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if resp.Skipped {
					fmt.Fprintln(out, "Nothing to save: current meeting is empty")
					return nil
				}
				fmt.Fprintf(out, "Saved %d lines (meeting %s)\n", resp.Lines, shortID(resp.SessionID))
				return nil
			})
		},
	}
}

func newDaemonResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard the current meeting without saving",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Reset()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Started new meeting %s\n", shortID(resp.SessionID))
				return nil
			})
		},
	}
}

func newDaemonTitleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "title <title...>",
		Short: "Name the current meeting",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SetTitle(strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Title set to %q\n", resp.Title)
				return nil
			})
		},
	}
}

func newDaemonLinesCommand(ctx *commandContext) *cobra.Command {
	var tail int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "lines",
		Short: "Print the current meeting transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Lines(tail)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				for _, line := range resp.Lines {
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&tail, "tail", "n", 0, "Only print the last N lines")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newDaemonNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			})
		},
	}
}
