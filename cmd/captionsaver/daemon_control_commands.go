package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"captionsaver/internal/daemonctl"
	"captionsaver/internal/logs"
)

const (
	daemonStartTimeout = 10 * time.Second
	daemonStopGrace    = 45 * time.Second
)

func (c *commandContext) launchOptions(diagnostic bool, capture string) daemonctl.LaunchOptions {
	configPath := c.configFlagValue()
	if configPath == "" && c.configSeen {
		configPath = c.configPath
	}
	return daemonctl.LaunchOptions{
		SocketPath:  c.socketPath(),
		ConfigPath:  configPath,
		Diagnostic:  diagnostic,
		CapturePath: capture,
	}
}

func newDaemonStartCommand(ctx *commandContext) *cobra.Command {
	var diagnostic bool
	var capture string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			res, err := daemonctl.EnsureStarted(ctx.socketPath(), exe, ctx.launchOptions(diagnostic, capture), daemonStartTimeout)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.State == daemonctl.StartStateAlreadyRunning {
				fmt.Fprintf(out, "Daemon already running (pid %d)\n", res.PID)
				return nil
			}
			fmt.Fprintf(out, "Daemon started (pid %d)\n", res.PID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&diagnostic, "diagnostic", false, "Enable diagnostic mode with a separate DEBUG log")
	cmd.Flags().StringVar(&capture, "capture", "", "Record every ingested fragment to this JSONL file")
	return cmd
}

func newDaemonStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Save the current meeting and stop the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			res, err := daemonctl.StopAndTerminate(ctx.socketPath(), cfg, daemonStopGrace)
			out := cmd.OutOrStdout()
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if res.ForcedKill {
				fmt.Fprintf(out, "Daemon did not stop in time; killed pid %d\n", res.PID)
				return nil
			}
			fmt.Fprintln(out, "Daemon stopped")
			return nil
		},
	}
}

func newDaemonRestartCommand(ctx *commandContext) *cobra.Command {
	var diagnostic bool

	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Stop the daemon if it is running, then start it again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			res, err := daemonctl.Restart(ctx.socketPath(), cfg, exe, ctx.launchOptions(diagnostic, ""), daemonStopGrace, daemonStartTimeout)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Daemon restarted (pid %d)\n", res.Start.PID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&diagnostic, "diagnostic", false, "Enable diagnostic mode with a separate DEBUG log")
	return cmd
}

func newDaemonLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var component string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if lines < 0 {
				return fmt.Errorf("lines must be non-negative")
			}
			path := filepath.Join(cfg.Paths.LogDir, "captionsaver.log")
			match := logs.ComponentFilter(component)
			out := cmd.OutOrStdout()
			emit := func(line string) {
				if match(line) {
					fmt.Fprintln(out, line)
				}
			}

			recent, offset, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			if recent == nil && offset == 0 && !follow {
				fmt.Fprintf(cmd.ErrOrStderr(), "No daemon log at %s\n", path)
				return nil
			}
			for _, line := range recent {
				emit(line)
			}
			if !follow {
				return nil
			}
			err = logs.Follow(cmd.Context(), path, offset, 0, emit)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of recent lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new log lines")
	cmd.Flags().StringVar(&component, "component", "", "Only show records from one component (e.g. ingest)")
	return cmd
}
