package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"captionsaver/internal/transcript"
)

func TestDaemonStopFlushesAndStops(t *testing.T) {
	env := setupCLITestEnv(t)
	env.daemon.SetTitle("Retro")
	env.daemon.Recorder().Push(transcript.Observation{Text: "what went well this sprint"})

	out, _, err := runCLI(t, []string{"daemon", "stop"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("daemon stop: %v", err)
	}
	requireContains(t, out, "Daemon stopped")
	if env.daemon.Status().Running {
		t.Fatal("expected daemon stopped")
	}

	entries, err := os.ReadDir(env.cfg.Paths.ExportDir)
	if err != nil || len(entries) != 1 || !strings.HasPrefix(entries[0].Name(), "Retro-") {
		t.Fatalf("expected flushed export, got %v (%v)", entries, err)
	}

	out, _, err = runCLI(t, []string{"daemon", "stop"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("second stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestDaemonStartReportsRunningDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"daemon", "start"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("daemon start: %v", err)
	}
	requireContains(t, out, "Daemon already running")
}

func TestDaemonLogsFiltersComponent(t *testing.T) {
	env := setupCLIConfig(t)
	path := filepath.Join(env.cfg.Paths.LogDir, "captionsaver.log")
	content := strings.Join([]string{
		"2026-03-02T09:30:00Z INFO  [ingest] client connected",
		"2026-03-02T09:30:01Z INFO  [session] checkpoint saved",
		"2026-03-02T09:30:02Z WARN  [ingest] client disconnected",
		"",
	}, "\n")
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"daemon", "logs", "--component", "ingest"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("daemon logs: %v", err)
	}
	if strings.Count(out, "\n") != 2 || strings.Contains(out, "[session]") {
		t.Fatalf("unexpected filtered output:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"daemon", "logs", "-n", "1"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("daemon logs -n 1: %v", err)
	}
	requireContains(t, out, "client disconnected")
	if strings.Count(out, "\n") != 1 {
		t.Fatalf("expected one line, got %q", out)
	}
}

func TestDaemonLogsMissingFile(t *testing.T) {
	env := setupCLIConfig(t)
	_, stderr, err := runCLI(t, []string{"daemon", "logs"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("daemon logs: %v", err)
	}
	requireContains(t, stderr, "No daemon log at")
}
