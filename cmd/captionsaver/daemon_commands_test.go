package main

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"captionsaver/internal/ipc"
	"captionsaver/internal/transcript"
)

func TestDaemonCommandsRequireRunningDaemon(t *testing.T) {
	env := setupCLIConfig(t)
	missing := filepath.Join(env.baseDir, "missing.sock")

	_, _, err := runCLI(t, []string{"daemon", "status"}, missing, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "captionsaver daemon run") {
		t.Fatalf("expected dial hint, got %v", err)
	}
}

func TestDaemonStatusRendersSections(t *testing.T) {
	env := setupCLITestEnv(t)
	env.daemon.SetTitle("Weekly sync")
	env.daemon.Recorder().Push(transcript.Observation{SourceID: "n1", Text: "kicking off the weekly sync now"})

	out, _, err := runCLI(t, []string{"daemon", "status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("daemon status: %v", err)
	}
	for _, want := range []string{"== Daemon ==", "== Current Meeting ==", "[OK] pid", "[INFO] disabled", "Weekly sync", "file, history, ntfy", "kicking off the weekly sync now"} {
		requireContains(t, out, want)
	}

	out, _, err = runCLI(t, []string{"daemon", "status", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("daemon status --json: %v", err)
	}
	var status ipc.StatusResponse
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running || status.Session.Lines != 1 || status.PID == 0 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestDaemonTitleLinesFinish(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"daemon", "title", "Design", "review"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("daemon title: %v", err)
	}
	requireContains(t, out, `Title set to "Design review"`)

	recorder := env.daemon.Recorder()
	recorder.Push(transcript.Observation{SourceID: "a", Text: "first topic is the storage layout"})
	recorder.Push(transcript.Observation{SourceID: "b", Text: "second topic covers the rollout plan"})

	out, _, err = runCLI(t, []string{"daemon", "lines", "-n", "1"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("daemon lines: %v", err)
	}
	if strings.Count(out, "\n") != 1 || !strings.HasSuffix(strings.TrimSpace(out), "second topic covers the rollout plan") {
		t.Fatalf("unexpected tail output %q", out)
	}

	out, _, err = runCLI(t, []string{"daemon", "lines", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("daemon lines --json: %v", err)
	}
	var lines ipc.LinesResponse
	if err := json.Unmarshal([]byte(out), &lines); err != nil {
		t.Fatalf("decode lines: %v", err)
	}
	if lines.Total != 2 || len(lines.Lines) != 2 || lines.Title != "Design review" {
		t.Fatalf("unexpected lines response %+v", lines)
	}

	id := recorder.ID()
	out, _, err = runCLI(t, []string{"daemon", "finish"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("daemon finish: %v", err)
	}
	requireContains(t, out, "Saved 2 lines (meeting "+shortID(id)+")")

	out, _, err = runCLI(t, []string{"daemon", "finish"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("second finish: %v", err)
	}
	requireContains(t, out, "Nothing to save")

	out, _, err = runCLI(t, []string{"history", "show", shortID(id)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	requireContains(t, out, "# Design review")
}

func TestDaemonResetStartsNewMeeting(t *testing.T) {
	env := setupCLITestEnv(t)
	before := env.daemon.Recorder().ID()
	env.daemon.Recorder().Push(transcript.Observation{Text: "this line gets discarded on reset"})

	out, _, err := runCLI(t, []string{"daemon", "reset"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("daemon reset: %v", err)
	}
	after := env.daemon.Recorder().ID()
	if after == before {
		t.Fatal("expected a new meeting id")
	}
	requireContains(t, out, "Started new meeting "+shortID(after))
	if len(env.daemon.Lines()) != 0 {
		t.Fatal("expected empty meeting after reset")
	}
}

func TestDaemonTestNotify(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"daemon", "test-notify"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("daemon test-notify: %v", err)
	}
	requireContains(t, out, "ntfy topic not configured")
}
