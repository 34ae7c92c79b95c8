package main

import (
	"encoding/json"
	"strings"
	"testing"

	"captionsaver/internal/preflight"
)

func TestDoctorWithRunningDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"doctor"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "== Preflight ==")
	requireContains(t, out, "History database:")
	if strings.Contains(out, "[ERROR]") || strings.Contains(out, "[WARN]") {
		t.Fatalf("expected every check to pass:\n%s", out)
	}
}

func TestDoctorWarnsWhenDaemonStopped(t *testing.T) {
	env := setupCLIConfig(t)

	out, _, err := runCLI(t, []string{"doctor", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("doctor --json: %v", err)
	}
	var results []preflight.Result
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	var daemonResult *preflight.Result
	for i := range results {
		if results[i].Name == "Daemon" {
			daemonResult = &results[i]
		}
	}
	if daemonResult == nil || daemonResult.Passed || !daemonResult.Optional {
		t.Fatalf("expected optional failed daemon check, got %+v", results)
	}
}

func TestDoctorFailsOnUnusableCommand(t *testing.T) {
	env := setupCLIConfig(t)
	env.cfg.Captions.AutoEnable = true
	env.cfg.Captions.EnableCommand = []string{"captionsaver-missing-helper"}
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"doctor"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "1 check(s) failed") {
		t.Fatalf("expected one failed check, got %v\n%s", err, out)
	}
	requireContains(t, out, "[ERROR]")
}
