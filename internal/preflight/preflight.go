package preflight

import (
	"context"
	"strings"

	"captionsaver/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
	// Optional results are reported but never count as failures.
	Optional bool `json:"optional,omitempty"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Export directory", cfg.Paths.ExportDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckHistoryDB(ctx, cfg.Paths.HistoryDB),
	}

	if cfg.Captions.AutoEnable {
		results = append(results, CheckCommand("Caption enable command", cfg.Captions.EnableCommand))
	}
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		results = append(results, CheckRedis(ctx, cfg))
	}
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		results = append(results, CheckNtfy(ctx, cfg.Notifications.NtfyTopic))
	}

	daemon := CheckDaemon(cfg.Paths.SocketPath)
	results = append(results, daemon)
	// A running daemon owns the ingest port.
	if strings.TrimSpace(cfg.Ingest.ListenAddr) != "" && !daemon.Passed {
		results = append(results, CheckListenAddr(cfg.Ingest.ListenAddr))
	}
	return results
}

// Failed counts required results that did not pass.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Passed && !r.Optional {
			n++
		}
	}
	return n
}
