package captions

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Enabler attempts to turn captions on. A nil error means captions are on.
type Enabler interface {
	Enable(ctx context.Context) error
}

// EnablerFunc adapts a function to Enabler.
type EnablerFunc func(ctx context.Context) error

// Enable calls f.
func (f EnablerFunc) Enable(ctx context.Context) error { return f(ctx) }

// CommandRunner executes a command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// CommandEnabler runs an external command; exit status 0 means enabled.
type CommandEnabler struct {
	argv []string
	run  CommandRunner
}

// NewCommandEnabler builds an enabler for argv. argv[0] is resolved on PATH.
func NewCommandEnabler(argv []string) (*CommandEnabler, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, errors.New("caption enable command is empty")
	}
	return &CommandEnabler{argv: append([]string(nil), argv...), run: runCommand}, nil
}

// WithRunner replaces the command runner, for tests.
func (c *CommandEnabler) WithRunner(run CommandRunner) *CommandEnabler {
	c.run = run
	return c
}

// Command returns the configured argv.
func (c *CommandEnabler) Command() []string {
	return append([]string(nil), c.argv...)
}

// Enable runs the command once.
func (c *CommandEnabler) Enable(ctx context.Context) error {
	output, err := c.run(ctx, c.argv[0], c.argv[1:]...)
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail == "" {
			return fmt.Errorf("%s: %w", c.argv[0], err)
		}
		return fmt.Errorf("%s: %w: %s", c.argv[0], err, detail)
	}
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}
