package logging

import (
	"context"
	"log/slog"
	"strings"
)

// levelOverrideHandler applies a stricter minimum level to one logger while
// delegating output to the shared handler.
type levelOverrideHandler struct {
	next  slog.Handler
	level slog.Level
}

func newLevelOverrideHandler(next slog.Handler, level slog.Level) slog.Handler {
	if next == nil {
		return NoopHandler{}
	}
	return &levelOverrideHandler{next: next, level: level}
}

func (h *levelOverrideHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level && h.next.Enabled(ctx, level)
}

func (h *levelOverrideHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.level {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *levelOverrideHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelOverrideHandler{next: h.next.WithAttrs(attrs), level: h.level}
}

func (h *levelOverrideHandler) WithGroup(name string) slog.Handler {
	return &levelOverrideHandler{next: h.next.WithGroup(name), level: h.level}
}

// WithLevelOverride returns a logger that drops records below level. It can
// only make a logger quieter than its underlying handler.
func WithLevelOverride(logger *slog.Logger, level slog.Level) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	if existing, ok := logger.Handler().(*levelOverrideHandler); ok {
		return slog.New(&levelOverrideHandler{next: existing.next, level: level})
	}
	return slog.New(newLevelOverrideHandler(logger.Handler(), level))
}

// ComponentLoggers hands out component loggers honoring per-component levels
// from the [logging.components] config table.
type ComponentLoggers struct {
	base      *slog.Logger
	overrides map[string]slog.Level
}

// NewComponentLoggers indexes overrides by lower-cased component name.
func NewComponentLoggers(base *slog.Logger, overrides map[string]string) *ComponentLoggers {
	c := &ComponentLoggers{base: base, overrides: make(map[string]slog.Level, len(overrides))}
	for name, level := range overrides {
		c.overrides[strings.ToLower(strings.TrimSpace(name))] = ParseLevel(level)
	}
	return c
}

// Base returns the root logger.
func (c *ComponentLoggers) Base() *slog.Logger {
	if c == nil || c.base == nil {
		return NewNop()
	}
	return c.base
}

// For returns the logger for component.
func (c *ComponentLoggers) For(component string) *slog.Logger {
	logger := NewComponentLogger(c.Base(), component)
	if c == nil {
		return logger
	}
	if level, ok := c.overrides[strings.ToLower(component)]; ok {
		return WithLevelOverride(logger, level)
	}
	return logger
}
